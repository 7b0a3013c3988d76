package handlers

import (
	"context"
	"errors"
)

// Status handles the status command. It prints the stored and live state
// of every selected pod and the action the next ensure would take.
func Status(ctx context.Context, opts Options) error {
	s, err := open(ctx, opts, nil)
	if err != nil {
		return err
	}

	var errs []error
	for i, o := range s.orchs {
		st, err := o.Status(s.ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if i > 0 {
			_, _ = stdout.Write([]byte("\n"))
		}
		printStatus(stdout, st)
	}
	return errors.Join(errs...)
}
