package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
)

// confirm asks a yes/no question on the terminal.
var confirm = func(title string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Terminate").
		Negative("Cancel").
		Value(&ok).
		Run()
	return ok, err
}

// Stop handles the stop command. Stopped pods keep their volume and are
// started again by the next ensure.
func Stop(ctx context.Context, opts Options) error {
	s, err := open(ctx, opts, nil)
	if err != nil {
		return err
	}

	var errs []error
	for _, o := range s.orchs {
		rec, err := o.Stop(s.ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(stdout, "%s  %s  %s\n", titleStyle.Render(o.Name()), dimStyle.Render(rec.ID), renderStatus(rec.Status))
	}
	return errors.Join(errs...)
}

// Terminate handles the terminate command. Terminating deletes the pod and
// its volume, so it asks for confirmation unless yes is set. Without a
// terminal, yes is required.
func Terminate(ctx context.Context, opts Options, yes bool) error {
	s, err := open(ctx, opts, nil)
	if err != nil {
		return err
	}

	var errs []error
	for _, o := range s.orchs {
		if !yes {
			if !isInteractive() {
				return fmt.Errorf("refusing to terminate %q without --yes in a non-interactive session", o.Name())
			}
			ok, err := confirm(fmt.Sprintf("Terminate pod %q? Its volume is deleted.", o.Name()))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintf(stdout, "%s  %s\n", titleStyle.Render(o.Name()), dimStyle.Render("skipped"))
				continue
			}
		}

		rec, err := o.Terminate(s.ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(stdout, "%s  %s  %s\n", titleStyle.Render(o.Name()), dimStyle.Render(rec.ID), renderStatus(rec.Status))
	}
	return errors.Join(errs...)
}

// Forget handles the forget command. It removes the local record only; the
// pod itself keeps running and billing.
func Forget(ctx context.Context, opts Options) error {
	s, err := open(ctx, opts, nil)
	if err != nil {
		return err
	}

	var errs []error
	for _, o := range s.orchs {
		existed, err := o.Forget()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		msg := "forgotten"
		if !existed {
			msg = "nothing recorded"
		}
		fmt.Fprintf(stdout, "%s  %s\n", titleStyle.Render(o.Name()), dimStyle.Render(msg))
	}
	return errors.Join(errs...)
}
