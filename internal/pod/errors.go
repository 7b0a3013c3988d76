package pod

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a failure of a pod operation.
type ErrorKind string

const (
	KindUnknown          ErrorKind = "unknown"
	KindConfig           ErrorKind = "config"
	KindTransport        ErrorKind = "transport"
	KindProvider         ErrorKind = "provider"
	KindProviderTerminal ErrorKind = "provider terminal"
	KindTimeout          ErrorKind = "timeout"
	KindStorage          ErrorKind = "storage"
	KindCanceled         ErrorKind = "canceled"
)

// ErrNotFound matches errors reporting that a pod does not exist at the
// provider. Transports make their not-found errors match it with errors.Is.
var ErrNotFound = errors.New("pod not found")

// Classified is implemented by errors that know their own kind. Subsystems
// implement it on their typed errors so KindOf can classify without this
// package importing them.
type Classified interface {
	error
	ErrorKind() ErrorKind
}

// Error is the single error type surfaced by orchestrator operations. It
// names the logical pod and, where known, the provider pod ID.
type Error struct {
	Kind  ErrorKind
	Name  string
	PodID string
	Err   error
}

func (e *Error) Error() string {
	target := fmt.Sprintf("%q", e.Name)
	if e.PodID != "" {
		target = fmt.Sprintf("%q (%s)", e.Name, e.PodID)
	}
	return fmt.Sprintf("ensure pod %s: %s: %v", target, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKind implements Classified.
func (e *Error) ErrorKind() ErrorKind {
	return e.Kind
}

// Wrap classifies err and attaches the pod identity. A nil err yields nil.
// An err that already is an *Error keeps its kind; missing identity fields
// are filled in.
func Wrap(err error, name, podID string) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		if pe.Name == "" {
			pe.Name = name
		}
		if pe.PodID == "" {
			pe.PodID = podID
		}
		return pe
	}
	return &Error{Kind: KindOf(err), Name: name, PodID: podID, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
// Context cancellation and deadline errors are KindCanceled.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var c Classified
	if errors.As(err, &c) {
		return c.ErrorKind()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindUnknown
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
