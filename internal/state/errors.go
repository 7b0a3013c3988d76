package state

import (
	"fmt"

	"github.com/imamik/podkeeper/internal/pod"
)

// FailureKind distinguishes unreadable or unwritable files from corrupt ones.
type FailureKind string

const (
	FailureIO    FailureKind = "io"
	FailureParse FailureKind = "parse"
)

// StorageError reports a state file that could not be loaded or saved.
type StorageError struct {
	Op   string
	Path string
	Kind FailureKind
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("state %s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ErrorKind implements pod.Classified.
func (e *StorageError) ErrorKind() pod.ErrorKind {
	return pod.KindStorage
}
