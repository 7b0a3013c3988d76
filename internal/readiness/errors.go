package readiness

import (
	"fmt"
	"time"

	"github.com/imamik/podkeeper/internal/pod"
)

// TimeoutError reports that a pod did not become ready in time. The pod is
// left as it is for inspection.
type TimeoutError struct {
	PodID   string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("pod %s not ready after %s", e.PodID, e.Elapsed)
}

func (e *TimeoutError) ErrorKind() pod.ErrorKind {
	return pod.KindTimeout
}

// TerminalError reports that a pod can no longer become ready: it was
// terminated or no longer exists at the provider.
type TerminalError struct {
	PodID  string
	Reason string
	Err    error
}

func (e *TerminalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pod %s %s: %v", e.PodID, e.Reason, e.Err)
	}
	return fmt.Sprintf("pod %s %s", e.PodID, e.Reason)
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

func (e *TerminalError) ErrorKind() pod.ErrorKind {
	return pod.KindProviderTerminal
}
