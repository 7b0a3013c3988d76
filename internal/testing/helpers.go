package testing

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"
	clocktesting "k8s.io/utils/clock/testing"
)

// TestContext returns a context with a reasonable timeout for tests and a
// logger writing to t.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return logr.NewContext(ctx, testr.New(t))
}

// SteppingClock is a fake clock that advances as soon as someone waits on
// it, so every wait returns at once at the expected fake time.
type SteppingClock struct {
	*clocktesting.FakeClock
}

// NewSteppingClock returns a SteppingClock starting at 2026-01-01 UTC.
func NewSteppingClock() *SteppingClock {
	return &SteppingClock{clocktesting.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))}
}

// After registers a waiter and steps the clock past it.
func (c *SteppingClock) After(d time.Duration) <-chan time.Time {
	ch := c.FakeClock.After(d)
	c.Step(d)
	return ch
}
