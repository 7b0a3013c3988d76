package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast() Option { return WithInitialDelay(time.Millisecond) }

func TestWithExponentialBackoff_Success(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestWithExponentialBackoff_SuccessAfterRetries(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, fast())

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithExponentialBackoff_MaxRetries(t *testing.T) {
	t.Parallel()
	sentinel := errors.New("persistent error")
	attempts := 0
	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return sentinel
	}, WithMaxRetries(2), fast())

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, attempts, "1 attempt + 2 retries")
}

func TestWithExponentialBackoff_DefaultRetries(t *testing.T) {
	t.Parallel()
	attempts := 0
	_ = WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return errors.New("error")
	}, fast())

	assert.Equal(t, DefaultConfig().MaxRetries+1, attempts)
}

func TestWithExponentialBackoff_ContextCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := WithExponentialBackoff(ctx, func() error {
		attempts++
		return errors.New("error")
	}, fast())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestWithExponentialBackoff_FatalError(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return Fatal(errors.New("fatal error"))
	}, fast())

	assert.True(t, IsFatal(err))
	assert.Equal(t, 1, attempts)
}

func TestWithExponentialBackoff_RetryIf(t *testing.T) {
	t.Parallel()
	retryable := errors.New("busy")
	permanent := errors.New("bad request")

	tests := []struct {
		name         string
		errs         []error
		wantAttempts int
		wantErr      error
	}{
		{name: "permanent stops immediately", errs: []error{permanent}, wantAttempts: 1, wantErr: permanent},
		{name: "retryable then permanent", errs: []error{retryable, permanent}, wantAttempts: 2, wantErr: permanent},
		{name: "retryable then success", errs: []error{retryable, nil}, wantAttempts: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			attempts := 0
			err := WithExponentialBackoff(context.Background(), func() error {
				e := tt.errs[attempts]
				attempts++
				return e
			}, fast(), WithRetryIf(func(err error) bool { return errors.Is(err, retryable) }))

			assert.Equal(t, tt.wantAttempts, attempts)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantErr, err, "rejected errors are returned unwrapped")
		})
	}
}

func TestWithExponentialBackoff_OnRetryDelays(t *testing.T) {
	t.Parallel()
	var delays []time.Duration
	var seen []int
	_ = WithExponentialBackoff(context.Background(), func() error {
		return errors.New("error")
	},
		WithMaxRetries(4),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(4*time.Millisecond),
		WithOnRetry(func(attempt int, _ error, d time.Duration) {
			seen = append(seen, attempt)
			delays = append(delays, d)
		}),
	)

	assert.Equal(t, []int{1, 2, 3, 4}, seen)
	assert.Equal(t, []time.Duration{
		time.Millisecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
		4 * time.Millisecond,
	}, delays)
}

func TestWithMultiplier(t *testing.T) {
	t.Parallel()
	var delays []time.Duration
	_ = WithExponentialBackoff(context.Background(), func() error {
		return errors.New("error")
	},
		WithMaxRetries(2),
		WithInitialDelay(time.Millisecond),
		WithMultiplier(3),
		WithOnRetry(func(_ int, _ error, d time.Duration) { delays = append(delays, d) }),
	)

	assert.Equal(t, []time.Duration{time.Millisecond, 3 * time.Millisecond}, delays)
}

func TestFatal(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Fatal(nil))

	original := errors.New("test error")
	err := Fatal(original)
	assert.True(t, IsFatal(err))
	assert.Equal(t, original.Error(), err.Error())
	assert.Same(t, original, errors.Unwrap(err))
}

func TestIsFatal(t *testing.T) {
	t.Parallel()
	sentinel := errors.New("sentinel")
	wrapped := fmt.Errorf("context: %w", Fatal(sentinel))

	assert.False(t, IsFatal(errors.New("regular error")))
	assert.True(t, IsFatal(wrapped))
	assert.True(t, IsFatal(errors.Join(Fatal(sentinel), errors.New("more"))))
	assert.ErrorIs(t, wrapped, sentinel)
}
