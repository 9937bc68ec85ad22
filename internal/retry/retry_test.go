package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:      3,
		InitialBackoff:   time.Millisecond,
		RateLimitBackoff: 2 * time.Millisecond,
	}
}

func alwaysRetry(error) Action { return Retry }

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), alwaysRetry, func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(), alwaysRetry, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	sentinel := errors.New("still broken")
	err := Do(context.Background(), fastPolicy(), alwaysRetry, func() error {
		calls++
		return sentinel
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestDo_StopAbortsImmediately(t *testing.T) {
	calls := 0
	sentinel := errors.New("bad request")
	err := Do(context.Background(), fastPolicy(), func(error) Action { return Stop }, func() error {
		calls++
		return sentinel
	})

	var permanent *PermanentError
	require.ErrorAs(t, err, &permanent)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestDo_RateLimitUsesLongerBackoff(t *testing.T) {
	var backoffs []time.Duration
	p := fastPolicy()
	p.RateLimitBackoff = 5 * time.Millisecond
	p.OnRetry = func(_ int, _ error, backoff time.Duration) {
		backoffs = append(backoffs, backoff)
	}

	_ = Do(context.Background(), p, func(error) Action { return After }, func() error {
		return errors.New("rate limited")
	})

	require.Len(t, backoffs, 2)
	// Each rate-limited attempt restarts from RateLimitBackoff; the
	// exponential doubling only kicks in once responses stop being
	// classified as rate limits.
	assert.Equal(t, []time.Duration{5 * time.Millisecond, 5 * time.Millisecond}, backoffs)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := fastPolicy()
	p.InitialBackoff = time.Minute

	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, p, alwaysRetry, func() error { return errors.New("transient") })
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
}
