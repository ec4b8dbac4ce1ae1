package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSleep records requested waits without sleeping.
func fakeSleep(waits *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return ctx.Err()
	}
}

func TestDoVal_SucceedsFirstTry(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := DoVal(context.Background(), DefaultRetryConfig(), func(ctx context.Context) (int, error) {
		calls++
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, calls)
}

func TestDoVal_RetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	var waits []time.Duration
	cfg := RetryConfig{MaxAttempts: 3, DefaultWait: 5 * time.Second, Sleep: fakeSleep(&waits)}

	calls := 0
	got, err := DoVal(context.Background(), cfg, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(eris.New("warming up"), 503)
		}
		return "vector", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "vector", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, waits)
}

func TestDoVal_HonorsRetryAfterHint(t *testing.T) {
	t.Parallel()

	var waits []time.Duration
	cfg := RetryConfig{MaxAttempts: 3, DefaultWait: 5 * time.Second, Sleep: fakeSleep(&waits)}

	calls := 0
	_, err := DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, NewTransientErrorAfter(eris.New("warming up"), 503, 12*time.Second)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{12 * time.Second, 12 * time.Second}, waits)
}

func TestDoVal_ExhaustsBudget(t *testing.T) {
	t.Parallel()

	var waits []time.Duration
	cfg := RetryConfig{MaxAttempts: 3, DefaultWait: time.Second, Sleep: fakeSleep(&waits)}

	calls := 0
	_, err := DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, NewTransientError(eris.New("still warming"), 503)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, waits, 2) // no sleep after the final attempt
	assert.True(t, IsTransient(err))
}

func TestDoVal_NoRetryOnPermanentError(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := DoVal(context.Background(), DefaultRetryConfig(), func(ctx context.Context) (int, error) {
		calls++
		return 0, eris.New("bad request")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_ContextCancelStopsRetries(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := DoVal(ctx, DefaultRetryConfig(), func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(eris.New("transient"), 503)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryCallback(t *testing.T) {
	t.Parallel()

	var attempts []int
	var waits []time.Duration
	cfg := RetryConfig{
		MaxAttempts: 3,
		DefaultWait: time.Second,
		Sleep:       fakeSleep(&waits),
		OnRetry:     func(attempt int, err error) { attempts = append(attempts, attempt) },
	}

	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		return NewTransientError(eris.New("transient"), 500)
	})

	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestRetryAfterHint(t *testing.T) {
	t.Parallel()

	hint, ok := RetryAfterHint(NewTransientErrorAfter(eris.New("x"), 503, 7*time.Second))
	assert.True(t, ok)
	assert.Equal(t, 7*time.Second, hint)

	_, ok = RetryAfterHint(NewTransientError(eris.New("x"), 503))
	assert.False(t, ok)

	_, ok = RetryAfterHint(eris.New("plain"))
	assert.False(t, ok)
}

func TestIsTransientHTTPStatus(t *testing.T) {
	t.Parallel()

	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 400, 401, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}
