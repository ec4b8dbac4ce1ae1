package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reunite-labs/petmatch/internal/resilience"
)

func noSleep(waits *[]time.Duration) resilience.SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		if waits != nil {
			*waits = append(*waits, d)
		}
		return ctx.Err()
	}
}

func TestEmbed_Success(t *testing.T) {
	t.Parallel()

	want := []float64{0.12, -0.5, 0.98, 0.01}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://cdn.example.com/rex.jpg", req.ImageURL)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(embedResponse{Embedding: want})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0))
	got, err := client.Embed(context.Background(), "https://cdn.example.com/rex.jpg")

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEmbed_WarmingUpThenSuccess(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	var waits []time.Duration

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(unavailableResponse{
				Error:         "Model is currently loading",
				EstimatedTime: 20,
			})
			return
		}
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float64{1, 2, 3}})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0), WithSleep(noSleep(&waits)))
	got, err := client.Embed(context.Background(), "https://cdn.example.com/rex.jpg")

	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, got)
	assert.Equal(t, int32(3), attempts.Load())
	// The provider-suggested wait is honored between attempts.
	assert.Equal(t, []time.Duration{20 * time.Second, 20 * time.Second}, waits)
}

func TestEmbed_WarmingUpExhaustsRetries(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(unavailableResponse{Error: "Model is currently loading"})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0), WithSleep(noSleep(nil)))
	_, err := client.Embed(context.Background(), "https://cdn.example.com/rex.jpg")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestEmbed_RetryAfterHeader(t *testing.T) {
	t.Parallel()

	var waits []time.Duration

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0), WithSleep(noSleep(&waits)))
	_, err := client.Embed(context.Background(), "https://cdn.example.com/rex.jpg")

	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, []time.Duration{7 * time.Second, 7 * time.Second}, waits)
}

func TestEmbed_DefaultWaitWithoutHint(t *testing.T) {
	t.Parallel()

	var waits []time.Duration

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0), WithSleep(noSleep(&waits)))
	_, err := client.Embed(context.Background(), "https://cdn.example.com/rex.jpg")

	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, waits)
}

func TestEmbed_MalformedPayload(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0), WithSleep(noSleep(nil)))
	_, err := client.Embed(context.Background(), "https://cdn.example.com/rex.jpg")

	require.ErrorIs(t, err, ErrBadResponse)
	// Malformed payloads are permanent: no retries.
	assert.Equal(t, int32(1), attempts.Load())
}

func TestEmbed_EmptyVector(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0))
	_, err := client.Embed(context.Background(), "https://cdn.example.com/rex.jpg")

	require.ErrorIs(t, err, ErrBadResponse)
}

func TestEmbed_NonVectorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"unsupported image format"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0))
	_, err := client.Embed(context.Background(), "https://cdn.example.com/rex.gif")

	require.ErrorIs(t, err, ErrBadResponse)
	assert.Contains(t, err.Error(), "400")
}

func TestEmbed_BreakerShortCircuits(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     time.Minute,
		ShouldTrip:       resilience.IsTransient,
	})
	client := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithRateLimit(0),
		WithSleep(noSleep(nil)),
		WithBreaker(breaker),
	)

	// First call trips the breaker after three transient failures.
	_, err := client.Embed(context.Background(), "https://cdn.example.com/a.jpg")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(3), attempts.Load())

	// Subsequent calls are rejected without reaching the provider.
	_, err = client.Embed(context.Background(), "https://cdn.example.com/b.jpg")
	require.ErrorIs(t, err, resilience.ErrBreakerOpen)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestEmbed_NetworkErrorIsUnavailable(t *testing.T) {
	t.Parallel()

	// A server that is already gone produces transport-level failures on
	// every attempt; after exhaustion the sentinel must still match.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0), WithSleep(noSleep(nil)))
	_, err := client.Embed(context.Background(), "https://cdn.example.com/rex.jpg")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestEmbed_ContextCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(0))
	_, err := client.Embed(ctx, "https://cdn.example.com/rex.jpg")
	require.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewClient("my-key")
	hc := c.(*httpClient)
	assert.Equal(t, "my-key", hc.apiKey)
	assert.Equal(t, defaultBaseURL, hc.baseURL)
	assert.Equal(t, 3, hc.retry.MaxAttempts)
	assert.Equal(t, 5*time.Second, hc.retry.DefaultWait)
	assert.NotNil(t, hc.limiter)
	assert.NotNil(t, hc.breaker)
	assert.Equal(t, 30*time.Second, hc.http.Timeout)
}

func TestSuggestedWait_Priority(t *testing.T) {
	t.Parallel()

	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "9")

	// estimated_time wins over the header.
	body := []byte(`{"error":"loading","estimated_time":2.5}`)
	assert.Equal(t, 2500*time.Millisecond, suggestedWait(resp, body))

	// Header is the fallback.
	assert.Equal(t, 9*time.Second, suggestedWait(resp, []byte(`{}`)))

	// Neither present: zero, retry layer uses its default.
	resp.Header.Del("Retry-After")
	assert.Equal(t, time.Duration(0), suggestedWait(resp, nil))
}
