// Package embedding provides a client for the external visual embedding
// provider. The provider computes a fixed-length feature vector for a photo
// and may answer with a transient "model warming up" signal while it loads.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/reunite-labs/petmatch/internal/resilience"
)

const defaultBaseURL = "https://api.petvision.dev/v1"

// ErrUnavailable is returned when the provider stayed unavailable (warming
// up, rate limited, or erroring) for the whole retry budget. Callers score
// the candidate without a visual component.
var ErrUnavailable = eris.New("embedding: provider unavailable")

// ErrBadResponse is returned when the provider answers with a malformed or
// non-vector payload. Recovered the same way as ErrUnavailable.
var ErrBadResponse = eris.New("embedding: malformed provider response")

// Client acquires visual feature vectors for photo URLs.
type Client interface {
	Embed(ctx context.Context, imageURL string) ([]float64, error)
}

// Option configures the embedding client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithSleep overrides how the client waits between retries. Tests use this
// to simulate elapsed time without real delays.
func WithSleep(sleep resilience.SleepFunc) Option {
	return func(c *httpClient) {
		c.retry.Sleep = sleep
	}
}

// WithRateLimit bounds outgoing requests per second across all callers of
// this client. Zero or negative disables the limiter.
func WithRateLimit(perSec float64) Option {
	return func(c *httpClient) {
		if perSec > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *httpClient) {
		c.breaker = b
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
	limiter *rate.Limiter
	breaker *resilience.Breaker
}

// NewClient creates an embedding provider client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.RetryConfig{
			MaxAttempts: 3,
			DefaultWait: 5 * time.Second,
			OnRetry:     resilience.RetryLogger("embedding", "embed"),
		},
		limiter: rate.NewLimiter(rate.Limit(4), 1),
		breaker: resilience.NewBreaker(resilience.BreakerConfig{
			ShouldTrip: resilience.IsTransient,
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type embedRequest struct {
	ImageURL string `json:"image_url"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// unavailableResponse is the provider's transient-unavailable signal, with
// an optional suggested wait in seconds before retrying.
type unavailableResponse struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}

// Embed fetches the feature vector for a photo URL. Transient provider
// conditions are retried with the provider-suggested wait; exhausting the
// budget yields ErrUnavailable, malformed payloads yield ErrBadResponse.
func (c *httpClient) Embed(ctx context.Context, imageURL string) ([]float64, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "embedding: rate limit wait")
		}
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]float64, error) {
		return resilience.BreakerVal(ctx, c.breaker, func(ctx context.Context) ([]float64, error) {
			return c.embedOnce(ctx, imageURL)
		})
	})
}

func (c *httpClient) embedOnce(ctx context.Context, imageURL string) ([]float64, error) {
	body, err := json.Marshal(embedRequest{ImageURL: imageURL})
	if err != nil {
		return nil, eris.Wrap(err, "embedding: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "embedding: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failures carry the sentinel too so callers see
		// ErrUnavailable after retry exhaustion regardless of failure mode.
		return nil, resilience.NewTransientError(eris.Wrapf(ErrUnavailable, "send request: %v", err), 0)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(ErrUnavailable, "read response: %v", err), resp.StatusCode)
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		wait := suggestedWait(resp, respBody)
		return nil, resilience.NewTransientErrorAfter(
			eris.Wrapf(ErrUnavailable, "status %d", resp.StatusCode),
			resp.StatusCode, wait,
		)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Wrapf(ErrBadResponse, "unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result embedResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrapf(ErrBadResponse, "unmarshal: %s", err.Error())
	}
	if len(result.Embedding) == 0 {
		return nil, eris.Wrap(ErrBadResponse, "empty embedding")
	}

	return result.Embedding, nil
}

// suggestedWait extracts the provider's suggested retry delay: the
// estimated_time field from a warming-up body, or the Retry-After header.
// Returns 0 when neither is present; the retry layer then uses its default.
func suggestedWait(resp *http.Response, body []byte) time.Duration {
	var ur unavailableResponse
	if err := json.Unmarshal(body, &ur); err == nil && ur.EstimatedTime > 0 {
		return time.Duration(ur.EstimatedTime * float64(time.Second))
	}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
