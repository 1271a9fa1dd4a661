// Package gemini speaks the generateContent wire protocol: it builds request
// bodies, handles quota backoff against the upstream, and defensively
// unpacks response envelopes.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/nlowel/scribe/server/metrics"
	"go.uber.org/zap"
)

// RetryPolicy controls backoff for quota-exceeded upstream responses.
// Delay for attempt n is InitialDelay doubled n times, capped at MaxDelay,
// then scaled by a random factor in [1-Jitter, 1+Jitter].
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Jitter       float64
}

// Config holds the settings needed to reach the upstream model.
type Config struct {
	Endpoint       string
	APIKey         string
	Model          string
	RequestTimeout time.Duration
	Retry          RetryPolicy
}

// Client issues generateContent calls over HTTP. Retries cover only
// quota-exceeded (429) responses; transport failures and other HTTP errors
// surface immediately.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics

	// rng and sleep are injectable for deterministic backoff tests
	rng   func() float64
	sleep func(ctx context.Context, d time.Duration) error
}

// request body wire types
type generateRequest struct {
	Contents []requestContent `json:"contents"`
}

type requestContent struct {
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text string `json:"text"`
}

// NewClient creates a client for the given upstream configuration.
func NewClient(cfg Config, logger *zap.Logger, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			// Per-attempt deadlines come from the request context; the
			// transport itself stays unbounded.
			Timeout: 0,
		},
		logger:  logger,
		metrics: m,
		rng:     rand.Float64,
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// backoffDelay computes the delay before retry attempt n (0-based).
func (c *Client) backoffDelay(attempt int) time.Duration {
	p := c.cfg.Retry
	base := float64(p.InitialDelay) * math.Pow(2, float64(attempt))
	if capped := float64(p.MaxDelay); base > capped {
		base = capped
	}
	// Scale by a factor in [1-j, 1+j]
	factor := 1 - p.Jitter + c.rng()*2*p.Jitter
	return time.Duration(base * factor)
}

// GenerateContent sends the prompt to the upstream model and returns the raw
// response body. Quota-exceeded responses are retried per the policy; when
// the schedule is exhausted it returns ErrQuotaExhausted. Cancellation
// during a backoff wait or an in-flight attempt aborts immediately.
func (c *Client) GenerateContent(ctx context.Context, prompt string) ([]byte, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []requestContent{
			{Parts: []requestPart{{Text: prompt}}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.Endpoint, c.cfg.Model)

	var lastStatus int
	for attempt := 0; attempt <= c.cfg.Retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoffDelay(attempt - 1)
			c.logger.Warn("Upstream quota exceeded, backing off",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", c.cfg.Retry.MaxRetries),
				zap.Duration("delay", delay),
			)
			if c.metrics != nil {
				c.metrics.UpstreamRetries.Inc()
			}
			if err := c.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("cancelled during retry backoff: %w", err)
			}
		}

		raw, status, err := c.doAttempt(ctx, url, body)
		if err != nil {
			return nil, err
		}
		if status == http.StatusTooManyRequests {
			lastStatus = status
			continue
		}
		if status != http.StatusOK {
			c.logger.Error("Upstream returned error status",
				zap.Int("status", status),
			)
			return nil, fmt.Errorf("%w: upstream returned status %d", ErrTransport, status)
		}
		return raw, nil
	}

	c.logger.Error("Retry schedule exhausted",
		zap.Int("retries", c.cfg.Retry.MaxRetries),
		zap.Int("last_status", lastStatus),
	)
	return nil, fmt.Errorf("%w: still rate limited after %d retries, try again in 1-2 minutes",
		ErrQuotaExhausted, c.cfg.Retry.MaxRetries)
}

// doAttempt performs one HTTP round trip under the per-attempt timeout.
func (c *Client) doAttempt(ctx context.Context, url string, body []byte) ([]byte, int, error) {
	attemptCtx := ctx
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading response body: %v", ErrTransport, err)
	}
	return raw, resp.StatusCode, nil
}
