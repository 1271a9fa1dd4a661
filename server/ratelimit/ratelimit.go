// Package ratelimit paces outbound upstream calls with a token bucket.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrInterrupted is returned when a caller is cancelled while blocked
// waiting for a token. No token is consumed in that case.
var ErrInterrupted = errors.New("interrupted while waiting for rate limit")

// Limiter wraps a token bucket shared by all requests to the upstream model.
// The bucket starts full; once drained, callers block until the refill
// schedule makes tokens available again, in arrival order.
type Limiter struct {
	bucket *rate.Limiter
	logger *zap.Logger
}

// New creates a limiter with the given bucket capacity and refill schedule.
// refill tokens are spread evenly across each interval.
func New(capacity int, refill int, interval time.Duration, logger *zap.Logger) (*Limiter, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("rate limit capacity must be positive, got %d", capacity)
	}
	if refill <= 0 {
		return nil, fmt.Errorf("rate limit refill must be positive, got %d", refill)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("rate limit interval must be positive, got %s", interval)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		bucket: rate.NewLimiter(rate.Limit(float64(refill)/interval.Seconds()), capacity),
		logger: logger,
	}, nil
}

// Acquire blocks until a token is available or ctx is done. It consumes
// exactly one token on success. On cancellation it returns ErrInterrupted
// wrapped with the cause.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := l.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrInterrupted, err)
	}
	if waited := time.Since(start); waited > time.Second {
		l.logger.Info("Rate limit permit acquired after wait",
			zap.Duration("waited", waited),
		)
	}
	return nil
}

// Tokens reports the number of tokens currently available. Intended for
// health reporting, not admission decisions.
func (l *Limiter) Tokens() float64 {
	return l.bucket.Tokens()
}
