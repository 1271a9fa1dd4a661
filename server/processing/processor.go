// Package processing orchestrates the content pipeline: prompt construction,
// rate limit admission, the guarded upstream call, and response extraction.
package processing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nlowel/scribe/server/gemini"
	"github.com/nlowel/scribe/server/metrics"
	"github.com/nlowel/scribe/server/prompt"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Generator issues a prompt to the upstream model and returns the raw
// response body.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) ([]byte, error)
}

// Limiter blocks until an outbound call is admitted.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Breaker guards the upstream call.
type Breaker interface {
	Execute(f func() error) error
}

// Processor runs requests through the pipeline sequentially: build the
// prompt, wait for rate limit admission, call the upstream through the
// circuit breaker, extract the answer. Identical prompts that arrive while
// one is already in flight share its outcome instead of spending extra
// quota.
type Processor struct {
	builder *prompt.Builder
	limiter Limiter
	client  Generator
	breaker Breaker
	logger  *zap.Logger
	metrics *metrics.Metrics

	group   singleflight.Group
	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the shared state of one coalesced upstream call. Its context is
// detached from every caller, so one caller disconnecting cannot fail the
// others; the last caller to leave cancels it, aborting any remaining
// limiter wait or retry backoff.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewProcessor wires the pipeline stages together.
func NewProcessor(builder *prompt.Builder, limiter Limiter, client Generator, breaker Breaker, logger *zap.Logger, m *metrics.Metrics) (*Processor, error) {
	if builder == nil {
		return nil, fmt.Errorf("prompt builder is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if client == nil {
		return nil, fmt.Errorf("upstream client is required")
	}
	if breaker == nil {
		return nil, fmt.Errorf("circuit breaker is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		builder: builder,
		limiter: limiter,
		client:  client,
		breaker: breaker,
		logger:  logger,
		metrics: m,
		flights: make(map[string]*flight),
	}, nil
}

// join registers a caller on the flight for key, creating the flight on
// first join. The flight context inherits the creator's values but not its
// cancellation.
func (p *Processor) join(ctx context.Context, key string) *flight {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.flights[key]
	if !ok {
		flightCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: flightCtx, cancel: cancel}
		p.flights[key] = f
	}
	f.waiters++
	return f
}

// leave deregisters a caller. The last caller out cancels the flight and
// forgets the key so a later identical prompt starts a fresh upstream call.
func (p *Processor) leave(key string, f *flight) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f.waiters--
	if f.waiters == 0 {
		f.cancel()
		if p.flights[key] == f {
			delete(p.flights, key)
		}
		p.group.Forget(key)
	}
}

// ProcessContent handles one request end to end. Degenerate upstream answers
// (filtered content, empty text, upstream error objects) come back as
// Results carrying a diagnostic string; errors are reserved for quota
// exhaustion, transport failures, interruption, and unparsable bodies.
func (p *Processor) ProcessContent(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}

	text, err := p.builder.Build(prompt.Input{
		Operation:      req.Operation,
		Content:        req.Content,
		Tone:           req.Tone,
		TargetLanguage: req.TargetLanguage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	// Concurrent duplicates of the same prompt share one upstream call and
	// therefore one rate limit token. The shared call runs under the flight
	// context, not any caller's: a caller that cancels drops out alone, and
	// the remaining callers still get the result.
	f := p.join(ctx, text)
	defer p.leave(text, f)

	ch := p.group.DoChan(text, func() (interface{}, error) {
		return p.execute(f.ctx, req.Operation, text)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			p.logger.Debug("Shared in-flight upstream call",
				zap.String("operation", req.Operation),
			)
		}
		return res.Val.(*Result), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("request cancelled while processing: %w", ctx.Err())
	}
}

func (p *Processor) execute(ctx context.Context, operation, text string) (*Result, error) {
	start := time.Now()
	if err := p.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.RateLimitWait.Observe(time.Since(start).Seconds())
	}

	var raw []byte
	err := p.breaker.Execute(func() error {
		var genErr error
		raw, genErr = p.client.GenerateContent(ctx, text)
		return genErr
	})
	if err != nil {
		return nil, err
	}

	outcome, err := gemini.Extract(raw)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Processed content",
		zap.String("operation", operation),
		zap.Duration("duration", time.Since(start)),
	)
	return &Result{Result: outcome.Result()}, nil
}
