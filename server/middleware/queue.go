package middleware

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue/v2"
	"github.com/nlowel/scribe/server/metrics"
)

// queueContextKey is a custom type for queue-specific context keys to avoid collisions
type queueContextKey string

const (
	queuePositionKey queueContextKey = "queue_position"
)

// QueueMiddleware implements a bounded FIFO admission queue for process
// requests. Requests beyond the configured maximum are rejected immediately
// with 503 rather than piling up behind the rate limiter.
//
// Each admitted request is tracked by a channel that signals its completion;
// completed requests are removed from the queue and their resources released
// even if the handler panics. Queue operations are protected by an RWMutex
// and counters use atomics, so the middleware is safe under concurrent
// requests.
type QueueMiddleware struct {
	queue      *queue.Queue[chan struct{}] // FIFO queue holding channels that signal request completion
	maxSize    atomic.Int64                // Maximum queue size, updated atomically
	mu         sync.RWMutex                // Protects queue operations
	processing int32                       // Count of requests being processed
	metrics    *metrics.Metrics            // Prometheus metrics for monitoring
	done       chan struct{}               // Signals shutdown
}

// QueueConfig defines the operational parameters for the queue middleware.
type QueueConfig struct {
	InitialSize int64            // Starting maximum queue size
	Metrics     *metrics.Metrics // Metrics collector for monitoring
}

// NewQueueMiddleware initializes a new queue middleware with the given
// configuration.
func NewQueueMiddleware(cfg QueueConfig) *QueueMiddleware {
	qm := &QueueMiddleware{
		queue:   queue.New[chan struct{}](),
		metrics: cfg.Metrics,
		done:    make(chan struct{}),
	}
	qm.maxSize.Store(cfg.InitialSize)
	return qm
}

// Shutdown initiates a graceful shutdown, waiting for queued requests to
// drain (bounded by the context and a 5s deadline).
func (qm *QueueMiddleware) Shutdown(ctx context.Context) error {
	select {
	case <-qm.done:
		// Channel already closed, continue with shutdown
	default:
		close(qm.done)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		qm.mu.RLock()
		drained := qm.queue.Length() == 0 && atomic.LoadInt32(&qm.processing) == 0
		qm.mu.RUnlock()
		if drained {
			return nil
		}
		select {
		case <-ctx.Done():
			if qm.metrics != nil {
				qm.metrics.ErrorsTotal.WithLabelValues("queue_shutdown_timeout").Inc()
			}
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	if qm.metrics != nil {
		qm.metrics.ErrorsTotal.WithLabelValues("queue_shutdown_timeout").Inc()
	}
	return nil
}

// SetMaxSize updates the maximum number of requests allowed in the queue.
// Takes effect immediately; new requests are rejected once the queue length
// reaches the new limit.
func (qm *QueueMiddleware) SetMaxSize(size int64) {
	qm.maxSize.Store(size)
}

// GetQueueSize returns the current queue length.
func (qm *QueueMiddleware) GetQueueSize() int {
	qm.mu.RLock()
	defer qm.mu.RUnlock()
	return qm.queue.Length()
}

// GetMaxSize returns the current maximum queue size.
func (qm *QueueMiddleware) GetMaxSize() int64 {
	return qm.maxSize.Load()
}

// GetProcessing returns the number of requests currently being processed.
func (qm *QueueMiddleware) GetProcessing() int32 {
	return atomic.LoadInt32(&qm.processing)
}

// Handler admits a request into the queue or rejects it with 503 when the
// queue is at capacity. The request's queue position at admission time is
// stored in its context.
func (qm *QueueMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		qm.mu.Lock()
		currentSize := qm.queue.Length()
		maxSize := qm.maxSize.Load()

		if qm.metrics != nil {
			qm.metrics.ActiveRequests.WithLabelValues("queued").Set(float64(currentSize))
		}

		if int64(currentSize) >= maxSize {
			qm.mu.Unlock()
			if qm.metrics != nil {
				qm.metrics.ErrorsTotal.WithLabelValues("queue_full").Inc()
			}
			http.Error(w, "Queue is full", http.StatusServiceUnavailable)
			return
		}

		done := make(chan struct{})
		qm.queue.Add(done)
		qm.mu.Unlock()

		atomic.AddInt32(&qm.processing, 1)
		if qm.metrics != nil {
			qm.metrics.ActiveRequests.WithLabelValues("processing").Inc()
		}

		defer func() {
			atomic.AddInt32(&qm.processing, -1)
			if qm.metrics != nil {
				qm.metrics.ActiveRequests.WithLabelValues("processing").Dec()
			}
			close(done)
			qm.mu.Lock()
			qm.queue.Remove()
			if qm.metrics != nil {
				qm.metrics.ActiveRequests.WithLabelValues("queued").Set(float64(qm.queue.Length()))
			}
			qm.mu.Unlock()

			if qm.metrics != nil {
				qm.metrics.RequestDuration.WithLabelValues("queue_wait").Observe(time.Since(start).Seconds())
			}
		}()

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), queuePositionKey, currentSize)))
	})
}
