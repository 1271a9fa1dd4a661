// Package circuitbreaker guards the upstream call path against sustained
// failure. It wraps sony/gobreaker and exposes breaker state through
// Prometheus so operators can see trips without reading logs.
package circuitbreaker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config holds configuration for the circuit breaker
type Config struct {
	FailureThreshold uint32        // Consecutive failures before opening the circuit
	ResetTimeout     time.Duration // Time to wait in open state before probing
	HalfOpenRequests uint32        // Requests allowed through in half-open state
	TestMode         bool          // Skip metric registration in test mode
}

// CircuitBreaker wraps gobreaker with logging and metrics.
type CircuitBreaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger

	stateGauge prometheus.Gauge
	tripsTotal prometheus.Counter
}

// stateValue maps gobreaker states onto the gauge scale
// (0=closed, 1=open, 2=half-open).
func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// NewCircuitBreaker creates a named circuit breaker. The circuit opens after
// FailureThreshold consecutive failures, stays open for ResetTimeout, then
// admits HalfOpenRequests probes before closing again.
func NewCircuitBreaker(name string, config Config, logger *zap.Logger, registry *prometheus.Registry) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}

	cb := &CircuitBreaker{
		name:   name,
		logger: logger,
	}

	cb.stateGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scribe_circuit_breaker_state",
		Help: "Current state of the circuit breaker (0=closed, 1=open, 2=half-open)",
		ConstLabels: prometheus.Labels{
			"name": name,
		},
	})
	cb.tripsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scribe_circuit_breaker_trips_total",
		Help: "Total number of times the circuit breaker has tripped",
		ConstLabels: prometheus.Labels{
			"name": name,
		},
	})

	if !config.TestMode && registry != nil {
		registry.MustRegister(cb.stateGauge)
		registry.MustRegister(cb.tripsTotal)
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.HalfOpenRequests,
		Timeout:     config.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cb.stateGauge.Set(stateValue(to))
			if to == gobreaker.StateOpen {
				cb.tripsTotal.Inc()
			}
			cb.logger.Warn("Circuit breaker state change",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	cb.breaker = gobreaker.NewCircuitBreaker(settings)

	return cb
}

// Execute runs f if the circuit allows it. When the circuit is open, or the
// half-open probe budget is spent, it returns ErrCircuitOpen without calling
// f. Errors from f count toward tripping the circuit and are returned as-is.
func (cb *CircuitBreaker) Execute(f func() error) error {
	_, err := cb.breaker.Execute(func() (interface{}, error) {
		return nil, f()
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return ErrCircuitOpen
	}
	return err
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}
