package circuitbreaker

import "errors"

// ErrCircuitOpen is returned when the circuit breaker is open and requests
// are being rejected without reaching the upstream.
var ErrCircuitOpen = errors.New("circuit breaker is open")
