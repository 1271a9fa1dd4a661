package gemini

import "errors"

var (
	// ErrQuotaExhausted is returned when the upstream keeps answering 429
	// after the full retry schedule has been spent.
	ErrQuotaExhausted = errors.New("upstream quota exceeded after retries")

	// ErrTransport is returned for network failures and non-429 HTTP error
	// statuses. These are not retried.
	ErrTransport = errors.New("upstream transport failure")

	// ErrMalformedResponse is returned when the upstream body cannot be
	// parsed as a response envelope at all.
	ErrMalformedResponse = errors.New("failed to parse upstream response")
)
