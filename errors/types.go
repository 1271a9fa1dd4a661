package errors

import (
	"net/http"
)

// NewError creates a new ScribeError with the given parameters.
// It is a general-purpose constructor that allows full control over
// the error's fields. For most cases, you should use one of the
// specialized constructors below.
//
// Example:
//
//	err := NewError(InternalError, "template compile failed", 500, "req_123", nil, tmplErr)
func NewError(errType ErrorType, message string, code int, requestID string, details map[string]interface{}, err error) *ScribeError {
	return &ScribeError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewValidationError creates a validation error with appropriate defaults.
// Use this for any request validation failures, such as:
//   - Invalid input formats
//   - Missing required fields
//   - Content exceeding the token budget
//
// Example:
//
//	err := NewValidationError("req_123", "Invalid request", map[string]interface{}{
//	    "field": "content",
//	    "error": "required",
//	})
func NewValidationError(requestID, message string, validationDetails map[string]interface{}) *ScribeError {
	return &ScribeError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		Details:   validationDetails,
	}
}

// NewRateLimitInterruptedError creates an error for a request that was
// cancelled while waiting for the local rate limiter. The caller may safely
// retry the whole request later.
//
// Example:
//
//	err := NewRateLimitInterruptedError("req_123", ctxErr)
func NewRateLimitInterruptedError(requestID string, err error) *ScribeError {
	return &ScribeError{
		Type:      RateLimitError,
		Message:   "Request cancelled while waiting for rate limit",
		Code:      http.StatusServiceUnavailable,
		RequestID: requestID,
		err:       err,
		Details: map[string]interface{}{
			"suggestion": "Retry the request later",
		},
	}
}

// NewQuotaExceededError creates an error for upstream quota exhaustion after
// the bounded retry policy ran out. Use this when the generative-text service
// kept answering "too many requests" for every attempt; the caller should
// back off substantially before retrying.
//
// Example:
//
//	err := NewQuotaExceededError("req_123", 120, upstreamErr)
func NewQuotaExceededError(requestID string, retryAfter int, err error) *ScribeError {
	return &ScribeError{
		Type:      QuotaError,
		Message:   "Upstream quota exceeded, retry later",
		Code:      http.StatusTooManyRequests,
		RequestID: requestID,
		err:       err,
		Details: map[string]interface{}{
			"retry_after": retryAfter,
		},
	}
}

// NewProviderError creates a provider error with appropriate defaults.
// Use this when the generative-text service call fails, such as:
//   - Transport or HTTP-level failures
//   - Unparsable response envelopes
//   - An open circuit breaker
//
// Example:
//
//	err := NewProviderError("req_123", "Upstream request failed", transportErr)
func NewProviderError(requestID string, message string, err error) *ScribeError {
	return &ScribeError{
		Type:      ProviderError,
		Message:   message,
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewInternalError creates an internal server error with appropriate defaults.
// Use this for unexpected errors that are not covered by other error types:
//   - Panics
//   - Unexpected system failures
//
// Example:
//
//	err := NewInternalError("req_123", panicErr)
func NewInternalError(requestID string, err error) *ScribeError {
	return &ScribeError{
		Type:      InternalError,
		Message:   "An internal error occurred",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}
