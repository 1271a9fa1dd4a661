// Package handlers implements the HTTP endpoints.
package handlers

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/nlowel/scribe/errors"
	"github.com/nlowel/scribe/server/circuitbreaker"
	"github.com/nlowel/scribe/server/gemini"
	"github.com/nlowel/scribe/server/middleware"
	"github.com/nlowel/scribe/server/processing"
	"github.com/nlowel/scribe/server/ratelimit"
	"github.com/nlowel/scribe/server/validation"
	"go.uber.org/zap"
)

// ProcessHandler serves the process endpoint: it decodes and validates the
// request, runs it through the processing pipeline, and maps pipeline
// failures onto HTTP statuses.
type ProcessHandler struct {
	processor *processing.Processor
	validator *validation.Validator
	logger    *zap.Logger
}

// NewProcessHandler creates a handler backed by the given pipeline.
func NewProcessHandler(processor *processing.Processor, validator *validation.Validator, logger *zap.Logger) *ProcessHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessHandler{
		processor: processor,
		validator: validator,
		logger:    logger,
	}
}

func (h *ProcessHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID, _ := r.Context().Value(middleware.RequestIDKey).(string)
	logger := h.logger.With(zap.String("request_id", requestID))

	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			errors.WriteError(w, errors.NewValidationError(
				requestID,
				"Content-Type must be application/json",
				nil,
			))
			return
		}
	}

	var req processing.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Debug("Failed to decode request body", zap.Error(err))
		errors.WriteError(w, errors.NewValidationError(
			requestID,
			"Invalid request body",
			map[string]interface{}{"error": err.Error()},
		))
		return
	}

	if err := h.validator.ValidateRequest(&req); err != nil {
		errors.WriteError(w, errors.NewValidationError(
			requestID,
			err.Error(),
			nil,
		))
		return
	}

	result, err := h.processor.ProcessContent(r.Context(), &req)
	if err != nil {
		h.writeProcessingError(w, logger, requestID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// writeProcessingError maps pipeline failures onto client-facing errors.
func (h *ProcessHandler) writeProcessingError(w http.ResponseWriter, logger *zap.Logger, requestID string, err error) {
	switch {
	case errors.Is(err, ratelimit.ErrInterrupted):
		logger.Warn("Request interrupted while rate limited", zap.Error(err))
		errors.WriteError(w, errors.NewRateLimitInterruptedError(requestID, err))

	case errors.Is(err, gemini.ErrQuotaExhausted):
		logger.Error("Upstream quota exhausted", zap.Error(err))
		errors.WriteError(w, errors.NewQuotaExceededError(requestID, 120, err))

	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		logger.Warn("Circuit breaker open", zap.Error(err))
		errors.WriteError(w, errors.NewError(
			errors.ProviderError,
			"Upstream temporarily unavailable",
			http.StatusServiceUnavailable,
			requestID, nil, err,
		))

	case errors.Is(err, gemini.ErrMalformedResponse):
		logger.Error("Malformed upstream response", zap.Error(err))
		errors.WriteError(w, errors.NewProviderError(requestID, "Failed to parse AI response", err))

	default:
		errors.LogError(logger, err, requestID)
		errors.WriteError(w, errors.NewProviderError(requestID, "Upstream request failed", err))
	}
}

// HealthHandler reports liveness.
func HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
}
