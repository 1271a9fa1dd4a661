package errors

import (
	"go.uber.org/zap"
)

// LogError logs an error with its context. Wrapped ScribeErrors are
// unwrapped so the structured fields survive fmt.Errorf chains.
func LogError(logger *zap.Logger, err error, requestID string) {
	var scribeErr *ScribeError
	if As(err, &scribeErr) {
		logger.Error("request error",
			zap.String("error_type", string(scribeErr.Type)),
			zap.String("message", scribeErr.Message),
			zap.Int("code", scribeErr.Code),
			zap.String("request_id", requestID),
			zap.Any("details", scribeErr.Details),
		)
	} else {
		logger.Error("unexpected error",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
	}
}
