package handler

import (
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/vaultkit/pkg/logger"
	"github.com/dmitrymomot/vaultkit/pkg/requestid"
)

// determineLogLevel returns the appropriate log level based on status code.
func determineLogLevel(statusCode int) slog.Level {
	if statusCode < 500 {
		return slog.LevelWarn
	}
	return slog.LevelError
}

// NewErrorHandler logs the failure with the request id and renders the JSON
// error envelope. Configure it once in main and pass it to every Wrap call.
func NewErrorHandler(log *slog.Logger) ErrorHandler {
	if log == nil {
		log = slog.Default()
	}

	return func(w http.ResponseWriter, r *http.Request, err error) {
		status := StatusCode(err)
		log.LogAttrs(r.Context(), determineLogLevel(status), "request error",
			logger.RequestID(requestid.FromContext(r.Context())),
			logger.Error(err),
			slog.Int("status_code", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("error_handler"),
		)

		if renderErr := JSONError(err).Render(w, r); renderErr != nil {
			log.ErrorContext(r.Context(), "failed to render error response",
				logger.Error(renderErr),
				logger.Component("error_handler"),
			)
		}
	}
}
