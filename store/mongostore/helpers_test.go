package mongostore

import (
	"log/slog"

	"github.com/dmitrymomot/vaultkit/pkg/logger"
)

func discardLogger() *slog.Logger {
	return logger.Discard()
}
