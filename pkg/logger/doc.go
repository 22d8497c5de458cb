// Package logger builds log/slog loggers for the service.
//
// New returns a JSON logger at info level by default; WithEnvironment switches
// to human-readable text output at debug level for development. Context
// extractors attach request-scoped values (request id, user id) to every record
// logged with a context:
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, "vaultkit"),
//		logger.WithContextExtractors(requestid.LogExtractor),
//	)
//	log.InfoContext(ctx, "subscription updated", logger.UserID(uid))
//
// Attribute helpers keep key names consistent across packages.
package logger
