// Package logger provides structured logging utilities built on Go's standard slog package.
//
// # Basic Usage
//
// Create loggers using the factory function with configuration options:
//
//	import "github.com/dmitrymomot/fasttrack/core/logger"
//
//	// Development: text format, debug level, stdout
//	log := logger.New(logger.WithDevelopment("fasttrack"))
//
//	// Production: JSON format, info level, stdout
//	log := logger.New(logger.WithProduction("fasttrack"))
//
//	// Custom configuration
//	log := logger.New(
//		logger.WithLevel(slog.LevelWarn),
//		logger.WithJSONFormatter(),
//		logger.WithAttr(slog.String("region", "eu")),
//		logger.WithOutput(os.Stderr),
//	)
//
// Library packages default to Nop() and accept a *slog.Logger through options.
//
// # Attribute Helpers
//
// Helpers return an empty slog.Attr for nil or empty values, which slog skips:
//
//	log.Error("session read failed",
//		logger.SessionID(id),
//		logger.RemoteAddr(conn.RemoteAddr()),
//		logger.Error(err),
//	)
//
//	log.Error("socket setup failed",
//		logger.Component("listener"),
//		logger.Stage("bind"),
//		logger.Error(err),
//	)
package logger
