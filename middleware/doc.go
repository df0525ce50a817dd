// Package middleware provides handler.Middleware implementations for the
// request handlers served by core/server sessions.
//
// # Logging
//
// Logging records one structured entry per request once the response exists:
//
//	h := handler.Chain(status.New(),
//		middleware.Logging(log),
//	)
//
// Use LoggingWithConfig to change the level, log redacted request headers or
// skip requests:
//
//	mw := middleware.LoggingWithConfig(middleware.LoggingConfig{
//		Logger:               log,
//		LogLevel:             slog.LevelDebug,
//		LogHeaders:           true,
//		SlowRequestThreshold: 100 * time.Millisecond,
//	})
//
// # Recover
//
// Recover converts a panic in the wrapped handler into a fallback response,
// typically a 500:
//
//	h := handler.Chain(status.New(),
//		middleware.Recover(log, status.InternalError),
//		middleware.Logging(log),
//	)
package middleware
