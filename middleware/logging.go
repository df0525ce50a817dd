package middleware

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dmitrymomot/fasttrack/core/handler"
	"github.com/dmitrymomot/fasttrack/core/httpcodec"
	"github.com/dmitrymomot/fasttrack/core/logger"
)

// LoggingConfig configures the request logging middleware.
type LoggingConfig struct {
	// Skip defines a function to skip logging for specific requests
	Skip func(req *httpcodec.Request) bool

	// Logger is the slog logger to use (default: slog.Default())
	Logger *slog.Logger

	// LogLevel for successful requests (default: slog.LevelInfo)
	LogLevel slog.Level

	// LogHeaders enables logging of request headers (default: false)
	LogHeaders bool

	// SensitiveHeaders are redacted when LogHeaders is set (default: Cookie, Authorization)
	SensitiveHeaders []string

	// SlowRequestThreshold logs slow requests at warning level (default: 500ms)
	SlowRequestThreshold time.Duration

	// Component name for structured logging
	Component string
}

// Logging creates a logging middleware with the given logger and defaults.
func Logging(log *slog.Logger) handler.Middleware {
	return LoggingWithConfig(LoggingConfig{Logger: log})
}

// LoggingWithConfig creates a logging middleware that records one entry per
// request once the response is built. 4xx responses log at warn, 5xx at error.
func LoggingWithConfig(cfg LoggingConfig) handler.Middleware {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.LogLevel == 0 {
		cfg.LogLevel = slog.LevelInfo
	}
	if cfg.SensitiveHeaders == nil {
		cfg.SensitiveHeaders = []string{httpcodec.HeaderCookie, "Authorization"}
	}
	if cfg.SlowRequestThreshold <= 0 {
		cfg.SlowRequestThreshold = 500 * time.Millisecond
	}
	if cfg.Component == "" {
		cfg.Component = "http"
	}

	return func(next handler.Handler) handler.Handler {
		return handler.HandlerFunc(func(ctx context.Context, req *httpcodec.Request) *httpcodec.Response {
			if cfg.Skip != nil && cfg.Skip(req) {
				return next.ServeRequest(ctx, req)
			}

			start := time.Now()
			res := next.ServeRequest(ctx, req)
			duration := time.Since(start)

			id, _ := handler.SessionID(ctx)
			attrs := []slog.Attr{
				logger.Component(cfg.Component),
				logger.SessionID(id),
				logger.Method(req.Method),
				logger.Path(req.Target),
				slog.String("proto", req.Proto()),
				logger.Duration(duration),
			}
			if res != nil {
				attrs = append(attrs,
					logger.StatusCode(res.StatusCode),
					slog.Int64("bytes_out", res.ContentLength()),
					slog.Bool("keep_alive", res.KeepAlive()),
				)
			}
			if cfg.LogHeaders {
				attrs = append(attrs, headerAttr(&req.Header, cfg.SensitiveHeaders))
			}

			level := cfg.LogLevel
			switch {
			case res == nil || res.StatusCode >= 500:
				level = slog.LevelError
			case res.StatusCode >= 400:
				level = slog.LevelWarn
			case duration > cfg.SlowRequestThreshold:
				level = slog.LevelWarn
				attrs = append(attrs, slog.Bool("slow_request", true))
			}

			cfg.Logger.LogAttrs(ctx, level, "request completed", attrs...)
			return res
		})
	}
}

func headerAttr(h *httpcodec.Header, sensitive []string) slog.Attr {
	attrs := make([]slog.Attr, 0, h.Len())
	for name, value := range h.All() {
		if slices.ContainsFunc(sensitive, func(s string) bool { return strings.EqualFold(s, name) }) {
			value = "[REDACTED]"
		}
		attrs = append(attrs, slog.String(name, value))
	}
	return logger.Group("request_headers", attrs...)
}
