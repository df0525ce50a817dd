package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/dmitrymomot/fasttrack/core/handler"
	"github.com/dmitrymomot/fasttrack/core/httpcodec"
	"github.com/dmitrymomot/fasttrack/core/logger"
)

// Recover turns a handler panic into the response built by fallback.
// The panic value and stack are logged at error level.
func Recover(log *slog.Logger, fallback func(req *httpcodec.Request, msg string) *httpcodec.Response) handler.Middleware {
	if log == nil {
		log = slog.Default()
	}
	return func(next handler.Handler) handler.Handler {
		return handler.HandlerFunc(func(ctx context.Context, req *httpcodec.Request) (res *httpcodec.Response) {
			defer func() {
				if p := recover(); p != nil {
					id, _ := handler.SessionID(ctx)
					log.ErrorContext(ctx, "handler panic recovered",
						logger.Component("http"),
						logger.SessionID(id),
						slog.Any("panic", p),
						slog.String("stack", string(debug.Stack())),
					)
					res = fallback(req, fmt.Sprint(p))
				}
			}()
			return next.ServeRequest(ctx, req)
		})
	}
}
