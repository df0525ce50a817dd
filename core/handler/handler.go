package handler

import (
	"context"

	"github.com/dmitrymomot/fasttrack/core/httpcodec"
)

// Handler maps one request to one response. It must not fail: problems are
// reported as 4xx/5xx responses. Implementations are called concurrently
// from many sessions.
type Handler interface {
	ServeRequest(ctx context.Context, req *httpcodec.Request) *httpcodec.Response
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(ctx context.Context, req *httpcodec.Request) *httpcodec.Response

// ServeRequest calls f(ctx, req).
func (f HandlerFunc) ServeRequest(ctx context.Context, req *httpcodec.Request) *httpcodec.Response {
	return f(ctx, req)
}

// Middleware wraps a handler to add cross-cutting behavior.
type Middleware func(next Handler) Handler

// Chain applies middlewares so that the first one is outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type sessionIDKey struct{}

// WithSessionID stores the id of the session serving the request.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, id)
}

// SessionID returns the id stored by WithSessionID.
func SessionID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey{}).(string)
	return id, ok
}
