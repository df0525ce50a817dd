package status

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/fasttrack/core/httpcodec"
	"github.com/dmitrymomot/fasttrack/core/logger"
)

const (
	// Route is the only target served.
	Route = "/"

	// Body is the fixed JSON payload of a successful response.
	Body = `{ "status" : "200" }`

	// DefaultServerName identifies the server in the Server field.
	DefaultServerName = "fasttrack/1.0"

	contentTypeJSON = "application/json"
	contentTypeHTML = "text/html"
)

var (
	successCookies = []string{"z=123", "x=456"}
	okBody         = []byte(Body)
)

// Handler answers GET and HEAD on the root path with a fixed JSON status.
// It has no mutable state and is safe for concurrent use.
type Handler struct {
	serverName string
	logger     *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithServerName overrides the Server field value.
func WithServerName(name string) Option {
	return func(h *Handler) {
		if name != "" {
			h.serverName = name
		}
	}
}

// WithLogger sets the logger that receives cookie observations.
func WithLogger(log *slog.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.logger = log
		}
	}
}

// New creates a Handler.
func New(opts ...Option) *Handler {
	h := &Handler{
		serverName: DefaultServerName,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeRequest implements handler.Handler. It never returns nil.
func (h *Handler) ServeRequest(ctx context.Context, req *httpcodec.Request) *httpcodec.Response {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		return h.badRequest(req, "Not supported HTTP-method")
	}

	if req.Target == "" || req.Target != Route || strings.Contains(req.Target, "..") {
		return h.notFound(req, req.Target)
	}

	h.observeCookies(ctx, req)

	res := h.newResponse(http.StatusOK, req, contentTypeJSON)
	res.Body = okBody
	if req.Method == http.MethodHead {
		res.HeadOnly = true
		return res
	}

	for _, c := range successCookies {
		res.Header.Add(httpcodec.HeaderSetCookie, c)
	}
	return res
}

// observeCookies logs every cookie parameter. It never affects the response.
func (h *Handler) observeCookies(ctx context.Context, req *httpcodec.Request) {
	for _, v := range req.Header.Values(httpcodec.HeaderCookie) {
		for name, value := range httpcodec.Params(v) {
			h.logger.DebugContext(ctx, "cookie received", logger.Cookie(name, value))
		}
	}
}

func (h *Handler) newResponse(code int, req *httpcodec.Request, contentType string) *httpcodec.Response {
	res := httpcodec.NewResponse(code, req)
	res.Header.Set(httpcodec.HeaderServer, h.serverName)
	res.Header.Set(httpcodec.HeaderContentType, contentType)
	res.SetKeepAlive(req.KeepAlive())
	return res
}

func (h *Handler) badRequest(req *httpcodec.Request, reason string) *httpcodec.Response {
	res := h.newResponse(http.StatusBadRequest, req, contentTypeHTML)
	res.Body = []byte(reason)
	return res
}

func (h *Handler) notFound(req *httpcodec.Request, target string) *httpcodec.Response {
	res := h.newResponse(http.StatusNotFound, req, contentTypeHTML)
	res.Body = []byte("Resource '" + target + "' not found.")
	return res
}

// InternalError builds the 500 response. ServeRequest never produces it;
// middleware.Recover uses it as the panic fallback.
func InternalError(req *httpcodec.Request, msg string) *httpcodec.Response {
	if req == nil {
		req = &httpcodec.Request{ProtoMajor: 1, ProtoMinor: 1}
	}
	res := httpcodec.NewResponse(http.StatusInternalServerError, req)
	res.Header.Set(httpcodec.HeaderServer, DefaultServerName)
	res.Header.Set(httpcodec.HeaderContentType, contentTypeHTML)
	res.SetKeepAlive(req.KeepAlive())
	res.Body = []byte("Server Error: " + msg)
	return res
}
