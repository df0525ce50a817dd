package server

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/fasttrack/core/logger"
)

// settings are shared by Server and Listener.
type settings struct {
	cfg     Config
	logger  *slog.Logger
	onError func(error)
}

// Option configures server and listener behavior.
type Option func(*settings)

func newSettings(cfg Config, opts ...Option) settings {
	s := settings{
		cfg:    cfg,
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	s.cfg = s.cfg.withDefaults()
	return s
}

// WithLogger sets a custom logger for server operations.
func WithLogger(log *slog.Logger) Option {
	return func(s *settings) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithErrorReporter receives every ListenerError and SessionError after it
// has been logged. It is called from session goroutines concurrently.
func WithErrorReporter(fn func(error)) Option {
	return func(s *settings) {
		s.onError = fn
	}
}

// WithReadTimeout sets the deadline for one request/response exchange.
func WithReadTimeout(timeout time.Duration) Option {
	return func(s *settings) {
		s.cfg.ReadTimeout = timeout
	}
}

// WithShutdownTimeout sets the maximum time to wait for graceful shutdown.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(s *settings) {
		s.cfg.ShutdownTimeout = timeout
	}
}

// WithAcceptPolicy sets the accept error policy.
func WithAcceptPolicy(policy AcceptPolicy) Option {
	return func(s *settings) {
		s.cfg.AcceptPolicy = policy
	}
}

// WithMaxSessions limits concurrently open sessions. 0 disables the limit.
func WithMaxSessions(n int) Option {
	return func(s *settings) {
		s.cfg.MaxSessions = n
	}
}

// WithMaxBodyBytes sets the largest request body a session accepts.
func WithMaxBodyBytes(n int64) Option {
	return func(s *settings) {
		s.cfg.MaxBodyBytes = n
	}
}

// WithPeerConnLimit caps how many connections one peer IP may open per
// window. Excess connections are closed right after accept. 0 disables it.
func WithPeerConnLimit(n int, window time.Duration) Option {
	return func(s *settings) {
		s.cfg.PeerConnLimit = n
		s.cfg.PeerConnWindow = window
	}
}
