package server

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/dmitrymomot/fasttrack/core/handler"
	"github.com/dmitrymomot/fasttrack/core/logger"
)

// Server binds a Listener to a worker pool and adds graceful shutdown.
// Safe for concurrent use.
type Server struct {
	settings

	mu       sync.RWMutex
	opts     []Option
	listener *Listener
	running  bool
}

// New creates a Server listening on address:port with default settings.
func New(address string, port uint16, opts ...Option) *Server {
	cfg := DefaultConfig()
	cfg.Address = address
	cfg.Port = port
	return &Server{settings: newSettings(cfg, opts...), opts: opts}
}

// NewFromConfig creates a Server from configuration. Options override config
// values. The worker count is clamped to at least 1.
func NewFromConfig(cfg Config, opts ...Option) (*Server, error) {
	s := &Server{settings: newSettings(cfg, opts...), opts: opts}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Config returns the effective configuration.
func (s *Server) Config() Config {
	return s.cfg
}

// Start sizes the worker pool, sets up the listening socket and runs the
// accept loop. It blocks until the loop ends and returns ctx.Err() when ctx
// was cancelled, a *SocketSetupError when setup failed, or a *ListenerError
// when an accept error ended the loop.
func (s *Server) Start(ctx context.Context, h handler.Handler) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrServerAlreadyRunning
	}
	s.running = true
	l := NewListener(s.cfg, s.opts...)
	s.listener = l
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.InfoContext(ctx, "starting server",
		logger.Component("server"),
		logger.Count("workers", s.cfg.Workers),
		logger.Timeout(s.cfg.ReadTimeout),
	)

	if err := l.Initialize(ctx); err != nil {
		if errors.Is(err, ErrListenerClosed) {
			// Stopped before the socket was bound.
			return ctx.Err()
		}
		return err
	}

	if err := l.Run(ctx, h); err != nil {
		return err
	}
	return ctx.Err()
}

// Stop closes the listener and waits up to the shutdown timeout for live
// sessions; sessions still open after that are cancelled.
// Returns immediately if the server was never started.
func (s *Server) Stop() error {
	s.mu.RLock()
	l := s.listener
	s.mu.RUnlock()

	if l == nil {
		return nil
	}

	s.logger.Info("shutting down server gracefully",
		logger.Component("server"),
		logger.Timeout(s.cfg.ShutdownTimeout),
		logger.Count("sessions", l.ActiveSessions()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := l.Shutdown(ctx); err != nil {
		s.logger.Error("server shutdown error", logger.Component("server"), logger.Error(err))
		return err
	}

	s.logger.Info("server shutdown complete", logger.Component("server"))
	return nil
}

// Addr returns the bound address once the listener is initialized, else nil.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	l := s.listener
	s.mu.RUnlock()
	if l == nil {
		return nil
	}
	return l.Addr()
}

// ActiveSessions returns the number of open connections being served.
func (s *Server) ActiveSessions() int {
	s.mu.RLock()
	l := s.listener
	s.mu.RUnlock()
	if l == nil {
		return 0
	}
	return l.ActiveSessions()
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// The returned function starts the server and performs graceful shutdown
// when ctx is cancelled.
func (s *Server) Run(ctx context.Context, h handler.Handler) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Start(ctx, h)
		}()

		select {
		case <-ctx.Done():
			if stopErr := s.Stop(); stopErr != nil {
				s.logger.Error("failed to stop server during context cancellation", logger.Error(stopErr))
			}
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// Run is a convenience function that creates and runs a server with default settings.
func Run(ctx context.Context, address string, port uint16, h handler.Handler) error {
	return New(address, port).Start(ctx, h)
}
