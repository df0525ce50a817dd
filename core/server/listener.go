package server

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/dmitrymomot/fasttrack/core/handler"
	"github.com/dmitrymomot/fasttrack/core/logger"
	"github.com/dmitrymomot/fasttrack/pkg/ratelimiter"
)

// Listener owns the listening socket and spawns one session per accepted
// connection. Acceptance never waits for a session to make progress.
type Listener struct {
	settings

	mu        sync.Mutex
	ln        net.Listener
	cancelRun context.CancelFunc

	sessions  *registry
	slots     *semaphore.Weighted // nil when sessions are unlimited
	peers     *ratelimiter.Bucket // nil when peer limiting is off
	peerStore *ratelimiter.MemoryStore
	closing   atomic.Bool
	closeOnce sync.Once
}

// NewListener creates a Listener. Call Initialize before Run.
func NewListener(cfg Config, opts ...Option) *Listener {
	l := &Listener{
		settings: newSettings(cfg, opts...),
		sessions: newRegistry(),
	}
	if l.cfg.MaxSessions > 0 {
		l.slots = semaphore.NewWeighted(int64(l.cfg.MaxSessions))
	}
	if l.cfg.PeerConnLimit > 0 {
		l.peerStore = ratelimiter.NewMemoryStore(ratelimiter.WithMemoryStoreLogger(l.logger))
		// withDefaults guarantees a valid bucket config.
		l.peers, _ = ratelimiter.NewBucket(l.peerStore, ratelimiter.Config{
			Capacity:       l.cfg.PeerConnLimit,
			RefillRate:     l.cfg.PeerConnLimit,
			RefillInterval: l.cfg.PeerConnWindow,
		})
	}
	return l
}

// Initialize opens, configures, binds and starts listening on the socket.
// Failures are *SocketSetupError values naming the failed stage.
func (l *Listener) Initialize(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln != nil {
		return ErrListenerInitialized
	}
	// Close sets closing before taking mu, so a socket bound here is
	// always seen and closed by a concurrent Close.
	if l.closing.Load() {
		return ErrListenerClosed
	}

	addr, err := l.cfg.AddrPort()
	if err != nil {
		return err
	}

	ln, err := listenSocket(ctx, addr, l.cfg.Backlog)
	if err != nil {
		var setupErr *SocketSetupError
		if errors.As(err, &setupErr) {
			l.logger.ErrorContext(ctx, "socket setup failed",
				logger.Component("listener"),
				logger.Stage(string(setupErr.Stage)),
				logger.Error(setupErr.Err),
			)
		}
		return err
	}

	l.ln = ln
	l.logger.InfoContext(ctx, "listening",
		logger.Component("listener"),
		logger.LocalAddr(ln.Addr()),
		logger.Key("accept_policy", string(l.cfg.AcceptPolicy)),
	)
	return nil
}

// Addr returns the bound address, or nil before Initialize.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// ActiveSessions returns the number of live sessions.
func (l *Listener) ActiveSessions() int {
	return l.sessions.Len()
}

// Run accepts connections until ctx is cancelled, Close is called, or an
// accept error ends the loop. The first two return nil; the last returns
// the *ListenerError that was logged.
func (l *Listener) Run(ctx context.Context, h handler.Handler) error {
	if h == nil {
		return ErrNilHandler
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	ln := l.ln
	l.cancelRun = cancel
	l.mu.Unlock()
	if ln == nil {
		return ErrListenerNotInitialized
	}
	if l.closing.Load() {
		_ = ln.Close()
		return nil
	}

	stop := context.AfterFunc(runCtx, func() { _ = l.Close() })
	defer stop()

	if l.peerStore != nil {
		go func() { _ = l.peerStore.Start(runCtx) }()
	}

	var (
		retry   *backoff.ExponentialBackOff
		retries int
	)

	for {
		if l.slots != nil {
			if err := l.slots.Acquire(runCtx, 1); err != nil {
				return nil
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			l.releaseSlot()
			if l.closing.Load() {
				return nil
			}

			if l.cfg.AcceptPolicy == AcceptPolicyRetry && isTemporary(err) {
				if retry == nil {
					retry = newAcceptBackoff()
				}
				delay := retry.NextBackOff()
				retries++
				l.logger.WarnContext(ctx, "accept failed, retrying",
					logger.Component("listener"),
					logger.Error(err),
					logger.RetryCount(retries),
					logger.Duration(delay),
				)
				select {
				case <-time.After(delay):
					continue
				case <-runCtx.Done():
					return nil
				}
			}

			lerr := &ListenerError{Addr: ln.Addr().String(), Err: err}
			l.logger.ErrorContext(ctx, "accept loop terminated",
				logger.Component("listener"),
				logger.Error(err),
			)
			l.report(lerr)
			_ = l.Close()
			return lerr
		}

		if retry != nil {
			retry.Reset()
			retries = 0
		}
		if !l.admit(runCtx, conn) {
			l.releaseSlot()
			continue
		}
		l.spawn(ctx, conn, h)
	}
}

// admit applies the per-peer connection limit. Rejected connections are
// closed without a response. Limiter errors let the connection through.
func (l *Listener) admit(ctx context.Context, conn net.Conn) bool {
	if l.peers == nil {
		return true
	}

	res, err := l.peers.Allow(ctx, peerKey(conn.RemoteAddr()))
	if err != nil || res.Allowed() {
		return true
	}

	l.logger.WarnContext(ctx, "connection rate limited",
		logger.Component("listener"),
		logger.RemoteAddr(conn.RemoteAddr()),
		logger.Key("retry_after", res.RetryAfter()),
	)
	_ = conn.Close()
	return false
}

// peerKey identifies the peer host, ignoring the source port.
func peerKey(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}
	if ap, err := netip.ParseAddrPort(addr.String()); err == nil {
		return ap.Addr().Unmap().String()
	}
	return addr.String()
}

// spawn hands conn to a new session goroutine and forgets it; only the
// registry keeps a cancel handle.
func (l *Listener) spawn(ctx context.Context, conn net.Conn, h handler.Handler) {
	id := uuid.NewString()
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.sessions.add(id, cancel)

	s := l.newSession(id, conn, h)
	go func() {
		defer l.releaseSlot()
		defer l.sessions.remove(id)
		defer cancel()
		s.serve(sctx)
	}()
}

// Close stops accepting connections. Live sessions keep running; sessions
// still in keep-alive close after their current response.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.closing.Store(true)

		l.mu.Lock()
		ln, cancel := l.ln, l.cancelRun
		l.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if ln != nil {
			err = ln.Close()
		}
	})
	return err
}

// Shutdown closes the listener and waits for live sessions to finish.
// When ctx expires first, the remaining sessions are cancelled and
// ErrShutdownTimeout is returned.
func (l *Listener) Shutdown(ctx context.Context) error {
	_ = l.Close()

	if err := l.sessions.Wait(ctx); err == nil {
		return nil
	}

	n := l.sessions.CloseAll()
	l.logger.Warn("shutdown timeout exceeded, cancelling sessions",
		logger.Component("listener"),
		logger.Count("sessions", n),
	)

	waitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = l.sessions.Wait(waitCtx)

	return ErrShutdownTimeout
}

func (l *Listener) releaseSlot() {
	if l.slots != nil {
		l.slots.Release(1)
	}
}

func (l *Listener) report(err error) {
	if l.onError != nil {
		l.onError(err)
	}
}

func newAcceptBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = acceptRetryMin
	b.MaxInterval = acceptRetryMax
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// isTemporary reports accept errors worth retrying: timeouts and resource
// exhaustion that may clear once other connections close.
func isTemporary(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.ENOBUFS) ||
		errors.Is(err, syscall.ENOMEM) ||
		errors.Is(err, syscall.ECONNABORTED)
}
