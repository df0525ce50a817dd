package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/dmitrymomot/fasttrack/core/handler"
	"github.com/dmitrymomot/fasttrack/core/httpcodec"
	"github.com/dmitrymomot/fasttrack/core/logger"
)

// session owns one accepted connection until it closes. Exchanges on a
// connection are strictly sequential: the next read starts only after the
// previous response was written.
type session struct {
	id       string
	conn     net.Conn
	br       *bufio.Reader // reused for the connection lifetime, keeps pipelined bytes
	handler  handler.Handler
	timeout  time.Duration
	maxBody  int64
	logger   *slog.Logger
	report   func(error)
	draining func() bool
	served   int
}

func (l *Listener) newSession(id string, conn net.Conn, h handler.Handler) *session {
	return &session{
		id:       id,
		conn:     conn,
		br:       bufio.NewReaderSize(conn, httpcodec.DefaultBufferSize),
		handler:  h,
		timeout:  l.cfg.ReadTimeout,
		maxBody:  l.cfg.MaxBodyBytes,
		logger:   l.logger.With(logger.SessionID(id), logger.RemoteAddr(conn.RemoteAddr())),
		report:   l.report,
		draining: l.closing.Load,
	}
}

// serve runs the session loop. Cancelling ctx aborts the pending read or
// write by expiring the connection deadline.
func (s *session) serve(ctx context.Context) {
	start := time.Now()
	s.logger.DebugContext(ctx, "session start")

	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()
	defer func() {
		s.close()
		s.logger.DebugContext(ctx, "session end", logger.Requests(s.served), logger.Elapsed(start))
	}()

	ctx = handler.WithSessionID(ctx, s.id)

	for {
		// Idle -> ReadingRequest
		if err := s.conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
			s.fail(ctx, "read", err)
			return
		}
		if ctx.Err() != nil {
			return
		}

		req, err := httpcodec.ReadRequest(s.br, s.maxBody)
		if err != nil {
			if errors.Is(err, httpcodec.ErrEndOfStream) {
				return
			}
			if ctx.Err() != nil {
				s.logger.DebugContext(ctx, "session cancelled")
				return
			}
			s.fail(ctx, "read", err)
			return
		}

		// Handling
		res, err := s.handle(ctx, req)
		if err != nil {
			s.fail(ctx, "handle", err)
			return
		}

		// WritingResponse
		closeConn := res.NeedEOF()
		if !closeConn && s.draining() {
			res.SetKeepAlive(false)
			closeConn = true
		}

		if _, err := res.WriteTo(s.conn); err != nil {
			s.fail(ctx, "write", err)
			return
		}
		s.served++

		if closeConn {
			return
		}
	}
}

// handle calls the handler, converting a panic or nil response into an error.
func (s *session) handle(ctx context.Context, req *httpcodec.Request) (res *httpcodec.Response, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()

	res = s.handler.ServeRequest(ctx, req)
	if res == nil {
		return nil, ErrNilResponse
	}
	return res, nil
}

// fail logs and reports a session-scoped error. Deadline expiry is expected
// for idle keep-alive peers and logs at debug.
func (s *session) fail(ctx context.Context, op string, err error) {
	serr := &SessionError{SessionID: s.id, Op: op, Err: err}

	level := slog.LevelWarn
	if errors.Is(err, os.ErrDeadlineExceeded) {
		level = slog.LevelDebug
	}
	s.logger.Log(ctx, level, "session error", slog.String("op", op), logger.Error(err))

	if s.report != nil {
		s.report(serr)
	}
}

// close half-closes the write side, ignoring errors, then releases the connection.
func (s *session) close() {
	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}
	_ = s.conn.Close()
}
