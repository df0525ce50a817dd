package server_test

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fasttrack/app/status"
	"github.com/dmitrymomot/fasttrack/core/server"
)

// errorCollector gathers errors passed to WithErrorReporter.
type errorCollector struct {
	mu   sync.Mutex
	errs []error
}

func (c *errorCollector) report(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func (c *errorCollector) all() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.errs...)
}

func testConfig() server.Config {
	cfg := server.DefaultConfig()
	cfg.Address = "127.0.0.1"
	cfg.Port = 0
	cfg.ReadTimeout = 200 * time.Millisecond
	return cfg
}

// startListener runs a listener serving the status handler on a loopback port.
func startListener(t *testing.T, opts ...server.Option) (*server.Listener, string) {
	t.Helper()

	l := server.NewListener(testConfig(), opts...)
	require.NoError(t, l.Initialize(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx, status.New())
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)

		shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
		defer stop()
		_ = l.Shutdown(shutdownCtx)
	})

	return l, l.Addr().String()
}

type client struct {
	t    *testing.T
	conn net.Conn
	br   *bufio.Reader
}

func dial(t *testing.T, addr string) *client {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	return &client{t: t, conn: conn, br: bufio.NewReader(conn)}
}

func (c *client) send(raw string) {
	c.t.Helper()
	_, err := io.WriteString(c.conn, raw)
	require.NoError(c.t, err)
}

// response reads one response; method decides whether a body follows.
func (c *client) response(method string) (*http.Response, string) {
	c.t.Helper()
	res, err := http.ReadResponse(c.br, &http.Request{Method: method})
	require.NoError(c.t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(c.t, err)
	require.NoError(c.t, res.Body.Close())
	return res, string(body)
}

// closedWithoutResponse reports whether the server closed the connection
// without sending a single byte.
func (c *client) closedWithoutResponse(within time.Duration) bool {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(within)))
	buf := make([]byte, 1)
	n, err := c.br.Read(buf)
	if n != 0 || err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return false
	}
	return true
}

const (
	getRoot  = "GET / HTTP/1.1\r\nHost: test\r\n\r\n"
	headRoot = "HEAD / HTTP/1.1\r\nHost: test\r\n\r\n"
)
