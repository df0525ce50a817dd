package server_test

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fasttrack/app/status"
	"github.com/dmitrymomot/fasttrack/core/httpcodec"
	"github.com/dmitrymomot/fasttrack/core/server"
)

func TestSessionStatusRoute(t *testing.T) {
	t.Parallel()

	t.Run("GET returns the status document", func(t *testing.T) {
		t.Parallel()
		_, addr := startListener(t)
		c := dial(t, addr)

		c.send(getRoot)
		res, body := c.response(http.MethodGet)

		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, status.Body, body)
		assert.Equal(t, int64(19), res.ContentLength)
		assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
		assert.Equal(t, status.DefaultServerName, res.Header.Get("Server"))
		assert.Equal(t, []string{"z=123", "x=456"}, res.Header.Values("Set-Cookie"))
	})

	t.Run("HEAD declares the length and sends no body", func(t *testing.T) {
		t.Parallel()
		_, addr := startListener(t)
		c := dial(t, addr)

		c.send(headRoot)
		res, body := c.response(http.MethodHead)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "19", res.Header.Get("Content-Length"))
		assert.Empty(t, body)
		assert.Empty(t, res.Header.Values("Set-Cookie"))

		// A body byte after the HEAD response would corrupt the next status line.
		c.send(getRoot)
		res, body = c.response(http.MethodGet)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, status.Body, body)
	})

	t.Run("unknown target is not found", func(t *testing.T) {
		t.Parallel()
		_, addr := startListener(t)

		for _, target := range []string{"/x", "/a/../b", "/index.html"} {
			c := dial(t, addr)
			c.send("GET " + target + " HTTP/1.1\r\nHost: test\r\n\r\n")
			res, body := c.response(http.MethodGet)
			assert.Equal(t, http.StatusNotFound, res.StatusCode, target)
			assert.Contains(t, body, target)
			assert.Equal(t, "text/html", res.Header.Get("Content-Type"))
			assert.Equal(t, status.DefaultServerName, res.Header.Get("Server"))
		}
	})

	t.Run("unsupported method is a bad request", func(t *testing.T) {
		t.Parallel()
		_, addr := startListener(t)
		c := dial(t, addr)

		c.send("POST / HTTP/1.1\r\nHost: test\r\nContent-Length: 3\r\n\r\nabc")
		res, body := c.response(http.MethodPost)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		assert.Equal(t, "Not supported HTTP-method", body)

		// The body was consumed, so the connection is still usable.
		c.send(getRoot)
		res, _ = c.response(http.MethodGet)
		assert.Equal(t, http.StatusOK, res.StatusCode)
	})
}

func TestSessionKeepAlive(t *testing.T) {
	t.Parallel()

	t.Run("serves sequential requests on one connection", func(t *testing.T) {
		t.Parallel()
		_, addr := startListener(t)
		c := dial(t, addr)

		var bodies []string
		for range 3 {
			c.send(getRoot)
			res, body := c.response(http.MethodGet)
			require.Equal(t, http.StatusOK, res.StatusCode)
			assert.False(t, res.Close)
			bodies = append(bodies, body)
		}
		assert.Equal(t, []string{status.Body, status.Body, status.Body}, bodies)
	})

	t.Run("answers pipelined requests in order", func(t *testing.T) {
		t.Parallel()
		_, addr := startListener(t)
		c := dial(t, addr)

		c.send(getRoot + "GET /missing HTTP/1.1\r\nHost: test\r\n\r\n" + headRoot)

		res, _ := c.response(http.MethodGet)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		res, _ = c.response(http.MethodGet)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
		res, body := c.response(http.MethodHead)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Empty(t, body)
	})

	t.Run("Connection close ends the session", func(t *testing.T) {
		t.Parallel()
		_, addr := startListener(t)
		c := dial(t, addr)

		c.send("GET / HTTP/1.1\r\nHost: test\r\nConnection: close\r\n\r\n")
		res, _ := c.response(http.MethodGet)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.True(t, res.Close)
		assert.True(t, c.closedWithoutResponse(time.Second))
	})

	t.Run("HTTP/1.0 closes unless keep-alive is requested", func(t *testing.T) {
		t.Parallel()
		_, addr := startListener(t)

		c := dial(t, addr)
		c.send("GET / HTTP/1.0\r\n\r\n")
		res, _ := c.response(http.MethodGet)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.True(t, c.closedWithoutResponse(time.Second))

		c = dial(t, addr)
		c.send("GET / HTTP/1.0\r\nConnection: keep-alive\r\n\r\n")
		res, _ = c.response(http.MethodGet)
		assert.Equal(t, "keep-alive", strings.ToLower(res.Header.Get("Connection")))
		c.send("GET / HTTP/1.0\r\n\r\n")
		res, _ = c.response(http.MethodGet)
		assert.Equal(t, http.StatusOK, res.StatusCode)
	})

	t.Run("identical requests produce identical responses", func(t *testing.T) {
		t.Parallel()
		_, addr := startListener(t)
		c := dial(t, addr)

		c.send(getRoot)
		first, firstBody := c.response(http.MethodGet)
		c.send(getRoot)
		second, secondBody := c.response(http.MethodGet)

		assert.Equal(t, first.StatusCode, second.StatusCode)
		assert.Equal(t, first.Header, second.Header)
		assert.Equal(t, firstBody, secondBody)
	})
}

func TestSessionTimeout(t *testing.T) {
	t.Parallel()

	t.Run("silent peer is closed without a response", func(t *testing.T) {
		t.Parallel()
		errs := &errorCollector{}
		_, addr := startListener(t, server.WithErrorReporter(errs.report))
		c := dial(t, addr)

		start := time.Now()
		assert.True(t, c.closedWithoutResponse(2*time.Second))
		assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)

		require.Eventually(t, func() bool { return len(errs.all()) == 1 }, time.Second, 10*time.Millisecond)
		var serr *server.SessionError
		require.ErrorAs(t, errs.all()[0], &serr)
		assert.Equal(t, "read", serr.Op)
		assert.ErrorIs(t, serr, server.ErrSession)
	})

	t.Run("partial request is closed without a response", func(t *testing.T) {
		t.Parallel()
		_, addr := startListener(t)
		c := dial(t, addr)

		c.send("GET / HTTP/1.1\r\nHost: te")
		assert.True(t, c.closedWithoutResponse(2*time.Second))
	})

	t.Run("idle keep-alive connection times out after a response", func(t *testing.T) {
		t.Parallel()
		l, addr := startListener(t)
		c := dial(t, addr)

		c.send(getRoot)
		res, _ := c.response(http.MethodGet)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.True(t, c.closedWithoutResponse(2*time.Second))
		require.Eventually(t, func() bool { return l.ActiveSessions() == 0 }, time.Second, 10*time.Millisecond)
	})
}

func TestSessionMalformedRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "garbage request line", raw: "hello\r\n\r\n", want: httpcodec.ErrMalformedRequest},
		{name: "unsupported version", raw: "GET / HTTP/2.0\r\n\r\n", want: httpcodec.ErrUnsupportedVersion},
		{name: "double space before target", raw: "GET  / HTTP/1.1\r\n\r\n", want: httpcodec.ErrMalformedRequest},
		{name: "signed content length", raw: "POST / HTTP/1.1\r\nContent-Length: +3\r\n\r\nabc", want: httpcodec.ErrMalformedRequest},
		{name: "header without colon", raw: "GET / HTTP/1.1\r\nbroken\r\n\r\n", want: httpcodec.ErrMalformedRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			errs := &errorCollector{}
			_, addr := startListener(t, server.WithErrorReporter(errs.report))
			c := dial(t, addr)

			c.send(tt.raw)
			assert.True(t, c.closedWithoutResponse(2*time.Second))

			require.Eventually(t, func() bool { return len(errs.all()) == 1 }, time.Second, 10*time.Millisecond)
			err := errs.all()[0]
			assert.ErrorIs(t, err, server.ErrSession)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	t.Parallel()

	_, addr := startListener(t, server.WithReadTimeout(3*time.Second))

	// A stalled peer holds its session in ReadingRequest.
	slow := dial(t, addr)
	slow.send("GET / HTTP/1.1\r\n")

	type result struct {
		code int
		err  error
	}

	const clients = 20
	start := time.Now()
	var wg sync.WaitGroup
	results := make(chan result, clients)
	for range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := getStatus(addr)
			results <- result{code: code, err: err}
		}()
	}
	wg.Wait()
	close(results)

	assert.Less(t, time.Since(start), 2*time.Second)
	count := 0
	for r := range results {
		if assert.NoError(t, r.err) {
			assert.Equal(t, http.StatusOK, r.code)
		}
		count++
	}
	assert.Equal(t, clients, count)
}

// getStatus performs one GET on a fresh connection. It is safe to call from
// any goroutine.
func getStatus(addr string) (int, error) {
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return 0, err
	}
	if _, err := io.WriteString(conn, getRoot); err != nil {
		return 0, err
	}
	res, err := http.ReadResponse(bufio.NewReader(conn), &http.Request{Method: http.MethodGet})
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if _, err := io.Copy(io.Discard, res.Body); err != nil {
		return 0, err
	}
	return res.StatusCode, nil
}

func TestSessionEndOfStream(t *testing.T) {
	t.Parallel()

	t.Run("peer closes before sending anything", func(t *testing.T) {
		t.Parallel()
		errs := &errorCollector{}
		l, addr := startListener(t, server.WithErrorReporter(errs.report), server.WithReadTimeout(5*time.Second))
		c := dial(t, addr)
		require.Eventually(t, func() bool { return l.ActiveSessions() == 1 }, time.Second, 5*time.Millisecond)

		require.NoError(t, c.conn.Close())

		require.Eventually(t, func() bool { return l.ActiveSessions() == 0 }, 2*time.Second, 5*time.Millisecond)
		assert.Empty(t, errs.all())
	})

	t.Run("peer closes between requests", func(t *testing.T) {
		t.Parallel()
		errs := &errorCollector{}
		l, addr := startListener(t, server.WithErrorReporter(errs.report), server.WithReadTimeout(5*time.Second))
		c := dial(t, addr)

		c.send(getRoot)
		res, _ := c.response(http.MethodGet)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.False(t, res.Close)

		require.NoError(t, c.conn.Close())

		require.Eventually(t, func() bool { return l.ActiveSessions() == 0 }, 2*time.Second, 5*time.Millisecond)
		assert.Empty(t, errs.all())
	})
}

func TestListenerMaxSessions(t *testing.T) {
	t.Parallel()

	l, addr := startListener(t, server.WithMaxSessions(1), server.WithReadTimeout(3*time.Second))

	first := dial(t, addr)
	require.Eventually(t, func() bool { return l.ActiveSessions() == 1 }, time.Second, 5*time.Millisecond)

	second := dial(t, addr)
	second.send(getRoot)

	// The second connection waits in the backlog while the slot is taken.
	require.NoError(t, second.conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, err := second.br.Peek(1)
	var ne interface{ Timeout() bool }
	require.True(t, errors.As(err, &ne) && ne.Timeout(), "unexpected early response: %v", err)

	require.NoError(t, first.conn.Close())

	require.NoError(t, second.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	res, body := second.response(http.MethodGet)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, status.Body, body)
}
