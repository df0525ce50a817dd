package middleware_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fasttrack/app/status"
	"github.com/dmitrymomot/fasttrack/core/handler"
	"github.com/dmitrymomot/fasttrack/core/httpcodec"
	"github.com/dmitrymomot/fasttrack/middleware"
)

func TestRecover(t *testing.T) {
	t.Parallel()

	t.Run("panic becomes the fallback response", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, nil))

		panicking := handler.HandlerFunc(func(context.Context, *httpcodec.Request) *httpcodec.Response {
			panic("database on fire")
		})
		h := handler.Chain(panicking, middleware.Recover(log, status.InternalError))

		ctx := handler.WithSessionID(context.Background(), "s-1")
		res := h.ServeRequest(ctx, newRequest(http.MethodGet, "/"))

		require.NotNil(t, res)
		assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
		assert.Equal(t, "Server Error: database on fire", string(res.Body))
		assert.True(t, res.KeepAlive())

		rec := decode(t, &buf)
		assert.Equal(t, "handler panic recovered", rec["msg"])
		assert.Equal(t, "s-1", rec["session_id"])
		assert.Equal(t, "database on fire", rec["panic"])
		assert.NotEmpty(t, rec["stack"])
	})

	t.Run("passes through without panic", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&buf, nil))

		h := handler.Chain(statusHandler(http.StatusOK), middleware.Recover(log, status.InternalError))
		res := h.ServeRequest(context.Background(), newRequest(http.MethodGet, "/"))

		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Zero(t, buf.Len())
	})
}
