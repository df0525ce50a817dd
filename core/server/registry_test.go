package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	t.Run("wait returns immediately when empty", func(t *testing.T) {
		t.Parallel()
		r := newRegistry()
		assert.NoError(t, r.Wait(context.Background()))
		assert.Zero(t, r.Len())
	})

	t.Run("wait blocks until the last session leaves", func(t *testing.T) {
		t.Parallel()
		r := newRegistry()
		r.add("a", func() {})
		r.add("b", func() {})
		assert.Equal(t, 2, r.Len())

		done := make(chan error, 1)
		go func() { done <- r.Wait(context.Background()) }()

		r.remove("a")
		select {
		case <-done:
			t.Fatal("wait returned with a live session")
		case <-time.After(20 * time.Millisecond):
		}

		r.remove("b")
		require.NoError(t, <-done)

		// Removing an unknown id must not close the channel twice.
		r.remove("b")
	})

	t.Run("wait honours the context", func(t *testing.T) {
		t.Parallel()
		r := newRegistry()
		r.add("a", func() {})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
	})

	t.Run("close all cancels every session", func(t *testing.T) {
		t.Parallel()
		r := newRegistry()
		cancelled := make(chan string, 2)
		r.add("a", func() { cancelled <- "a" })
		r.add("b", func() { cancelled <- "b" })

		assert.Equal(t, 2, r.CloseAll())
		assert.ElementsMatch(t, []string{"a", "b"}, []string{<-cancelled, <-cancelled})

		// Sessions deregister themselves.
		assert.Equal(t, 2, r.Len())
	})

	t.Run("reusable after draining", func(t *testing.T) {
		t.Parallel()
		r := newRegistry()
		r.add("a", func() {})
		r.remove("a")
		r.add("b", func() {})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.Error(t, r.Wait(ctx))
	})
}
