package server

import (
	"context"
	"sync"
)

// registry tracks live sessions so shutdown can wait for them or cancel them.
type registry struct {
	mu       sync.Mutex
	sessions map[string]context.CancelFunc
	empty    chan struct{} // closed while no session is live
}

func newRegistry() *registry {
	empty := make(chan struct{})
	close(empty)
	return &registry{
		sessions: make(map[string]context.CancelFunc),
		empty:    empty,
	}
}

func (r *registry) add(id string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) == 0 {
		r.empty = make(chan struct{})
	}
	r.sessions[id] = cancel
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)
	if len(r.sessions) == 0 {
		close(r.empty)
	}
}

// Len returns the number of live sessions.
func (r *registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll cancels every live session and returns how many were cancelled.
// Sessions deregister themselves once their goroutine exits.
func (r *registry) CloseAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cancel := range r.sessions {
		cancel()
	}
	return len(r.sessions)
}

// Wait blocks until no session is live or ctx is done.
func (r *registry) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		if len(r.sessions) == 0 {
			r.mu.Unlock()
			return nil
		}
		empty := r.empty
		r.mu.Unlock()

		select {
		case <-empty:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
