package ratelimiter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/fasttrack/core/logger"
)

const (
	DefaultCleanupInterval = time.Minute
	DefaultStaleAfter      = 10 * time.Minute
)

type bucket struct {
	tokens     int
	lastRefill time.Time
	lastAccess time.Time // read by cleanup
}

// MemoryStore is an in-process Store. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	cancel  context.CancelFunc

	cleanupInterval time.Duration
	staleAfter      time.Duration
	logger          *slog.Logger
	now             func() time.Time

	created atomic.Int64
	removed atomic.Int64
}

// MemoryStoreStats is a snapshot of store counters.
type MemoryStoreStats struct {
	BucketsCreated int64
	BucketsRemoved int64
	ActiveBuckets  int
	IsRunning      bool
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often stale buckets are swept.
func WithCleanupInterval(d time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.cleanupInterval = d
	}
}

// WithStaleAfter sets how long an untouched bucket survives cleanup.
func WithStaleAfter(d time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if d > 0 {
			ms.staleAfter = d
		}
	}
}

// WithMemoryStoreLogger sets the logger for cleanup events.
func WithMemoryStoreLogger(log *slog.Logger) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if log != nil {
			ms.logger = log
		}
	}
}

// NewMemoryStore creates an empty store. Cleanup runs only under Start or Run.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		buckets:         make(map[string]*bucket),
		cleanupInterval: DefaultCleanupInterval,
		staleAfter:      DefaultStaleAfter,
		logger:          logger.Nop(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms
}

// ConsumeTokens implements Store.
func (ms *MemoryStore) ConsumeTokens(_ context.Context, key string, n int, cfg Config) (int, time.Time, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	b, ok := ms.buckets[key]
	if !ok {
		b = &bucket{tokens: cfg.Capacity, lastRefill: now}
		ms.buckets[key] = b
		ms.created.Add(1)
	}
	b.lastAccess = now

	// Whole intervals only; the cap keeps the multiplication from overflowing.
	intervals := min(int64(now.Sub(b.lastRefill)/cfg.RefillInterval), int64(cfg.Capacity/cfg.RefillRate+1))
	if intervals > 0 {
		b.tokens = min(b.tokens+int(intervals)*cfg.RefillRate, cfg.Capacity)
		b.lastRefill = b.lastRefill.Add(time.Duration(intervals) * cfg.RefillInterval)
		if b.tokens == cfg.Capacity {
			b.lastRefill = now
		}
	}

	resetAt := b.lastRefill.Add(cfg.RefillInterval)
	if b.tokens < n {
		return b.tokens - n, resetAt, nil
	}
	b.tokens -= n
	return b.tokens, resetAt, nil
}

// Reset implements Store.
func (ms *MemoryStore) Reset(_ context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.buckets, key)
	return nil
}

// Start sweeps stale buckets until ctx is cancelled or Stop is called.
// It blocks; use Run with errgroup.
func (ms *MemoryStore) Start(ctx context.Context) error {
	if ms.cleanupInterval <= 0 {
		return ErrCleanupDisabled
	}

	ms.mu.Lock()
	if ms.cancel != nil {
		ms.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, ms.cancel = context.WithCancel(ctx)
	ms.mu.Unlock()

	defer func() {
		ms.mu.Lock()
		ms.cancel = nil
		ms.mu.Unlock()
	}()

	ticker := time.NewTicker(ms.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := ms.removeStale(); n > 0 {
				ms.logger.DebugContext(ctx, "rate limiter buckets removed",
					logger.Component("ratelimiter"),
					logger.Count("removed", n),
				)
			}
		}
	}
}

// Stop ends a running Start.
func (ms *MemoryStore) Stop() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.cancel == nil {
		return ErrNotStarted
	}
	ms.cancel()
	return nil
}

// Run provides errgroup compatibility. Cancellation is a clean exit.
func (ms *MemoryStore) Run(ctx context.Context) func() error {
	return func() error {
		err := ms.Start(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
}

func (ms *MemoryStore) removeStale() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	removed := 0
	for key, b := range ms.buckets {
		if now.Sub(b.lastAccess) > ms.staleAfter {
			delete(ms.buckets, key)
			removed++
		}
	}
	ms.removed.Add(int64(removed))
	return removed
}

// Stats returns current counters.
func (ms *MemoryStore) Stats() MemoryStoreStats {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return MemoryStoreStats{
		BucketsCreated: ms.created.Load(),
		BucketsRemoved: ms.removed.Load(),
		ActiveBuckets:  len(ms.buckets),
		IsRunning:      ms.cancel != nil,
	}
}
