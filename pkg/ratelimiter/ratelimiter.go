package ratelimiter

import (
	"context"
	"fmt"
	"time"
)

// Config describes a token bucket: Capacity tokens at most, RefillRate
// tokens added every RefillInterval.
type Config struct {
	Capacity       int
	RefillRate     int
	RefillInterval time.Duration
}

// Validate reports whether the bucket parameters are usable.
func (c Config) Validate() error {
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	case c.RefillRate <= 0:
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, c.RefillRate)
	case c.RefillInterval <= 0:
		return fmt.Errorf("%w: refill interval must be positive, got %s", ErrInvalidConfig, c.RefillInterval)
	}
	return nil
}

// Store keeps bucket state per key. ConsumeTokens takes n tokens only when
// that many are available; remaining is negative when the request was denied.
type Store interface {
	ConsumeTokens(ctx context.Context, key string, n int, cfg Config) (remaining int, resetAt time.Time, err error)
	Reset(ctx context.Context, key string) error
}

// Result is the outcome of one Allow call.
type Result struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Allowed reports whether the tokens were granted.
func (r Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter is how long until the next refill. Zero for granted results.
func (r Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	return max(time.Until(r.ResetAt), 0)
}

// Bucket applies one Config to any number of keys.
type Bucket struct {
	store Store
	cfg   Config
}

// NewBucket validates cfg and binds it to store.
func NewBucket(store Store, cfg Config) (*Bucket, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Bucket{store: store, cfg: cfg}, nil
}

// Allow consumes one token for key.
func (b *Bucket) Allow(ctx context.Context, key string) (Result, error) {
	return b.AllowN(ctx, key, 1)
}

// AllowN consumes n tokens for key, all or nothing.
func (b *Bucket) AllowN(ctx context.Context, key string, n int) (Result, error) {
	if n <= 0 || n > b.cfg.Capacity {
		return Result{}, fmt.Errorf("%w: %d (capacity %d)", ErrInvalidTokenCount, n, b.cfg.Capacity)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	remaining, resetAt, err := b.store.ConsumeTokens(ctx, key, n, b.cfg)
	if err != nil {
		return Result{}, err
	}
	return Result{Limit: b.cfg.Capacity, Remaining: remaining, ResetAt: resetAt}, nil
}

// Reset restores key to a full bucket.
func (b *Bucket) Reset(ctx context.Context, key string) error {
	return b.store.Reset(ctx, key)
}
