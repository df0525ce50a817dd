// Package ratelimiter implements token bucket rate limiting keyed by an
// arbitrary string, such as a peer IP address.
//
// A Bucket applies one Config to many keys and keeps per-key state in a
// Store. MemoryStore is the in-process Store; its background cleanup drops
// buckets that have not been touched for a while.
//
//	store := ratelimiter.NewMemoryStore()
//	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{
//		Capacity:       20,
//		RefillRate:     20,
//		RefillInterval: time.Second,
//	})
//	if err != nil {
//		return err
//	}
//	g.Go(store.Run(ctx))
//
//	res, err := limiter.Allow(ctx, peerIP)
//	if err == nil && !res.Allowed() {
//		// reject, retry after res.RetryAfter()
//	}
//
// A denied request consumes nothing, so a rejected caller regains access as
// soon as the bucket refills.
package ratelimiter
