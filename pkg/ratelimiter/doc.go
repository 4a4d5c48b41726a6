// Package ratelimiter provides token bucket rate limiting with in-memory and
// Redis stores and an HTTP middleware.
//
// A bucket holds up to Capacity tokens and gains RefillRate tokens every
// RefillInterval. Each request takes one token; a request that drives the
// count below zero is denied and the debt is kept.
//
//	store := ratelimiter.NewMemoryStore()
//	defer store.Close()
//
//	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{
//		Capacity:       10,
//		RefillRate:     1,
//		RefillInterval: 6 * time.Second,
//	})
//	if err != nil {
//		return err
//	}
//
//	r.With(ratelimiter.Middleware(limiter, keyFunc)).Get("/complete", h.complete)
//
// Use NewRedisStore to share buckets between instances. The refill and debit
// run in a single Lua script, so concurrent requests across processes see a
// consistent count.
//
// The middleware sets X-RateLimit-Limit, X-RateLimit-Remaining,
// X-RateLimit-Reset and, on denial, Retry-After.
package ratelimiter
