package ratelimiter

import "time"

// Result is the state of a bucket after a request.
type Result struct {
	Limit     int       // bucket capacity
	Remaining int       // tokens left; negative when the request was denied
	ResetAt   time.Time // next refill
}

// Allowed reports whether the request fit in the bucket.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns how long a denied caller should wait. Zero when allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	return max(time.Until(r.ResetAt), 0)
}

// Config describes a token bucket.
type Config struct {
	Capacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"10"`        // burst size
	RefillRate     int           `env:"RATE_LIMIT_REFILL_RATE" envDefault:"1"`      // tokens per interval
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"6s"` // refill period
}

func (c Config) validate() error {
	switch {
	case c.Capacity <= 0:
		return errInvalidConfig("capacity must be positive, got %d", c.Capacity)
	case c.RefillRate <= 0:
		return errInvalidConfig("refill rate must be positive, got %d", c.RefillRate)
	case c.RefillInterval <= 0:
		return errInvalidConfig("refill interval must be positive, got %v", c.RefillInterval)
	}
	return nil
}

// refill returns the token count after the time elapsed since lastRefill,
// and whether any interval passed.
func (c Config) refill(tokens int, elapsed time.Duration) (int, bool) {
	// Bounded so a long idle bucket cannot overflow.
	maxIntervals := int64(c.Capacity/c.RefillRate + 1)
	intervals := int(min(int64(elapsed/c.RefillInterval), maxIntervals))
	if intervals <= 0 {
		return tokens, false
	}
	return min(tokens+intervals*c.RefillRate, c.Capacity), true
}
