package ratelimiter

import (
	"net/http"
	"strconv"
)

// KeyFunc extracts the rate limit key from a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// DeniedResponder writes the response for a request over the limit.
type DeniedResponder func(w http.ResponseWriter, r *http.Request, res *Result)

// ErrorResponder writes the response when the limiter itself fails.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

type middlewareOptions struct {
	denied   DeniedResponder
	onError  ErrorResponder
	failOpen bool
	report   func(r *http.Request, err error)
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareOptions)

// WithDeniedResponder replaces the default plain-text 429 response.
func WithDeniedResponder(fn DeniedResponder) MiddlewareOption {
	return func(o *middlewareOptions) {
		if fn != nil {
			o.denied = fn
		}
	}
}

// WithErrorResponder replaces the default plain-text 500 response.
func WithErrorResponder(fn ErrorResponder) MiddlewareOption {
	return func(o *middlewareOptions) {
		if fn != nil {
			o.onError = fn
		}
	}
}

// WithFailOpen lets requests through when the limiter store fails.
// report, if not nil, is called with the store error.
func WithFailOpen(report func(r *http.Request, err error)) MiddlewareOption {
	return func(o *middlewareOptions) {
		o.failOpen = true
		o.report = report
	}
}

// Middleware limits requests per key and sets the X-RateLimit-* headers.
// Panics if limiter or keyFunc is nil.
func Middleware(limiter RateLimiter, keyFunc KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if limiter == nil {
		panic("ratelimiter: limiter is required")
	}
	if keyFunc == nil {
		panic("ratelimiter: key func is required")
	}

	o := &middlewareOptions{
		denied: func(w http.ResponseWriter, _ *http.Request, _ *Result) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		},
	}
	for _, opt := range opts {
		opt(o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := limiter.Allow(r.Context(), key)
			if err != nil {
				if o.failOpen {
					if o.report != nil {
						o.report(r, err)
					}
					next.ServeHTTP(w, r)
					return
				}
				if o.onError != nil {
					o.onError(w, r, err)
					return
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(max(0, res.Remaining)))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed() {
				if secs := int(res.RetryAfter().Seconds()); secs > 0 {
					h.Set("Retry-After", strconv.Itoa(secs))
				}
				o.denied(w, r, res)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
