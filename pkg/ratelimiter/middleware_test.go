package ratelimiter_test

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billing/pkg/ratelimiter"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func userKey(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func serve(h http.Handler, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/complete", nil)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("sets headers and denies over the limit", func(t *testing.T) {
		t.Parallel()
		b, _ := newTestBucket(t, newClock())
		h := ratelimiter.Middleware(b, userKey)(okHandler())

		for i := range testConfig.Capacity {
			rec := serve(h, "u1")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
			assert.Equal(t, strconv.Itoa(testConfig.Capacity-i-1), rec.Header().Get("X-RateLimit-Remaining"))
			assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
		}

		rec := serve(h, "u1")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

		assert.Equal(t, http.StatusOK, serve(h, "u2").Code)
	})

	t.Run("empty key bypasses the limiter", func(t *testing.T) {
		t.Parallel()
		b, _ := newTestBucket(t, newClock())
		h := ratelimiter.Middleware(b, userKey)(okHandler())

		for range 10 {
			rec := serve(h, "")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
		}
	})

	t.Run("custom denied responder", func(t *testing.T) {
		t.Parallel()
		b, _ := newTestBucket(t, newClock())
		h := ratelimiter.Middleware(b, userKey, ratelimiter.WithDeniedResponder(
			func(w http.ResponseWriter, _ *http.Request, res *ratelimiter.Result) {
				assert.False(t, res.Allowed())
				w.WriteHeader(http.StatusTeapot)
			},
		))(okHandler())

		for range testConfig.Capacity {
			serve(h, "u1")
		}
		assert.Equal(t, http.StatusTeapot, serve(h, "u1").Code)
	})

	t.Run("store failure fails closed by default", func(t *testing.T) {
		t.Parallel()
		b, err := ratelimiter.NewBucket(failingStore{}, testConfig)
		require.NoError(t, err)

		assert.Equal(t, http.StatusInternalServerError, serve(ratelimiter.Middleware(b, userKey)(okHandler()), "u1").Code)

		h := ratelimiter.Middleware(b, userKey, ratelimiter.WithErrorResponder(
			func(w http.ResponseWriter, _ *http.Request, err error) {
				assert.ErrorIs(t, err, errStoreDown)
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		))(okHandler())
		assert.Equal(t, http.StatusServiceUnavailable, serve(h, "u1").Code)
	})

	t.Run("fail open", func(t *testing.T) {
		t.Parallel()
		b, err := ratelimiter.NewBucket(failingStore{}, testConfig)
		require.NoError(t, err)

		var reported error
		h := ratelimiter.Middleware(b, userKey, ratelimiter.WithFailOpen(func(_ *http.Request, err error) {
			reported = err
		}))(okHandler())

		assert.Equal(t, http.StatusOK, serve(h, "u1").Code)
		assert.ErrorIs(t, reported, ratelimiter.ErrStoreUnavailable)
	})

	t.Run("panics on nil arguments", func(t *testing.T) {
		t.Parallel()
		b, _ := newTestBucket(t, newClock())
		assert.Panics(t, func() { ratelimiter.Middleware(nil, userKey) })
		assert.Panics(t, func() { ratelimiter.Middleware(b, nil) })
	})
}
