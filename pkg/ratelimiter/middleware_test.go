package ratelimiter_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versecraft/api/pkg/ratelimiter"
)

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("allows within limit and sets headers", func(t *testing.T) {
		t.Parallel()

		tb := newTestBucket(t, ratelimiter.Config{
			Capacity:       2,
			RefillRate:     2,
			RefillInterval: time.Hour,
		})

		handler := ratelimiter.Middleware(tb, ratelimiter.ByClientIP, nil)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("ok"))
			}),
		)

		req := httptest.NewRequest(http.MethodPost, "/poems", nil)
		req.RemoteAddr = "192.0.2.1:1000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("rejects over limit with retry-after", func(t *testing.T) {
		t.Parallel()

		tb := newTestBucket(t, ratelimiter.Config{
			Capacity:       1,
			RefillRate:     1,
			RefillInterval: time.Hour,
		})

		handler := ratelimiter.Middleware(tb, ratelimiter.ByClientIP, nil)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
		)

		req := httptest.NewRequest(http.MethodPost, "/poems", nil)
		req.RemoteAddr = "192.0.2.2:1000"

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	})

	t.Run("custom reject handler", func(t *testing.T) {
		t.Parallel()

		tb := newTestBucket(t, ratelimiter.Config{
			Capacity:       1,
			RefillRate:     1,
			RefillInterval: time.Hour,
		})

		onReject := func(w http.ResponseWriter, r *http.Request, result *ratelimiter.Result) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"success":false}`))
		}

		handler := ratelimiter.Middleware(tb, ratelimiter.ByClientIP, onReject)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
		)

		req := httptest.NewRequest(http.MethodPost, "/poems", nil)
		req.RemoteAddr = "192.0.2.3:1000"

		handler.ServeHTTP(httptest.NewRecorder(), req)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.JSONEq(t, `{"success":false}`, rec.Body.String())
	})
}

func TestComposite(t *testing.T) {
	t.Parallel()

	t.Run("joins parts", func(t *testing.T) {
		t.Parallel()

		key := ratelimiter.Composite(
			func(r *http.Request) string { return "a" },
			func(r *http.Request) string { return "" },
			func(r *http.Request) string { return "b" },
		)(httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, "a:b", key)
	})

	t.Run("hashes long keys", func(t *testing.T) {
		t.Parallel()

		long := strings.Repeat("x", 100)
		key := ratelimiter.Composite(
			func(r *http.Request) string { return long },
			func(r *http.Request) string { return long },
		)(httptest.NewRequest(http.MethodGet, "/", nil))

		assert.LessOrEqual(t, len(key), 16)
	})
}
