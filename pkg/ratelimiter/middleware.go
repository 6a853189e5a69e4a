package ratelimiter

import (
	"hash/fnv"
	"net/http"
	"strconv"
	"strings"

	"github.com/versecraft/api/pkg/clientip"
)

// maxKeyLength caps rate limit keys to keep storage keys bounded.
const maxKeyLength = 64

// KeyFunc extracts a rate limit key from the request.
type KeyFunc func(r *http.Request) string

// ByClientIP keys the limit on the resolved client IP. Requires the
// clientip middleware to run earlier in the chain; falls back to direct
// resolution when it did not.
func ByClientIP(r *http.Request) string {
	if ip := clientip.GetIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return clientip.GetIP(r)
}

// Composite combines multiple key functions into one.
// Long keys (>64 chars) are hashed using FNV-1a for storage efficiency.
func Composite(keyFuncs ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(keyFuncs))
		for _, fn := range keyFuncs {
			if key := fn(r); key != "" {
				parts = append(parts, key)
			}
		}

		if len(parts) == 0 {
			return ""
		}

		if len(parts) == 1 && len(parts[0]) <= maxKeyLength {
			return parts[0]
		}

		combined := strings.Join(parts, ":")

		if len(combined) > maxKeyLength {
			h := fnv.New64a()
			h.Write([]byte(combined))
			// Base36 for compact output (~13 chars)
			return strconv.FormatUint(h.Sum64(), 36)
		}

		return combined
	}
}

// ErrorHandlerFunc renders a rate limit rejection to the client.
type ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, result *Result)

// Middleware creates an HTTP middleware for rate limiting. The standard
// X-RateLimit-* headers are set on every response; rejected requests also
// carry Retry-After.
func Middleware(tb *Bucket, keyFunc KeyFunc, onReject ErrorHandlerFunc) func(http.Handler) http.Handler {
	if onReject == nil {
		onReject = func(w http.ResponseWriter, r *http.Request, result *Result) {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)

			result, err := tb.Allow(r.Context(), key)
			if err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, result.Remaining)))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed() {
				if retryAfter := int(result.RetryAfter().Seconds()); retryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				}
				onReject(w, r, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
