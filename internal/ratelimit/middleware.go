package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// KeyFunc extracts the tenant and user for a request. An empty tenant id
// skips the check: unauthenticated traffic is someone else's problem
// (the auth middleware runs first).
type KeyFunc func(r *http.Request) (tenantID, userID string)

// Options configures the middleware for one guarded function
type Options struct {
	FunctionName  string
	MaxPerWindow  int
	WindowSeconds int
	KeyFn         KeyFunc
}

// Middleware gates a handler with the sliding-window check. On denial it
// responds 429 with X-RateLimit-Remaining, X-RateLimit-Reset and a fixed
// Retry-After of one window.
func Middleware(store CounterStore, opts Options) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, userID := "", ""
			if opts.KeyFn != nil {
				tenantID, userID = opts.KeyFn(r)
			}
			if tenantID == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := Check(r.Context(), store, Request{
				TenantID:      tenantID,
				UserID:        userID,
				FunctionName:  opts.FunctionName,
				MaxPerWindow:  opts.MaxPerWindow,
				WindowSeconds: opts.WindowSeconds,
			})
			if err != nil {
				// Misconfigured key function; let the call through
				log.Warn().Err(err).Str("function", opts.FunctionName).Msg("Rate limit check skipped")
				next.ServeHTTP(w, r)
				return
			}

			if !result.Allowed {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
				w.Header().Set("X-RateLimit-Reset", result.ResetAt.Format(time.RFC3339))
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
