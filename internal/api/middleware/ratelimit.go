package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"kimpdash/pkg/ratelimit"
	"kimpdash/pkg/utils"
)

// RateLimit ограничивает запросы с одного IP. При исчерпании - 429.
// limiter == nil отключает ограничение.
func RateLimit(limiter *ratelimit.KeyedLimiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if !limiter.Allow(ip) {
				utils.L().Warn("rate limit exceeded",
					utils.ClientIP(ip),
					utils.String("path", r.URL.Path))

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"too many requests"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
