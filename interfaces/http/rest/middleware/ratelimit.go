package middleware

import (
	"net"
	"net/http"

	pkgerrors "memoir-backend/pkg/errors"
	"memoir-backend/pkg/ratelimit"
)

// RateLimit throttles requests per client address using the given limiter.
// Expects RealIP to have run earlier in the chain.
func RateLimit(limiter ratelimit.Limiter, errors *pkgerrors.ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				key = r.RemoteAddr
			}

			if !limiter.Allow(key) {
				w.Header().Set("Retry-After", "1")
				errors.HandleStatus(w, r, http.StatusTooManyRequests, "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
