package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"

	"modelhub/internal/logger"
)

// Middleware rejects requests over the limit with 429. Clients are keyed by
// remote IP. When the limiter itself fails the request is let through.
func Middleware(limiter Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), clientIP(r))
			if err != nil {
				logger.FromContext(r.Context()).Warn().Err(err).Msg("rate limiter unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "too many requests, try again later"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP expects chi's RealIP middleware to have rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
