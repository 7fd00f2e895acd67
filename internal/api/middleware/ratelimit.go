package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vanishlabs/vanish/internal/metrics"
	"github.com/vanishlabs/vanish/internal/store"
)

// RateLimiter enforces a fixed-window request budget per caller, keyed by
// authenticated user when available and client IP otherwise. Counters live in
// redis; without redis the limiter passes everything through.
type RateLimiter struct {
	redis  *store.RedisStore
	logger zerolog.Logger
	limit  int
	window time.Duration
}

// NewRateLimiter creates a new rate limiter. redis may be nil.
func NewRateLimiter(redis *store.RedisStore, logger zerolog.Logger, perMinute int) *RateLimiter {
	return &RateLimiter{
		redis:  redis,
		logger: logger,
		limit:  perMinute,
		window: time.Minute,
	}
}

// Middleware returns the rate limiting middleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.redis == nil || rl.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		caller := callerKey(r)
		count, err := rl.redis.IncrRateLimit(r.Context(), caller, rl.window)
		if err != nil {
			// Redis trouble must not take the API down with it.
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > int64(rl.limit) {
			metrics.RateLimitHits.WithLabelValues(r.URL.Path).Inc()
			rl.logger.Warn().
				Str("caller", caller).
				Str("endpoint", r.URL.Path).
				Msg("rate limit exceeded")

			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// callerKey identifies the caller: user ID when authenticated, IP otherwise.
func callerKey(r *http.Request) string {
	if user := GetUserFromContext(r.Context()); user != nil {
		return "user:" + user.ID.String()
	}
	return "ip:" + RealIP(r)
}

// RealIP extracts the real client IP from headers or connection.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
