package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fleetboard/fleetboard/internal/api/response"
)

// RateLimit is a fixed-window per-client limiter backed by redis. Windows
// are one minute wide and keyed by client IP. When redis is unreachable
// the limiter fails open; availability of the API wins over strictness of
// the limit.
func RateLimit(rdb *redis.Client, perMinute int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rdb == nil || perMinute <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			requestID := GetRequestID(r.Context())

			ip := clientIP(r)
			window := time.Now().Unix() / 60
			key := fmt.Sprintf("ratelimit:%s:%d", ip, window)

			count, err := rdb.Incr(r.Context(), key).Result()
			if err != nil {
				slog.Warn("rate limiter unavailable", "error", err, "requestId", requestID)
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				// Without the expiry the window key never resets and the
				// client would stay limited past the minute.
				if err := rdb.Expire(r.Context(), key, time.Minute).Err(); err != nil {
					slog.Warn("rate limit window expiry not set", "error", err, "key", key, "requestId", requestID)
				}
			}

			if count > int64(perMinute) {
				response.Err(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests; try again later", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
