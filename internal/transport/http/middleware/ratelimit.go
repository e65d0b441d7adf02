package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"inkwell/internal/httputil"
	"inkwell/internal/metrics"
)

const rateLimitMessage = "Too many requests from this IP, please try again later."

// maxLocalLimiters bounds the in-process limiter map.
const maxLocalLimiters = 10000

// Counter is a shared fixed-window hit counter, implemented by the Redis client.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimiter limits requests per client IP and scope. With a Counter the
// window is shared across instances; without one each process keeps its own
// token buckets.
type RateLimiter struct {
	counter Counter
	limit   int
	window  time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiter allows limit requests per window. counter may be nil.
func NewRateLimiter(counter Counter, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		counter:  counter,
		limit:    limit,
		window:   window,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether one more request for key fits in the window.
// Redis failures let the request through.
func (rl *RateLimiter) Allow(ctx context.Context, key string) bool {
	if rl.counter != nil {
		count, err := rl.counter.Hit(ctx, "rl:"+key, rl.window)
		if err != nil {
			log.WithError(err).WithField("key", key).Warn("[RateLimit] Counter unavailable, allowing request")
			return true
		}
		return count <= int64(rl.limit)
	}

	return rl.local(key).Allow()
}

func (rl *RateLimiter) local(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[key]
	if !ok {
		if len(rl.limiters) >= maxLocalLimiters {
			rl.limiters = make(map[string]*rate.Limiter)
		}
		every := rl.window / time.Duration(rl.limit)
		limiter = rate.NewLimiter(rate.Every(every), rl.limit)
		rl.limiters[key] = limiter
	}
	return limiter
}

// Limit returns middleware that rejects requests over the limit with 429.
func (rl *RateLimiter) Limit(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !rl.Allow(r.Context(), scope+":"+ip) {
				metrics.RecordRateLimited(scope)
				log.WithFields(log.Fields{
					"scope": scope,
					"ip":    ip,
					"path":  r.URL.Path,
				}).Warn("[RateLimit] Request rejected")
				httputil.WriteTooManyRequests(w, rateLimitMessage)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from RemoteAddr. chi's RealIP runs first and may
// already have replaced it with a bare address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
