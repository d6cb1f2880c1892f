package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	rateLimitWindow     = time.Minute
	rateLimitMaxIP      = 300
	rateLimitMaxSession = 60
)

type rateLimiter struct {
	mu     sync.Mutex
	times  map[string][]time.Time
	max    int
	window time.Duration
	now    func() time.Time
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{times: make(map[string][]time.Time), max: max, window: window, now: time.Now}
}

func (r *rateLimiter) allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	cutoff := now.Add(-r.window)
	slice := r.times[key]
	i := 0
	for _, t := range slice {
		if t.After(cutoff) {
			slice[i] = t
			i++
		}
	}
	slice = slice[:i]
	if len(slice) >= r.max {
		r.times[key] = slice
		return false
	}
	r.times[key] = append(slice, now)
	return true
}

func (r *rateLimiter) handler(key func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if k := key(req); k != "" && !r.allow(k) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// clientIP expects chimw.RealIP in front; the headers are a fallback for bare use.
func clientIP(r *http.Request) string {
	if x := r.Header.Get("X-Real-Ip"); x != "" {
		return x
	}
	if x := r.Header.Get("X-Forwarded-For"); x != "" {
		first, _, _ := strings.Cut(x, ",")
		return strings.TrimSpace(first)
	}
	return r.RemoteAddr
}

// RateLimitAPI limits /api/* requests per client IP. 429 when exceeded.
func RateLimitAPI(next http.Handler) http.Handler {
	return newRateLimiter(rateLimitMaxIP, rateLimitWindow).handler(clientIP)(next)
}

// RateLimitParam limits requests per value of a route parameter, e.g. sends per preview session.
// Mount it inside the route that declares param.
func RateLimitParam(param string, max int) func(http.Handler) http.Handler {
	if max <= 0 {
		max = rateLimitMaxSession
	}
	return newRateLimiter(max, rateLimitWindow).handler(func(r *http.Request) string {
		return chi.URLParam(r, param)
	})
}
