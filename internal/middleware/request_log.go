package middleware

import (
	"net/http"
	"time"

	"github.com/chatwidget/internal/logger"
)

// RequestLog logs method, path, status and duration through the async logger.
// Slow requests are logged at info, the rest only at debug.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := wrap(w)
		next.ServeHTTP(sw, r)
		if sw.status >= http.StatusInternalServerError {
			logger.Errorf("http %s %s status=%d duration_ms=%d", r.Method, r.URL.Path, sw.status, time.Since(start).Milliseconds())
			return
		}
		logger.LogDuration("http "+r.Method+" "+r.URL.Path, start)
	})
}
