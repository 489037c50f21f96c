package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	logx "choreminder/pkg/logx"
)

// accessLog logs one line per request.
func accessLog(log logx.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status < 400 && !log.Enabled(logx.LevelDebug) {
				return
			}
			fields := []logx.Field{
				logx.Int("status", status),
				logx.String("method", r.Method),
				logx.String("path", r.URL.Path),
				logx.String("remote", r.RemoteAddr),
				logx.Int64("req_size", r.ContentLength),
				logx.Int("size", ww.BytesWritten()),
				logx.Duration("latency", time.Since(start)),
				logx.String("req_id", middleware.GetReqID(r.Context())),
			}
			switch {
			case status >= 500:
				log.Error("request", fields...)
			case status >= 400:
				log.Info("request", fields...)
			default:
				log.Debug("request", fields...)
			}
		})
	}
}

// limiter is a process-wide token bucket that can be retuned at runtime.
type limiter struct {
	mu      sync.RWMutex
	enabled bool
	bucket  *rate.Limiter
}

func newLimiter(rps float64, burst int) *limiter {
	l := &limiter{}
	l.apply(rps, burst)
	return l
}

// apply replaces the bucket with a full one. rps <= 0 disables limiting.
func (l *limiter) apply(rps float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rps <= 0 {
		l.enabled = false
		return
	}
	if burst <= 0 {
		burst = max(1, int(rps))
	}
	l.enabled = true
	l.bucket = rate.NewLimiter(rate.Limit(rps), burst)
}

func (l *limiter) allow() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !l.enabled || l.bucket.Allow()
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
