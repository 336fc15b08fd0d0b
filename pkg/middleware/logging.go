package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RequestLogger returns middleware that logs every HTTP request at DEBUG
// level once the response has been written. A nil logger disables the
// middleware entirely.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.Debug("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}

// statusRecorder captures the status code a handler writes. Only the first
// WriteHeader call counts; later calls are dropped so a double-writing
// handler does not trip net/http's superfluous-call warning.
type statusRecorder struct {
	http.ResponseWriter
	status        int
	headerWritten bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.headerWritten {
		return
	}
	s.status = code
	s.headerWritten = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.headerWritten {
		s.WriteHeader(http.StatusOK)
	}
	return s.ResponseWriter.Write(b)
}
