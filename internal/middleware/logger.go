package middleware

import (
	"net/http"
	"time"

	"github.com/dukerupert/goodboy/internal/domain"
	"github.com/rs/zerolog"
)

// RequestLogger places a request-scoped zerolog logger in the context and
// logs one line per completed request. Place it after RequestID.
func RequestLogger(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			fields := base.With().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("client_ip", GetClientIP(r))
			if requestID := domain.RequestIDFromContext(r.Context()); requestID != "" {
				fields = fields.Str("request_id", requestID)
			}
			logger := fields.Logger()

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r.WithContext(logger.WithContext(r.Context())))

			event := logger.Info()
			switch {
			case rec.statusCode >= 500:
				event = logger.Error()
			case rec.statusCode >= 400:
				event = logger.Warn()
			}
			event.
				Int("status", rec.statusCode).
				Int("bytes", rec.bytesWritten).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
