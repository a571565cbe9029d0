package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/securedocflow/securedoc-proxy/internal/logger"
	"github.com/securedocflow/securedoc-proxy/internal/monitor"
	"go.uber.org/zap"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// loggingMiddleware logs request lifecycles. Bodies are never read or
// logged here: they may contain PHI.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		s.logger.WithRequestID(requestID).Info("http request started",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Any("headers", logger.RedactHeaders(r.Header)),
		)

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		s.logger.WithRequestID(requestID).Info("http request completed",
			zap.Int("status_code", rw.statusCode),
			zap.Duration("duration", duration),
		)

		s.hub.Broadcast(monitor.Event{
			Type:      monitor.EventTypeRequestLog,
			Timestamp: time.Now(),
			RequestID: requestID,
			Data: monitor.RequestLogEvent{
				Method:     r.Method,
				Path:       r.URL.Path,
				StatusCode: rw.statusCode,
				Duration:   duration,
			},
		})
	})
}

// getRequestID extracts the request ID from context
func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return "unknown"
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
