package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func LoggingMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			start := time.Now()
			next.ServeHTTP(rec, r)

			event := accessLogEvent(logger, r.URL.Path, rec.statusCode)
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.statusCode).
				Str("remote_addr", r.RemoteAddr).
				Dur("duration", time.Since(start)).
				Msg("http request completed")
		})
	}
}

// TokenMiddleware requires "Authorization: Bearer <token>". An empty token
// disables the check.
func TokenMiddleware(token string, logger zerolog.Logger) func(http.Handler) http.Handler {
	token = strings.TrimSpace(token)

	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := parseBearerToken(r.Header.Get("Authorization"))
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				logger.Warn().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Str("token", maskToken(got)).
					Msg("request rejected: missing or invalid bearer token")
				writeAPIError(w, http.StatusUnauthorized, "missing or invalid bearer token", "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseBearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func accessLogEvent(logger zerolog.Logger, path string, statusCode int) *zerolog.Event {
	switch {
	case statusCode >= http.StatusInternalServerError:
		return logger.Error()
	case statusCode >= http.StatusBadRequest:
		return logger.Warn()
	case path == "/health":
		return logger.Debug()
	default:
		return logger.Info()
	}
}

func maskToken(token string) string {
	token = strings.TrimSpace(token)
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeAPIError(w http.ResponseWriter, statusCode int, message, code string) {
	writeJSON(w, statusCode, map[string]interface{}{
		"error": map[string]string{
			"message": message,
			"code":    code,
		},
	})
}
