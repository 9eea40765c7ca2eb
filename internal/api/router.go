package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"quickmail/internal/auth"

	"github.com/gorilla/mux"
)

// NewRouter 创建路由并注册所有 handler
func NewRouter(authHandler *AuthHandler, fragmentHandler *FragmentHandler, sessions *auth.SessionMiddleware, logger *slog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(logRequests(logger))

	// Health check endpoint (public, no auth)
	r.HandleFunc("/health", HealthCheckHandler).Methods(http.MethodGet)

	authHandler.RegisterRoutes(r, sessions)
	fragmentHandler.RegisterRoutes(r, sessions.Require())

	return r
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			// the query may carry codes and tokens, so only the path is logged
			logger.Info("request",
				"remote", r.RemoteAddr,
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
