package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/api/auth"
	"github.com/marmos91/authkeep/pkg/api/handlers"
	"github.com/marmos91/authkeep/pkg/api/middleware"
	"github.com/marmos91/authkeep/pkg/metrics"
)

// NewRouter creates and configures the chi router with all middleware and routes.
//
// Routes:
//   - GET /health, /health/ready, /health/stores - unauthenticated probes
//   - GET /metrics - Prometheus metrics, when enabled
//   - /api/v1/... - operator endpoints, behind JWTAuth when jwtService is set
func NewRouter(runtime handlers.Runtime, roster handlers.Roster, jwtService *auth.JWTService) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(runtime)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
		r.Get("/stores", healthHandler.Stores)
	})

	r.Handle("/metrics", metrics.Handler())

	adminHandler := handlers.NewAdminHandler(runtime)
	r.Route("/api/v1", func(r chi.Router) {
		if jwtService != nil {
			r.Use(middleware.JWTAuth(jwtService))
		}

		r.Get("/sessions", adminHandler.Sessions)
		r.Post("/reload", adminHandler.Reload)
		r.Post("/backup", adminHandler.Backup)

		if roster != nil {
			playerHandler := handlers.NewPlayerHandler(roster)
			r.Route("/players", func(r chi.Router) {
				r.Get("/", playerHandler.List)
				r.Post("/", playerHandler.Join)
				r.Get("/{name}", playerHandler.Get)
				r.Delete("/{name}", playerHandler.Quit)
				r.Post("/{name}/actions", playerHandler.Act)
			})
		}
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger logs requests using the internal logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := chimw.GetReqID(r.Context())

		logger.Debug("API request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, logger.Duration(start),
		)
	})
}
