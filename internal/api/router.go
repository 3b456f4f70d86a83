package api

import (
	"chatwidget-gateway/internal/config"
	"chatwidget-gateway/internal/handlers"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	SessionHandler *handlers.SessionHandler
	Config         *config.Config
	Logger         *zap.Logger

	// RateLimiter guards /v1. When nil, one is built from Config.
	RateLimiter *RateLimiter
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)
	// chat turns wait on the backend, so leave room beyond its own timeout
	r.Use(middleware.Timeout(deps.Config.BackendTimeout*3 + 5*time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	if deps.SessionHandler == nil {
		logger.Warn("SessionHandler dependency is nil, skipping /v1 routes")
		return r
	}

	r.Route("/v1", func(r chi.Router) {
		limiter := deps.RateLimiter
		if limiter == nil {
			limiter = NewRateLimiter(deps.Config.RateLimitPerMinute)
		}
		r.Use(limiter.Middleware(logger))

		r.Post("/sessions", deps.SessionHandler.HandleStartSession)

		r.Route("/session", func(r chi.Router) {
			r.Use(SessionAuthMiddleware(deps.Config.SessionSecret, logger))

			r.Get("/", deps.SessionHandler.HandleGetSession)
			r.Delete("/", deps.SessionHandler.HandleEndSession)
			r.Post("/messages", deps.SessionHandler.HandleSendMessage)
			r.Get("/hubspot-auth", deps.SessionHandler.HandleHubSpotAuth)

			r.Route("/booking", func(r chi.Router) {
				r.Put("/", deps.SessionHandler.HandleUpdateBooking)
				r.Post("/", deps.SessionHandler.HandleSubmitBooking)
				r.Delete("/", deps.SessionHandler.HandleCancelBooking)
				r.Post("/open", deps.SessionHandler.HandleOpenBooking)
			})
		})
	})

	return r
}
