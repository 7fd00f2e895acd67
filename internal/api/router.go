package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vanishlabs/vanish/internal/api/middleware"
	"github.com/vanishlabs/vanish/internal/chat"
	"github.com/vanishlabs/vanish/internal/handlers"
	"github.com/vanishlabs/vanish/internal/store"
)

// NewRouter creates and configures the HTTP router. redisStore may be nil;
// rate limiting is then disabled.
func NewRouter(logger zerolog.Logger, engine *chat.Engine, db store.DataStore, redisStore *store.RedisStore, rateLimitPerMinute int) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(64 * 1024)) // ciphertext payloads, 64KB max
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// CORS - clients call from anywhere
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(engine, db, redisStore)
	auth := middleware.NewAuthMiddleware(db)
	limiter := middleware.NewRateLimiter(redisStore, logger, rateLimitPerMinute)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/", h.Root)
	r.Get("/api", h.Root)
	r.Get("/health", h.Health)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Use(limiter.Middleware)

		r.Post("/sessions", h.CreateSession)
		r.Get("/sessions", h.ListSessions)
		r.Get("/sessions/{id}", h.GetSession)
		r.Post("/sessions/{id}/pin", h.PinSession)
		r.Delete("/sessions/{id}/pin", h.UnpinSession)
		r.Post("/sessions/{id}/messages", h.SendMessage)
		r.Get("/sessions/{id}/messages", h.ListMessages)

		r.Post("/messages/{id}/read", h.MarkRead)
		r.Delete("/messages/{id}", h.DeleteMessage)
		r.Post("/messages/{id}/burn", h.BurnMessage)

		r.Get("/users/{id}", h.GetUser)
	})

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Use(auth.RequireAdmin)

		r.Post("/admin/sweep", h.Sweep)
		r.Post("/admin/maintenance", h.Maintenance)
		r.Post("/admin/users", h.CreateUser)
	})

	return r
}
