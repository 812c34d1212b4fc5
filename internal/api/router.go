package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/fleetboard/fleetboard/internal/api/handler"
	"github.com/fleetboard/fleetboard/internal/api/middleware"
	"github.com/fleetboard/fleetboard/internal/auth"
	"github.com/fleetboard/fleetboard/internal/bus"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	AuthService        *auth.Service
	Tokens             *auth.TokenService
	UserRepo           auth.UserRepository
	BusRepo            bus.Repository
	DBPinger           handler.Pinger
	RedisPinger        handler.Pinger
	RateLimiter        *redis.Client // nil disables rate limiting
	RateLimitPerMinute int
	Version            string
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.RedisPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	authHandler := handler.NewAuthHandler(deps.AuthService)
	r.Route("/auth", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(middleware.RateLimit(deps.RateLimiter, deps.RateLimitPerMinute))
		}
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(deps.Tokens))
			r.Get("/me", authHandler.Me)
		})
	})

	busHandler := handler.NewBusHandler(deps.BusRepo)
	r.Route("/buses", func(r chi.Router) {
		// Reads are open to anonymous callers; an identity, when
		// presented, is still attached for downstream use.
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthenticateOptional(deps.Tokens))
			r.Get("/", busHandler.List)
			r.Get("/{id}", busHandler.GetByID)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(deps.Tokens))
			r.With(middleware.RequireSupervisorOrAdmin()).Post("/", busHandler.Create)
			r.With(middleware.RequireSupervisorOrAdmin()).Patch("/{id}", busHandler.Update)
			r.With(middleware.RequireAdmin()).Delete("/{id}", busHandler.Delete)
		})
	})

	userHandler := handler.NewUserHandler(deps.UserRepo)
	r.Route("/users", func(r chi.Router) {
		r.Use(middleware.Authenticate(deps.Tokens))
		r.Use(middleware.RequireAdmin())
		r.Get("/", userHandler.List)
		r.Get("/{id}", userHandler.GetByID)
		r.Patch("/{id}", userHandler.Update)
	})

	return r
}
