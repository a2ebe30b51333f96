package http

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	Auth      *AuthHandler
	Bookings  *BookingHandler
	Rooms     *RoomHandler
	Users     *UserHandler
	Dashboard *DashboardHandler
	Health    *HealthHandler

	// Validator resolves bearer tokens for every route except login,
	// register, health and metrics.
	Validator TokenValidator
	// AuthLimiter throttles login and register per client address.
	AuthLimiter *RateLimiter
	Logger      *slog.Logger
	Middleware  []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	logger := defaultLogger(cfg.Logger)

	protect := func(h http.HandlerFunc) http.Handler {
		if cfg.Validator == nil {
			return h
		}
		return RequireAuth(cfg.Validator, logger)(h)
	}
	throttle := func(h http.HandlerFunc) http.Handler {
		if cfg.AuthLimiter == nil {
			return h
		}
		return RateLimit(cfg.AuthLimiter, logger)(h)
	}

	if cfg.Health != nil {
		mux.HandleFunc("GET /api/health", cfg.Health.Check)
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	if cfg.Auth != nil {
		mux.Handle("POST /api/auth/login", throttle(cfg.Auth.Login))
		mux.Handle("POST /api/auth/register", throttle(cfg.Auth.Register))
		mux.Handle("GET /api/auth/profile", protect(cfg.Auth.Profile))
	}

	if cfg.Bookings != nil {
		mux.Handle("GET /api/bookings", protect(cfg.Bookings.List))
		mux.Handle("POST /api/bookings", protect(cfg.Bookings.Create))
		mux.Handle("GET /api/bookings/my", protect(cfg.Bookings.ListMine))
		mux.Handle("GET /api/bookings/{id}", protect(cfg.Bookings.Get))
		mux.Handle("PUT /api/bookings/{id}", protect(cfg.Bookings.Update))
		mux.Handle("PATCH /api/bookings/{id}/status", protect(cfg.Bookings.UpdateStatus))
		mux.Handle("DELETE /api/bookings/{id}", protect(cfg.Bookings.Delete))
		mux.Handle("GET /api/rooms/{id}/availability", protect(cfg.Bookings.Availability))
	}

	if cfg.Rooms != nil {
		mux.Handle("GET /api/rooms", protect(cfg.Rooms.List))
		mux.Handle("POST /api/rooms", protect(cfg.Rooms.Create))
		mux.Handle("GET /api/rooms/{id}", protect(cfg.Rooms.Get))
		mux.Handle("PUT /api/rooms/{id}", protect(cfg.Rooms.Update))
		mux.Handle("DELETE /api/rooms/{id}", protect(cfg.Rooms.Delete))
	}

	if cfg.Users != nil {
		mux.Handle("GET /api/users", protect(cfg.Users.List))
		mux.Handle("POST /api/users", protect(cfg.Users.Create))
		mux.Handle("GET /api/users/{id}", protect(cfg.Users.Get))
		mux.Handle("PUT /api/users/{id}", protect(cfg.Users.Update))
		mux.Handle("DELETE /api/users/{id}", protect(cfg.Users.Delete))
	}

	if cfg.Dashboard != nil {
		mux.Handle("GET /api/dashboard/stats", protect(cfg.Dashboard.Stats))
		mux.Handle("GET /api/dashboard/instructor-stats", protect(cfg.Dashboard.InstructorStats))
	}

	// Metrics must wrap the mux directly so it observes the matched pattern.
	var handler http.Handler = Metrics()(mux)
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
