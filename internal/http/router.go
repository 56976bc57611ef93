package http

import (
	"net/http"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"collabit/internal/auth"
	"collabit/internal/config"
	"collabit/internal/session"
)

// Dependencies are the services the router exposes.
type Dependencies struct {
	Auth      *auth.Service
	Sessions  *session.Manager
	Providers auth.Providers
}

// NewRouter wires application routes and middleware using chi.
func NewRouter(cfg config.Config, deps Dependencies, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(newTrustedRealIPMiddleware(cfg.TrustedProxies))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newSecurityHeadersMiddleware(cfg.Environment))
	r.Use(newSlogMiddleware(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"environment": cfg.Environment,
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	sessionHandler := NewSessionHandler(deps.Auth, deps.Sessions, logger)
	oauthHandler := NewOAuthHandler(deps.Providers, deps.Auth, cfg.PublicAppURL, !cfg.IsDevelopment(), logger)
	limiter := newRateLimiter(rate.Limit(cfg.LoginRateLimit), cfg.LoginRateBurst)

	if len(deps.Providers) == 0 {
		logger.Warn("no oauth providers configured; /auth/oauth routes will return 404")
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(limiter.middleware("login")).Post("/login", sessionHandler.Login)
		r.With(limiter.middleware("direct-auth")).Post("/direct-auth", sessionHandler.DirectAuth)
		r.With(limiter.middleware("register")).Post("/register", sessionHandler.Register)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", sessionHandler.Status)
			r.Delete("/", sessionHandler.Logout)
		})

		r.With(newSessionMiddleware(deps.Sessions)).Get("/me", sessionHandler.Me)

		r.Route("/oauth/{provider}", func(r chi.Router) {
			r.Get("/", oauthHandler.Initiate)
			r.Get("/callback", oauthHandler.Callback)
		})
	})

	r.NotFound(http.NotFoundHandler().ServeHTTP)

	return r
}
