// Package server wires handlers and middleware into the HTTP API.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iudanet/transitauth/internal/config"
	"github.com/iudanet/transitauth/internal/models"
	"github.com/iudanet/transitauth/internal/server/apierr"
	"github.com/iudanet/transitauth/internal/server/cookies"
	"github.com/iudanet/transitauth/internal/server/handlers"
	"github.com/iudanet/transitauth/internal/server/jwt"
	"github.com/iudanet/transitauth/internal/server/middleware"
	"github.com/iudanet/transitauth/internal/server/response"
	"github.com/iudanet/transitauth/internal/server/storage"
	"github.com/iudanet/transitauth/internal/validation"
)

const (
	apiPrefix  = "/api/v1"
	authPrefix = apiPrefix + "/auth"
)

// credentialPaths получают отдельный, более строгий лимит
var credentialPaths = []string{
	authPrefix + "/register",
	authPrefix + "/login",
	authPrefix + "/verify-otp",
	authPrefix + "/sign-in",
	authPrefix + "/resend-verification",
	authPrefix + "/forgot-password",
	authPrefix + "/request-password-reset",
	authPrefix + "/reset-password",
	authPrefix + "/change-password",
}

// Dependencies are the components the router dispatches to.
type Dependencies struct {
	Auth      handlers.AuthService
	Users     handlers.UserLookup
	DB        storage.Pinger
	Tokens    *jwt.Service
	Cookies   *cookies.Manager
	Validator *validation.Validator
}

// NewRouter builds the HTTP handler. The returned stop function releases
// the rate limiter goroutines and must be called on shutdown.
func NewRouter(logger *slog.Logger, deps Dependencies, cfg *config.Config) (http.Handler, func()) {
	authHandler := handlers.NewAuthHandler(logger, deps.Auth, deps.Cookies, deps.Validator)
	userHandler := handlers.NewUserHandler(logger, deps.Users)
	healthHandler := handlers.NewHealthHandler(logger, deps.DB)
	authn := middleware.NewAuthenticator(logger, deps.Tokens, deps.Cookies)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	// Конфиг уже провалидирован, ошибка здесь означает пустой список
	proxies, _ := middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
	r.Use(middleware.TrustedRealIP(proxies))
	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.LoggingWithSkip(logger, []string{apiPrefix + "/health", "/metrics"}))
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	if cfg.Server.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, logger, apierr.NotFound("route not found"))
	})

	stop := func() {}

	r.Handle("/metrics", promhttp.Handler())

	r.Route(apiPrefix, func(r chi.Router) {
		r.Get("/health", healthHandler.Health)

		r.Group(func(r chi.Router) {
			if cfg.RateLimit.Enabled {
				limiter := newCredentialLimiter(logger, cfg.RateLimit)
				stop = limiter.Stop
				r.Use(limiter.Middleware)
			}

			r.Route("/auth", func(r chi.Router) {
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
				r.Post("/verify-otp", authHandler.VerifyOTP)
				r.Post("/sign-in", authHandler.SignIn)
				r.Get("/verify-email/{token}", authHandler.VerifyEmailLink)
				r.Post("/verify-email", authHandler.VerifyEmail)
				r.Post("/resend-verification", authHandler.ResendVerification)
				r.Post("/forgot-password", authHandler.ForgotPassword)
				r.Post("/request-password-reset", authHandler.ForgotPassword)
				r.Post("/reset-password", authHandler.ResetPassword)

				r.With(authn.Optional).Post("/logout", authHandler.Logout)

				r.Group(func(r chi.Router) {
					r.Use(authn.Required)
					r.Post("/change-password", authHandler.ChangePassword)
					r.Post("/refresh", authHandler.Refresh)
					r.Get("/me", authHandler.Me)
				})
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(authn.Required)
				r.Use(middleware.RequireRole(logger, models.RoleAdmin))
				r.Get("/users/{id}", userHandler.Get)
			})
		})
	})

	return r, stop
}

// newCredentialLimiter применяет строгий лимит к эндпоинтам с паролями и кодами
// и общий лимит ко всем остальным запросам API
func newCredentialLimiter(logger *slog.Logger, cfg config.RateLimitConfig) *middleware.PathRateLimiter {
	limits := make([]middleware.PathRateLimit, 0, len(credentialPaths))
	for _, path := range credentialPaths {
		limits = append(limits, middleware.PathRateLimit{
			Path:   path,
			Rate:   cfg.AuthRequests,
			Window: cfg.AuthWindow,
		})
	}
	return middleware.NewPathRateLimiter(limits, cfg.Requests, cfg.Window, logger)
}
