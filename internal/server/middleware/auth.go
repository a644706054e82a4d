package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/iudanet/transitauth/internal/models"
	"github.com/iudanet/transitauth/internal/server/apierr"
	"github.com/iudanet/transitauth/internal/server/cookies"
	"github.com/iudanet/transitauth/internal/server/handlers"
	"github.com/iudanet/transitauth/internal/server/jwt"
	"github.com/iudanet/transitauth/internal/server/response"
)

// Authenticator проверяет access token из заголовка или cookie
type Authenticator struct {
	logger  *slog.Logger
	tokens  *jwt.Service
	cookies *cookies.Manager
}

// NewAuthenticator создает middleware аутентификации
func NewAuthenticator(logger *slog.Logger, tokens *jwt.Service, cm *cookies.Manager) *Authenticator {
	return &Authenticator{logger: logger, tokens: tokens, cookies: cm}
}

// Required rejects requests without a valid access token with 401.
func (a *Authenticator) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.authenticate(r)
		if err != nil {
			response.Error(w, r, a.logger, err)
			return
		}

		a.logger.DebugContext(r.Context(), "User authenticated", slog.Int64("user_id", identity.UserID))

		next.ServeHTTP(w, r.WithContext(handlers.WithIdentity(r.Context(), identity)))
	})
}

// Optional stores the identity when a valid token is present and passes
// every request through. Used by logout, which must work without a session.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.authenticate(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(handlers.WithIdentity(r.Context(), identity)))
	})
}

// authenticate ищет токен: сначала Authorization: Bearer, затем cookies
func (a *Authenticator) authenticate(r *http.Request) (jwt.Identity, error) {
	var token string

	if header := r.Header.Get("Authorization"); header != "" {
		t, err := jwt.ExtractFromHeader(header)
		if err != nil {
			a.logger.WarnContext(r.Context(), "Invalid Authorization header format")
			authFailuresTotal.WithLabelValues("malformed_header").Inc()
			return jwt.Identity{}, apierr.Wrap(apierr.Unauthorized("invalid authorization header"), err)
		}
		token = t
	} else if t, ok := a.cookies.Token(r); ok {
		token = t
	}

	if token == "" {
		authFailuresTotal.WithLabelValues("missing").Inc()
		return jwt.Identity{}, apierr.Unauthorized("authentication required")
	}

	claims, err := a.tokens.VerifyAccess(token)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrMissingSecret):
			return jwt.Identity{}, apierr.Internal(err)
		case errors.Is(err, jwt.ErrTokenExpired):
			authFailuresTotal.WithLabelValues("expired").Inc()
			return jwt.Identity{}, apierr.Wrap(apierr.Unauthorized("token has expired"), err)
		default:
			a.logger.WarnContext(r.Context(), "Invalid access token", slog.Any("error", err))
			authFailuresTotal.WithLabelValues("invalid").Inc()
			return jwt.Identity{}, apierr.Wrap(apierr.Unauthorized("invalid token"), err)
		}
	}

	return claims.Identity(), nil
}

// RequireRole пропускает только пользователей с одной из ролей.
// Должен стоять после Authenticator.Required.
func RequireRole(logger *slog.Logger, roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := handlers.IdentityFromContext(r.Context())
			if !ok {
				response.Error(w, r, logger, apierr.Unauthorized("authentication required"))
				return
			}

			if !slices.Contains(roles, identity.Role) {
				logger.WarnContext(r.Context(), "Role not allowed",
					slog.Int64("user_id", identity.UserID),
					slog.String("role", string(identity.Role)),
				)
				response.Error(w, r, logger, apierr.Forbidden("insufficient permissions"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
