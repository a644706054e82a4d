package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iudanet/transitauth/internal/models"
	"github.com/iudanet/transitauth/internal/server/apierr"
	"github.com/iudanet/transitauth/internal/server/cookies"
	"github.com/iudanet/transitauth/internal/server/response"
	"github.com/iudanet/transitauth/internal/server/service"
	"github.com/iudanet/transitauth/internal/validation"
	"github.com/iudanet/transitauth/pkg/api"
)

// maxBodyBytes ограничивает размер тела запроса
const maxBodyBytes = 1 << 20

// AuthService is the part of service.AuthService the HTTP layer needs.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	StartLogin(ctx context.Context, email, password string) (*service.LoginChallenge, error)
	VerifyOTP(ctx context.Context, sessionID, code string, remember bool) (*service.AuthResult, error)
	SignIn(ctx context.Context, email, password string, remember bool) (*service.AuthResult, error)
	VerifyEmail(ctx context.Context, token string) (*models.User, error)
	ResendVerification(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword, confirm string) error
	ChangePassword(ctx context.Context, userID int64, current, newPassword, confirm string) error
	Logout(ctx context.Context, userID int64, sink service.SessionSink) error
	Refresh(ctx context.Context, userID int64, remember bool) (*service.AuthResult, error)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
}

// AuthHandler обрабатывает запросы авторизации
type AuthHandler struct {
	logger    *slog.Logger
	auth      AuthService
	cookies   *cookies.Manager
	validator *validation.Validator
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, auth AuthService, cm *cookies.Manager, v *validation.Validator) *AuthHandler {
	return &AuthHandler{
		logger:    logger,
		auth:      auth,
		cookies:   cm,
		validator: v,
	}
}

// Register обрабатывает POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := h.decode(w, r, &req); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	result, err := h.auth.Register(r.Context(), service.RegisterInput{
		Name:            req.Name,
		LastName:        req.LastName,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Phone:           req.Phone,
	})
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	if err := h.setSession(w, result); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	response.Created(w, h.logger, "User registered successfully. Please verify your email.", api.AuthResponse{
		User:      api.NewUserResponse(result.User),
		ExpiresIn: result.Token.ExpiresIn,
	})
}

// Login обрабатывает POST /api/v1/auth/login
// Первый шаг входа: пароль проверен, код отправлен на почту
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := h.decode(w, r, &req); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	challenge, err := h.auth.StartLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	response.OK(w, h.logger, "Verification code sent to your email", api.LoginChallengeResponse{
		SessionID: challenge.SessionID,
		ExpiresAt: challenge.ExpiresAt,
	})
}

// VerifyOTP обрабатывает POST /api/v1/auth/verify-otp
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req api.VerifyOTPRequest
	if err := h.decode(w, r, &req); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	result, err := h.auth.VerifyOTP(r.Context(), req.SessionID, req.OTP, req.RememberMe)
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	if err := h.setSession(w, result); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	response.OK(w, h.logger, "Login successful", api.AuthResponse{
		Token:     result.Token.Token,
		User:      api.NewUserResponse(result.User),
		ExpiresIn: result.Token.ExpiresIn,
	})
}

// SignIn обрабатывает POST /api/v1/auth/sign-in
// Вход в один шаг, без OTP
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req api.SignInRequest
	if err := h.decode(w, r, &req); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	result, err := h.auth.SignIn(r.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	if err := h.setSession(w, result); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	response.OK(w, h.logger, "Login successful", api.AuthResponse{
		User:      api.NewUserResponse(result.User),
		ExpiresIn: result.Token.ExpiresIn,
	})
}

// VerifyEmailLink обрабатывает GET /api/v1/auth/verify-email/{token}
func (h *AuthHandler) VerifyEmailLink(w http.ResponseWriter, r *http.Request) {
	h.verifyEmail(w, r, chi.URLParam(r, "token"))
}

// VerifyEmail обрабатывает POST /api/v1/auth/verify-email
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req api.VerifyEmailRequest
	if err := h.decode(w, r, &req); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}
	h.verifyEmail(w, r, req.Token)
}

func (h *AuthHandler) verifyEmail(w http.ResponseWriter, r *http.Request, token string) {
	if token == "" {
		response.Error(w, r, h.logger, apierr.BadRequest("token is required"))
		return
	}

	user, err := h.auth.VerifyEmail(r.Context(), token)
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	response.OK(w, h.logger, "Email verified successfully", api.UserEnvelope{User: api.NewUserResponse(user)})
}

// ResendVerification обрабатывает POST /api/v1/auth/resend-verification
// Ответ одинаковый вне зависимости от существования аккаунта
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req api.EmailRequest
	if err := h.decode(w, r, &req); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	if err := h.auth.ResendVerification(r.Context(), req.Email); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	response.OK(w, h.logger, "If the account exists and is not verified, a new verification email has been sent", nil)
}

// ForgotPassword обрабатывает POST /api/v1/auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req api.EmailRequest
	if err := h.decode(w, r, &req); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	response.OK(w, h.logger, "If an account with that email exists, a password reset link has been sent", nil)
}

// ResetPassword обрабатывает POST /api/v1/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req api.ResetPasswordRequest
	if err := h.decode(w, r, &req); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	if err := h.auth.ResetPassword(r.Context(), req.Token, req.NewPassword, req.ConfirmPassword); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	response.OK(w, h.logger, "Password has been reset successfully", nil)
}

// ChangePassword обрабатывает POST /api/v1/auth/change-password (требует авторизации)
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, r, h.logger, apierr.Unauthorized("authentication required"))
		return
	}

	var req api.ChangePasswordRequest
	if err := h.decode(w, r, &req); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	err := h.auth.ChangePassword(r.Context(), identity.UserID, req.CurrentPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	response.OK(w, h.logger, "Password changed successfully", nil)
}

// Refresh обрабатывает POST /api/v1/auth/refresh (требует авторизации)
// Выдает новый access token; remember-me берется из claim токена или из cookie
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, r, h.logger, apierr.Unauthorized("authentication required"))
		return
	}

	remember := identity.Remember || h.cookies.Remembered(r)
	result, err := h.auth.Refresh(r.Context(), identity.UserID, remember)
	if err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	if err := h.setSession(w, result); err != nil {
		response.Error(w, r, h.logger, err)
		return
	}

	response.OK(w, h.logger, "Token refreshed", api.AuthResponse{
		Token:     result.Token.Token,
		User:      api.NewUserResponse(result.User),
		ExpiresIn: result.Token.ExpiresIn,
	})
}

// Logout обрабатывает POST /api/v1/auth/logout
// Cookies очищаются всегда, даже без валидного токена
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var userID int64
	if identity, ok := IdentityFromContext(r.Context()); ok {
		userID = identity.UserID
	}

	if err := h.auth.Logout(r.Context(), userID, cookieSink{w: w, cookies: h.cookies}); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to record logout",
			slog.Int64("user_id", userID),
			slog.Any("error", err),
		)
	}

	response.OK(w, h.logger, "Logged out successfully", nil)
}

// Me обрабатывает GET /api/v1/auth/me (требует авторизации)
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		response.Error(w, r, h.logger, apierr.Unauthorized("authentication required"))
		return
	}

	user, err := h.auth.GetUser(r.Context(), identity.UserID)
	if err != nil {
		// Токен валиден, но аккаунта уже нет
		if apierr.IsKind(err, apierr.KindNotFound) {
			err = apierr.Unauthorized("user not found")
		}
		response.Error(w, r, h.logger, err)
		return
	}

	response.OK(w, h.logger, "", api.UserEnvelope{User: api.NewUserResponse(user)})
}

// decode парсит JSON и валидирует DTO по тегам validate
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeAndValidate(w, r, h.validator, dst)
}

func (h *AuthHandler) setSession(w http.ResponseWriter, result *service.AuthResult) error {
	err := h.cookies.Set(w, result.Token.Token, cookies.SessionUserFrom(result.User), result.Remember)
	if err != nil {
		return apierr.Internal(err)
	}
	return nil
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, v *validation.Validator, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apierr.Wrap(apierr.BadRequest("invalid request body"), err)
	}

	if msgs := v.Struct(dst); msgs != nil {
		return apierr.Validation(msgs...)
	}
	return nil
}

// cookieSink очищает cookies ответа при logout
type cookieSink struct {
	w       http.ResponseWriter
	cookies *cookies.Manager
}

func (s cookieSink) ClearSession() {
	s.cookies.Clear(s.w)
}
