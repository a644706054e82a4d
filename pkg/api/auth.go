// Package api содержит DTO HTTP API сервиса аутентификации.
package api

import (
	"time"

	"github.com/iudanet/transitauth/internal/models"
)

// RegisterRequest представляет запрос на регистрацию нового пользователя
type RegisterRequest struct {
	Name            string `json:"name" validate:"required,min=2,max=50"`
	LastName        string `json:"lastName,omitempty" validate:"omitempty,max=50"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
	Phone           string `json:"phone,omitempty" validate:"omitempty,phone"`
}

// LoginRequest представляет запрос на вход (пароль, затем OTP)
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignInRequest представляет запрос на прямой вход без OTP
type SignInRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

// VerifyOTPRequest завершает двухшаговый вход
type VerifyOTPRequest struct {
	SessionID  string `json:"sessionId" validate:"required,uuid"`
	OTP        string `json:"otp" validate:"required,len=6,numeric"`
	RememberMe bool   `json:"rememberMe"`
}

// VerifyEmailRequest подтверждение email токеном из письма
type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

// EmailRequest используется для forgot-password и resend-verification
type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest сброс пароля токеном из письма
type ResetPasswordRequest struct {
	Token           string `json:"token" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// ChangePasswordRequest смена пароля авторизованным пользователем
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// UserResponse публичное представление учетной записи
type UserResponse struct {
	CreatedAt     time.Time     `json:"createdAt"`
	LastLoginAt   *time.Time    `json:"lastLoginAt,omitempty"`
	Name          string        `json:"name"`
	LastName      string        `json:"lastName,omitempty"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone,omitempty"`
	Role          models.Role   `json:"role"`
	Status        models.Status `json:"status"`
	ID            int64         `json:"id"`
	EmailVerified bool          `json:"emailVerified"`
}

// NewUserResponse converts a credential record, dropping the password hash.
func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Name:          u.Name,
		LastName:      u.LastName,
		Email:         u.Email,
		Phone:         u.Phone,
		Role:          u.Role,
		Status:        u.Status,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		LastLoginAt:   u.LastLoginAt,
	}
}

// UserEnvelope ответ /me и admin
type UserEnvelope struct {
	User UserResponse `json:"user"`
}

// AuthResponse ответ после успешной аутентификации.
// Token заполняется только там, где клиент получает его в теле (verify-otp, refresh).
type AuthResponse struct {
	Token     string       `json:"token,omitempty"`
	User      UserResponse `json:"user"`
	ExpiresIn int64        `json:"expiresIn"`
}

// LoginChallengeResponse ответ первого шага входа
type LoginChallengeResponse struct {
	ExpiresAt time.Time `json:"expiresAt"`
	SessionID string    `json:"sessionId"`
}

// HealthResponse ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

// Envelope единый формат успешного ответа
type Envelope struct {
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message,omitempty"`
	Success   bool   `json:"success"`
}

// ErrorEnvelope единый формат ответа с ошибкой.
// Message строка или массив строк (ошибки валидации).
type ErrorEnvelope struct {
	Message    any    `json:"message"`
	Timestamp  string `json:"timestamp"`
	StatusCode int    `json:"statusCode"`
	Success    bool   `json:"success"`
}
