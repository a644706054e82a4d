package storage

import (
	"context"
)

// AuthStorage хранит токен CLI между запусками
type AuthStorage interface {
	// SaveAuth stores authentication data, replacing the previous one
	SaveAuth(ctx context.Context, auth *AuthData) error

	// GetAuth retrieves stored authentication data
	// Returns ErrAuthNotFound if no auth data exists
	GetAuth(ctx context.Context) (*AuthData, error)

	// DeleteAuth removes stored authentication data (logout)
	DeleteAuth(ctx context.Context) error

	// IsAuthenticated checks if valid authentication exists (not expired)
	IsAuthenticated(ctx context.Context) (bool, error)
}

// AuthData represents authentication information in storage
type AuthData struct {
	Email       string `json:"email"`
	Role        string `json:"role"`
	AccessToken string `json:"access_token"`
	UserID      int64  `json:"user_id"`
	ExpiresAt   int64  `json:"expires_at"`
	Remember    bool   `json:"remember"`
}
