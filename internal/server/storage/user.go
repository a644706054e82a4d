package storage

import (
	"context"
	"time"

	"github.com/iudanet/transitauth/internal/models"
)

// UserStorage defines interface for credential record persistence
type UserStorage interface {
	// CreateUser creates a new user in the storage and sets user.ID
	// Returns ErrUserAlreadyExists if email is already taken
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail retrieves user by email (case-insensitive)
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID int64) (*models.User, error)

	// UpdatePassword replaces the password hash
	// Returns ErrUserNotFound if user doesn't exist
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error

	// MarkEmailVerified sets email_verified and moves a PENDING account to ACTIVE
	// Returns ErrUserNotFound if user doesn't exist
	MarkEmailVerified(ctx context.Context, userID int64) error

	// UpdateLastLogin updates the last login timestamp
	UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error

	// UpdateLastLogout updates the last logout timestamp
	UpdateLastLogout(ctx context.Context, userID int64, at time.Time) error
}

// Pinger is implemented by storages that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}
