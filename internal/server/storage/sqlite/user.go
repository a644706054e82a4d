package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iudanet/transitauth/internal/models"
	"github.com/iudanet/transitauth/internal/server/storage"
)

const userColumns = `id, email, password_hash, name, last_name, phone, role, status,
		email_verified, created_at, updated_at, last_login_at, last_logout_at`

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, name, last_name, phone, role, status,
			email_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.LastName,
		user.Phone,
		string(user.Role),
		string(user.Status),
		user.EmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		// Проверяем на duplicate email
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.email") {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get user id: %w", err)
	}
	user.ID = id

	return nil
}

// GetUserByEmail retrieves user by email
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`
	return s.getUser(ctx, query, email)
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return s.getUser(ctx, query, userID)
}

func (s *Storage) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	var (
		role, status          string
		lastLogin, lastLogout sql.NullTime
	)

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&user.LastName,
		&user.Phone,
		&role,
		&status,
		&user.EmailVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastLogin,
		&lastLogout,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.Role = models.Role(role)
	user.Status = models.Status(status)
	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Time
	}
	if lastLogout.Valid {
		user.LastLogoutAt = &lastLogout.Time
	}

	return user, nil
}

// UpdatePassword replaces the password hash
func (s *Storage) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	query := `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`
	return s.execUpdate(ctx, "update password", query, passwordHash, time.Now().UTC(), userID)
}

// MarkEmailVerified marks the email as verified and activates a PENDING account
func (s *Storage) MarkEmailVerified(ctx context.Context, userID int64) error {
	query := `
		UPDATE users
		SET email_verified = 1,
			status = CASE WHEN status = ? THEN ? ELSE status END,
			updated_at = ?
		WHERE id = ?
	`
	return s.execUpdate(ctx, "mark email verified", query,
		string(models.StatusPending), string(models.StatusActive), time.Now().UTC(), userID)
}

// UpdateLastLogin updates the last login timestamp
func (s *Storage) UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error {
	query := `UPDATE users SET last_login_at = ? WHERE id = ?`
	return s.execUpdate(ctx, "update last login", query, at.UTC(), userID)
}

// UpdateLastLogout updates the last logout timestamp
func (s *Storage) UpdateLastLogout(ctx context.Context, userID int64, at time.Time) error {
	query := `UPDATE users SET last_logout_at = ? WHERE id = ?`
	return s.execUpdate(ctx, "update last logout", query, at.UTC(), userID)
}

func (s *Storage) execUpdate(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}
