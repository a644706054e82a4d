package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iudanet/transitauth/internal/models"
	"github.com/iudanet/transitauth/internal/server/storage"
)

// uniqueViolation is the SQLSTATE of unique_violation
const uniqueViolation = "23505"

const userColumns = `id, email, password_hash, name, last_name, phone, role, status,
		email_verified, created_at, updated_at, last_login_at, last_logout_at`

// CreateUser creates a new user in the storage
func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, name, last_name, phone, role, status, email_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.LastName,
		user.Phone,
		string(user.Role),
		string(user.Status),
		user.EmailVerified,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return storage.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetUserByEmail retrieves user by email, ignoring case
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return s.getUser(ctx, query, email)
}

// GetUserByID retrieves user by ID
func (s *Storage) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
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
	query := `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`
	return s.execUpdate(ctx, "update password", query, passwordHash, userID)
}

// MarkEmailVerified marks the email as verified and activates a PENDING account
func (s *Storage) MarkEmailVerified(ctx context.Context, userID int64) error {
	query := `
		UPDATE users
		SET email_verified = TRUE,
			status = CASE WHEN status = $1 THEN $2 ELSE status END,
			updated_at = NOW()
		WHERE id = $3
	`
	return s.execUpdate(ctx, "mark email verified", query,
		string(models.StatusPending), string(models.StatusActive), userID)
}

// UpdateLastLogin updates the last login timestamp
func (s *Storage) UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error {
	query := `UPDATE users SET last_login_at = $1 WHERE id = $2`
	return s.execUpdate(ctx, "update last login", query, at, userID)
}

// UpdateLastLogout updates the last logout timestamp
func (s *Storage) UpdateLastLogout(ctx context.Context, userID int64, at time.Time) error {
	query := `UPDATE users SET last_logout_at = $1 WHERE id = $2`
	return s.execUpdate(ctx, "update last logout", query, at, userID)
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
