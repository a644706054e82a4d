// Package session stores pending two-step logins: a random session id mapped
// to the user awaiting OTP confirmation and the code that was mailed to them.
//
// A session id is a single-use capability. Several pending sessions may exist
// for the same user; each is consumed independently.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/iudanet/transitauth/internal/crypto"
)

// DefaultTTL время жизни pending-сессии
const DefaultTTL = 5 * time.Minute

var (
	ErrSessionNotFound = errors.New("login session not found")
	ErrSessionExpired  = errors.New("login session expired")
	ErrOTPMismatch     = errors.New("otp does not match")
)

// Pending is a login awaiting OTP confirmation.
type Pending struct {
	ExpiresAt time.Time `json:"expires_at"`
	Email     string    `json:"email"`
	OTP       string    `json:"otp"`
	UserID    int64     `json:"user_id"`
}

// Expired reports whether the session is past its expiry at now.
func (p *Pending) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Identity is what a successfully consumed session yields.
type Identity struct {
	Email  string
	UserID int64
}

// Store is implemented by every pending-login backend.
type Store interface {
	// Create stores a new pending login and returns its id and expiry.
	Create(ctx context.Context, userID int64, email, otp string) (string, time.Time, error)

	// Consume checks the otp and deletes the session on success.
	// Returns ErrSessionNotFound, ErrSessionExpired (session removed) or
	// ErrOTPMismatch (session kept for another attempt). Any other error is
	// a storage failure and says nothing about the session.
	Consume(ctx context.Context, sessionID, otp string) (*Identity, error)

	// Delete removes a session. Missing sessions are not an error.
	Delete(ctx context.Context, sessionID string) error
}

// Sweeper is implemented by stores that need explicit eviction of expired
// sessions. Redis expires keys by itself and does not implement it.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// check applies the consume rules shared by all backends to a loaded record.
// deleteIt reports whether the caller must remove the record.
func check(p *Pending, otp string, now time.Time) (id *Identity, deleteIt bool, err error) {
	if p.Expired(now) {
		return nil, true, ErrSessionExpired
	}
	if !crypto.VerifyOTP(p.OTP, otp) {
		return nil, false, ErrOTPMismatch
	}
	return &Identity{UserID: p.UserID, Email: p.Email}, true, nil
}

// RunJanitor периодически удаляет истекшие сессии, пока ctx не отменен
func RunJanitor(ctx context.Context, s Sweeper, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				logger.WarnContext(ctx, "failed to sweep login sessions", slog.Any("error", err))
				continue
			}
			if n > 0 {
				logger.DebugContext(ctx, "expired login sessions removed", slog.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}
