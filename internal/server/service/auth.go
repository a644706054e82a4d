// Package service содержит бизнес-логику аутентификации: регистрацию,
// двухшаговый вход с OTP, прямой вход, подтверждение email и работу с паролями.
//
// Every anticipated failure is returned as *apierr.Error. Anything else is
// wrapped into apierr.Internal so the HTTP layer never leaks internals.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iudanet/transitauth/internal/crypto"
	"github.com/iudanet/transitauth/internal/models"
	"github.com/iudanet/transitauth/internal/server/apierr"
	"github.com/iudanet/transitauth/internal/server/jwt"
	"github.com/iudanet/transitauth/internal/server/session"
	"github.com/iudanet/transitauth/internal/server/storage"
)

// Сообщения, которые видит клиент
const (
	msgInvalidCredentials = "invalid email or password"
	msgPasswordsMismatch  = "passwords do not match"
	msgAccountInactive    = "account is inactive"
	msgAccountBanned      = "account is banned"
	msgEmailNotVerified   = "email address is not verified"
	msgUserNotFound       = "user not found"
)

// Notifier sends account mails.
type Notifier interface {
	SendWelcome(ctx context.Context, to, name string) error
	SendVerification(ctx context.Context, to, name, token string) error
	SendLoginCode(ctx context.Context, to, name, code string, ttl time.Duration) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
	SendPasswordChanged(ctx context.Context, to, name string) error
}

// SessionSink is the client session a logout clears, usually the cookie jar
// of the HTTP response.
type SessionSink interface {
	ClearSession()
}

// Config переключатели поведения сервиса
type Config struct {
	// LoginSessionTTL is shown in the login code mail.
	LoginSessionTTL time.Duration
	// DirectLoginEnabled allows single-step SignIn without OTP.
	DirectLoginEnabled bool
	// RequireVerifiedEmail blocks both login variants until the email is confirmed.
	RequireVerifiedEmail bool
}

// RegisterInput данные регистрации
type RegisterInput struct {
	Name            string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
	Phone           string
}

// AuthResult is an authenticated user together with a freshly issued token.
type AuthResult struct {
	User     *models.User
	Token    *jwt.AccessToken
	Remember bool
}

// LoginChallenge is the outcome of the first login step.
type LoginChallenge struct {
	ExpiresAt time.Time
	SessionID string
}

// passwordHasher is the part of crypto.PasswordHasher the flows use.
type passwordHasher interface {
	Hash(password string) (string, error)
	Compare(password, hash string) bool
	CompareDummy(password string) bool
	NeedsRehash(hash string) bool
}

// AuthService implements the authentication flows.
type AuthService struct {
	logger   *slog.Logger
	users    storage.UserStorage
	sessions session.Store
	tokens   *jwt.Service
	hasher   passwordHasher
	notifier Notifier
	newOTP   func() (string, error)
	now      func() time.Time
	cfg      Config
}

// NewAuthService создает сервис аутентификации
func NewAuthService(
	logger *slog.Logger,
	users storage.UserStorage,
	sessions session.Store,
	tokens *jwt.Service,
	hasher *crypto.PasswordHasher,
	notifier Notifier,
	cfg Config,
) *AuthService {
	if cfg.LoginSessionTTL <= 0 {
		cfg.LoginSessionTTL = session.DefaultTTL
	}
	return &AuthService{
		logger:   logger,
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		newOTP:   crypto.GenerateOTP,
		now:      time.Now,
		cfg:      cfg,
	}
}

// DirectLoginEnabled reports whether SignIn is allowed.
func (s *AuthService) DirectLoginEnabled() bool {
	return s.cfg.DirectLoginEnabled
}

// Register creates a PENDING account, mails the verification link and
// returns an access token usable right away.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)

	if in.Password != in.ConfirmPassword {
		return nil, apierr.BadRequest(msgPasswordsMismatch)
	}
	if report := crypto.ValidatePasswordStrength(in.Password); !report.IsValid {
		return nil, apierr.Validation(report.Errors...)
	}

	_, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, apierr.Conflict("email already registered")
	case !errors.Is(err, storage.ErrUserNotFound):
		return nil, apierr.Internal(fmt.Errorf("failed to check email: %w", err))
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apierr.Internal(err)
	}

	user := &models.User{
		Name:          strings.TrimSpace(in.Name),
		LastName:      strings.TrimSpace(in.LastName),
		Email:         email,
		Phone:         strings.TrimSpace(in.Phone),
		PasswordHash:  hash,
		Role:          models.RoleUser,
		Status:        models.StatusPending,
		EmailVerified: false,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		// Параллельная регистрация с тем же email
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			return nil, apierr.Conflict("email already registered")
		}
		return nil, apierr.Internal(fmt.Errorf("failed to create user: %w", err))
	}

	token, err := s.tokens.IssueAccess(jwt.IdentityFromUser(user))
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("failed to issue access token: %w", err))
	}

	s.logger.InfoContext(ctx, "User registered",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)

	s.sendVerification(ctx, user)
	if err := s.notifier.SendWelcome(ctx, user.Email, user.DisplayName()); err != nil {
		s.logger.WarnContext(ctx, "failed to send welcome email",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// StartLogin checks the password, creates a pending login session and mails
// the one-time code. No token is issued here.
func (s *AuthService) StartLogin(ctx context.Context, email, password string) (*LoginChallenge, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	code, err := s.newOTP()
	if err != nil {
		return nil, apierr.Internal(err)
	}

	sessionID, expiresAt, err := s.sessions.Create(ctx, user.ID, user.Email, code)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("failed to create login session: %w", err))
	}

	if err := s.notifier.SendLoginCode(ctx, user.Email, user.DisplayName(), code, s.cfg.LoginSessionTTL); err != nil {
		// Без письма сессию завершить невозможно
		if delErr := s.sessions.Delete(ctx, sessionID); delErr != nil {
			s.logger.WarnContext(ctx, "failed to delete login session", slog.Any("error", delErr))
		}
		return nil, apierr.Internal(fmt.Errorf("failed to send login code: %w", err))
	}

	s.logger.InfoContext(ctx, "Login code sent", slog.Int64("user_id", user.ID))

	return &LoginChallenge{SessionID: sessionID, ExpiresAt: expiresAt}, nil
}

// VerifyOTP completes a two-step login. A wrong code keeps the session alive
// until it expires.
func (s *AuthService) VerifyOTP(ctx context.Context, sessionID, code string, remember bool) (*AuthResult, error) {
	identity, err := s.sessions.Consume(ctx, sessionID, code)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			return nil, apierr.Wrap(apierr.Unauthorized("login session not found"), err)
		case errors.Is(err, session.ErrSessionExpired):
			return nil, apierr.Wrap(apierr.Unauthorized("login session expired"), err)
		case errors.Is(err, session.ErrOTPMismatch):
			s.logger.WarnContext(ctx, "OTP mismatch", slog.String("session_id", sessionID))
			return nil, apierr.Wrap(apierr.Unauthorized("invalid verification code"), err)
		default:
			return nil, apierr.Internal(fmt.Errorf("failed to consume login session: %w", err))
		}
	}

	user, err := s.users.GetUserByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, apierr.Unauthorized(msgUserNotFound)
		}
		return nil, apierr.Internal(err)
	}

	// Статус мог измениться, пока код был в пути
	if err := s.checkStatus(user); err != nil {
		return nil, err
	}

	return s.completeLogin(ctx, user, remember)
}

// SignIn is the single-step login: password check, then token.
func (s *AuthService) SignIn(ctx context.Context, email, password string, remember bool) (*AuthResult, error) {
	if !s.cfg.DirectLoginEnabled {
		return nil, apierr.Forbidden("direct sign-in is disabled")
	}

	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	return s.completeLogin(ctx, user, remember)
}

// VerifyEmail confirms the address encoded in an email-verification token
// and activates the account.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	email, err := s.tokens.VerifyTemporary(token, jwt.PurposeEmailVerification)
	if err != nil {
		return nil, temporaryTokenError(err, "verification")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, apierr.NotFound(msgUserNotFound)
		}
		return nil, apierr.Internal(err)
	}

	if user.EmailVerified {
		return nil, apierr.BadRequest("email is already verified")
	}

	if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, apierr.NotFound(msgUserNotFound)
		}
		return nil, apierr.Internal(err)
	}

	user.EmailVerified = true
	// Заблокированные аккаунты не активируются подтверждением почты
	if user.Status == models.StatusPending {
		user.Status = models.StatusActive
	}

	s.logger.InfoContext(ctx, "Email verified", slog.Int64("user_id", user.ID))

	return user, nil
}

// ResendVerification mails a new verification link. The result does not
// depend on whether the account exists.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, ok := s.lookupQuietly(ctx, email)
	if !ok || user.EmailVerified {
		return nil
	}

	s.sendVerification(ctx, user)
	return nil
}

// ForgotPassword mails a reset link when the account exists. The result is
// identical either way.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, ok := s.lookupQuietly(ctx, email)
	if !ok {
		return nil
	}

	token, err := s.tokens.IssueTemporary(user.Email, jwt.PurposePasswordReset)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to issue password reset token", slog.Any("error", err))
		return nil
	}

	if err := s.notifier.SendPasswordReset(ctx, user.Email, user.DisplayName(), token); err != nil {
		s.logger.WarnContext(ctx, "failed to send password reset email",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	return nil
}

// ResetPassword sets a new password using a password-reset token. Input
// shape is checked before the token is decoded.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword, confirm string) error {
	if newPassword != confirm {
		return apierr.BadRequest(msgPasswordsMismatch)
	}
	if report := crypto.ValidatePasswordStrength(newPassword); !report.IsValid {
		return apierr.Validation(report.Errors...)
	}

	email, err := s.tokens.VerifyTemporary(token, jwt.PurposePasswordReset)
	if err != nil {
		return temporaryTokenError(err, "reset")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return apierr.NotFound(msgUserNotFound)
		}
		return apierr.Internal(err)
	}

	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Password reset", slog.Int64("user_id", user.ID))
	s.notifyPasswordChanged(ctx, user)

	return nil
}

// ChangePassword replaces the password of an authenticated user. Nothing is
// written unless every check passes.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, newPassword, confirm string) error {
	if newPassword != confirm {
		return apierr.BadRequest(msgPasswordsMismatch)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return apierr.NotFound(msgUserNotFound)
		}
		return apierr.Internal(err)
	}

	if !s.hasher.Compare(current, user.PasswordHash) {
		return apierr.BadRequest("current password is incorrect")
	}
	// Сравниваем с хешем, а не с введенным текущим паролем
	if s.hasher.Compare(newPassword, user.PasswordHash) {
		return apierr.BadRequest("new password must be different from the current one")
	}
	if report := crypto.ValidatePasswordStrength(newPassword); !report.IsValid {
		return apierr.Validation(report.Errors...)
	}

	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Password changed", slog.Int64("user_id", user.ID))
	s.notifyPasswordChanged(ctx, user)

	return nil
}

// Logout clears the client session and records the logout time. The sink is
// cleared even when recording fails. A zero userID means an anonymous
// logout: only the sink is cleared.
func (s *AuthService) Logout(ctx context.Context, userID int64, sink SessionSink) error {
	if sink != nil {
		defer sink.ClearSession()
	}

	if userID == 0 {
		return nil
	}

	if err := s.users.UpdateLastLogout(ctx, userID, s.now()); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil
		}
		return apierr.Internal(fmt.Errorf("failed to record logout: %w", err))
	}

	s.logger.InfoContext(ctx, "User logged out", slog.Int64("user_id", userID))
	return nil
}

// Refresh issues a new access token for an already authenticated user.
func (s *AuthService) Refresh(ctx context.Context, userID int64, remember bool) (*AuthResult, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, apierr.Unauthorized(msgUserNotFound)
		}
		return nil, apierr.Internal(err)
	}

	if err := s.checkStatus(user); err != nil {
		return nil, err
	}

	token, err := s.issue(user, remember)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, Token: token, Remember: remember}, nil
}

// GetUser returns the credential record of userID.
func (s *AuthService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, apierr.NotFound(msgUserNotFound)
		}
		return nil, apierr.Internal(err)
	}
	return user, nil
}

// authenticate checks email and password and the account status.
func (s *AuthService) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// Та же работа bcrypt, что и для существующего аккаунта
			s.hasher.CompareDummy(password)
			return nil, apierr.Unauthorized(msgInvalidCredentials)
		}
		return nil, apierr.Internal(err)
	}

	if !s.hasher.Compare(password, user.PasswordHash) {
		s.logger.WarnContext(ctx, "Invalid password", slog.Int64("user_id", user.ID))
		return nil, apierr.Unauthorized(msgInvalidCredentials)
	}

	if err := s.checkStatus(user); err != nil {
		return nil, err
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		if err := s.setPassword(ctx, user, password); err != nil {
			s.logger.WarnContext(ctx, "failed to rehash password", slog.Any("error", err))
		}
	}

	return user, nil
}

func (s *AuthService) checkStatus(user *models.User) error {
	if user.Status == models.StatusBanned {
		return apierr.Forbidden(msgAccountBanned)
	}
	if !user.Status.CanLogin() {
		return apierr.Forbidden(msgAccountInactive)
	}
	if s.cfg.RequireVerifiedEmail && !user.EmailVerified {
		return apierr.Forbidden(msgEmailNotVerified)
	}
	return nil
}

func (s *AuthService) completeLogin(ctx context.Context, user *models.User, remember bool) (*AuthResult, error) {
	token, err := s.issue(user, remember)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to update last login", slog.Any("error", err))
	} else {
		user.LastLoginAt = &now
	}

	s.logger.InfoContext(ctx, "User logged in",
		slog.Int64("user_id", user.ID),
		slog.Bool("remember", remember),
	)

	return &AuthResult{User: user, Token: token, Remember: remember}, nil
}

func (s *AuthService) issue(user *models.User, remember bool) (*jwt.AccessToken, error) {
	issue := s.tokens.IssueAccess
	if remember {
		issue = s.tokens.IssueRemembered
	}

	token, err := issue(jwt.IdentityFromUser(user))
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("failed to issue access token: %w", err))
	}
	return token, nil
}

func (s *AuthService) setPassword(ctx context.Context, user *models.User, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return apierr.Internal(err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return apierr.NotFound(msgUserNotFound)
		}
		return apierr.Internal(fmt.Errorf("failed to update password: %w", err))
	}

	user.PasswordHash = hash
	return nil
}

// lookupQuietly finds a user for the anti-enumeration flows. Storage errors
// are logged, never returned.
func (s *AuthService) lookupQuietly(ctx context.Context, email string) (*models.User, bool) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			s.logger.ErrorContext(ctx, "failed to look up user", slog.Any("error", err))
		}
		return nil, false
	}
	return user, true
}

func (s *AuthService) sendVerification(ctx context.Context, user *models.User) {
	token, err := s.tokens.IssueTemporary(user.Email, jwt.PurposeEmailVerification)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to issue verification token", slog.Any("error", err))
		return
	}

	if err := s.notifier.SendVerification(ctx, user.Email, user.DisplayName(), token); err != nil {
		s.logger.WarnContext(ctx, "failed to send verification email",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err),
		)
	}
}

func (s *AuthService) notifyPasswordChanged(ctx context.Context, user *models.User) {
	if err := s.notifier.SendPasswordChanged(ctx, user.Email, user.DisplayName()); err != nil {
		s.logger.WarnContext(ctx, "failed to send password changed email",
			slog.Int64("user_id", user.ID),
			slog.Any("error", err),
		)
	}
}

func temporaryTokenError(err error, kind string) error {
	switch {
	case errors.Is(err, jwt.ErrMissingSecret):
		return apierr.Internal(err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return apierr.Wrap(apierr.BadRequest(kind+" link has expired"), err)
	default:
		return apierr.Wrap(apierr.BadRequest("invalid "+kind+" token"), err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
