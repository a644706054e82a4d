// Package jwt issues and verifies the signed tokens used by the auth flows.
//
// All token kinds share one HMAC secret. Purpose separation is enforced by the
// "type" claim, which every Verify* helper checks after signature validation.
package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/iudanet/transitauth/internal/models"
)

// Purpose discriminates what a token may be used for.
type Purpose string

const (
	PurposeAccess            Purpose = "access"
	PurposeEmailVerification Purpose = "email-verification"
	PurposePasswordReset     Purpose = "password-reset"
)

const (
	issuer = "transitauth"

	// EmailVerificationTTL время жизни токена подтверждения email
	EmailVerificationTTL = 24 * time.Hour
	// PasswordResetTTL время жизни токена сброса пароля
	PasswordResetTTL = time.Hour
)

var (
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenInvalid    = errors.New("invalid token")
	ErrWrongTokenType  = errors.New("wrong token type")
	ErrMissingSecret   = errors.New("jwt secret is not configured")
	ErrMissingToken    = errors.New("missing token")
	ErrMalformedHeader = errors.New("malformed authorization header")
)

// Claims is the payload of every token kind. Access tokens fill the identity
// fields; temporary tokens carry only Email and Type.
type Claims struct {
	Email  string      `json:"email"`
	Role   models.Role `json:"role,omitempty"`
	Name   string      `json:"name,omitempty"`
	Type     Purpose     `json:"type"`
	UserID   int64       `json:"id,omitempty"`
	Remember bool        `json:"remember,omitempty"`
	jwtlib.RegisteredClaims
}

// Identity is what an access token asserts about its bearer.
type Identity struct {
	Email  string
	Role   models.Role
	Name   string
	UserID int64

	// Remember is set on tokens issued for a remember-me session.
	Remember bool
}

// IdentityFromUser builds the token identity of a credential record.
func IdentityFromUser(u *models.User) Identity {
	return Identity{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
		Name:   u.DisplayName(),
	}
}

// Identity returns the identity asserted by access claims.
func (c *Claims) Identity() Identity {
	return Identity{UserID: c.UserID, Email: c.Email, Role: c.Role, Name: c.Name, Remember: c.Remember}
}

// AccessToken is a signed access token and its lifetime in seconds.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
	ExpiresIn int64
}

// Config содержит конфигурацию для JWT
type Config struct {
	Secret         string
	AccessTokenTTL string // например "24h", "15m", "7d"
	RememberTTL    string // TTL для remember-me, например "30d"
}

// Service provides JWT token generation and validation
type Service struct {
	now         func() time.Time
	secret      []byte
	accessTTL   time.Duration
	rememberTTL time.Duration
}

// NewService parses the configured TTL strings and creates a token service.
// An empty secret is accepted here and reported as ErrMissingSecret on use,
// so a misconfigured server still starts and answers with 500.
func NewService(cfg Config) (*Service, error) {
	accessTTL, err := ParseTTL(cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid access token ttl: %w", err)
	}

	rememberTTL := accessTTL
	if cfg.RememberTTL != "" {
		rememberTTL, err = ParseTTL(cfg.RememberTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid remember token ttl: %w", err)
		}
	}

	return &Service{
		secret:      []byte(cfg.Secret),
		accessTTL:   accessTTL,
		rememberTTL: rememberTTL,
		now:         time.Now,
	}, nil
}

// WithClock returns a copy of the service using now as its time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

// AccessTTL returns the lifetime of regular access tokens.
func (s *Service) AccessTTL() time.Duration {
	return s.accessTTL
}

// RememberTTL returns the lifetime of remember-me access tokens.
func (s *Service) RememberTTL() time.Duration {
	return s.rememberTTL
}

// IssueAccess creates a new access token for the identity.
func (s *Service) IssueAccess(id Identity) (*AccessToken, error) {
	id.Remember = false
	return s.issueAccess(id, s.accessTTL)
}

// IssueRemembered creates a long-lived access token for remember-me sessions.
// The token carries the remember claim, so refresh keeps the long lifetime
// even when the token arrives in an Authorization header.
func (s *Service) IssueRemembered(id Identity) (*AccessToken, error) {
	id.Remember = true
	return s.issueAccess(id, s.rememberTTL)
}

func (s *Service) issueAccess(id Identity, ttl time.Duration) (*AccessToken, error) {
	now := s.now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		UserID:   id.UserID,
		Email:    id.Email,
		Role:     id.Role,
		Name:     id.Name,
		Type:     PurposeAccess,
		Remember: id.Remember,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   strconv.FormatInt(id.UserID, 10),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			IssuedAt:  jwtlib.NewNumericDate(now),
			NotBefore: jwtlib.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token, err := s.sign(claims)
	if err != nil {
		return nil, err
	}

	return &AccessToken{
		Token:     token,
		ExpiresAt: expiresAt,
		ExpiresIn: int64(ttl.Seconds()),
	}, nil
}

// IssueTemporary creates a purpose-scoped token for the given email.
func (s *Service) IssueTemporary(email string, purpose Purpose) (string, error) {
	var ttl time.Duration
	switch purpose {
	case PurposeEmailVerification:
		ttl = EmailVerificationTTL
	case PurposePasswordReset:
		ttl = PasswordResetTTL
	default:
		return "", fmt.Errorf("unsupported temporary token purpose %q", purpose)
	}

	now := s.now()
	claims := Claims{
		Email: email,
		Type:  purpose,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	return s.sign(claims)
}

// Verify validates signature and expiry and returns the claims.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, ErrMissingSecret
	}
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwtlib.ParseWithClaims(tokenString, claims, func(token *jwtlib.Token) (interface{}, error) {
		// Проверяем что используется правильный алгоритм подписи
		if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwtlib.WithTimeFunc(s.now),
		jwtlib.WithIssuer(issuer),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// VerifyAccess verifies an access token. Temporary tokens are rejected with
// ErrWrongTokenType even when their signature is valid.
func (s *Service) VerifyAccess(tokenString string) (*Claims, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != PurposeAccess {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// VerifyTemporary verifies a temporary token and returns its email if the
// token was minted for the expected purpose.
func (s *Service) VerifyTemporary(tokenString string, expected Purpose) (string, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return "", err
	}
	if claims.Type != expected {
		return "", ErrWrongTokenType
	}
	if claims.Email == "" {
		return "", ErrTokenInvalid
	}
	return claims.Email, nil
}

func (s *Service) sign(claims Claims) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrMissingSecret
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ExtractFromHeader извлекает токен из заголовка "Bearer <token>"
func ExtractFromHeader(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrMalformedHeader
	}

	return parts[1], nil
}

// ParseTTL parses a TTL such as "30s", "15m", "24h" or "7d".
// A bare number is interpreted as seconds.
func ParseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("ttl cannot be empty")
	}

	unit := time.Second
	value := s
	switch s[len(s)-1] {
	case 's':
		value = s[:len(s)-1]
	case 'm':
		unit = time.Minute
		value = s[:len(s)-1]
	case 'h':
		unit = time.Hour
		value = s[:len(s)-1]
	case 'd':
		unit = 24 * time.Hour
		value = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ttl %q", s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("ttl must be positive, got %q", s)
	}

	return time.Duration(n) * unit, nil
}
