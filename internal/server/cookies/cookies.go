// Package cookies writes and reads the browser session cookies.
//
// A session is a pair: an HttpOnly cookie with the signed access token and a
// script-readable "shadow" cookie with non-sensitive user fields. Remember-me
// sessions use a second pair with a longer max-age.
package cookies

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/iudanet/transitauth/internal/models"
)

const (
	AuthCookie            = "access_token"
	SessionCookie         = "session"
	RememberAuthCookie    = "remember_token"
	RememberSessionCookie = "remember_session"

	DefaultMaxAge         = 24 * time.Hour
	DefaultRememberMaxAge = 30 * 24 * time.Hour
)

// ErrNoSession is returned when no session cookie is present.
var ErrNoSession = errors.New("no session cookie")

// SessionUser is the payload of the shadow cookie. It never carries the
// token or the password hash.
type SessionUser struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	Name  string      `json:"name"`
	ID    int64       `json:"id"`
}

// SessionUserFrom builds the shadow cookie payload of a user.
func SessionUserFrom(u *models.User) SessionUser {
	return SessionUser{ID: u.ID, Email: u.Email, Role: u.Role, Name: u.DisplayName()}
}

// Config содержит настройки cookie
type Config struct {
	Domain         string
	MaxAge         time.Duration
	RememberMaxAge time.Duration
	Secure         bool
}

// Manager sets and clears session cookies.
type Manager struct {
	cfg Config
}

// NewManager creates a cookie manager, filling zero max-ages with defaults.
func NewManager(cfg Config) *Manager {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.RememberMaxAge <= 0 {
		cfg.RememberMaxAge = DefaultRememberMaxAge
	}
	return &Manager{cfg: cfg}
}

// Set writes the token cookie and the shadow cookie. With remember set the
// long-lived pair is written instead of the primary one.
func (m *Manager) Set(w http.ResponseWriter, token string, user SessionUser, remember bool) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal session cookie: %w", err)
	}

	authName, sessionName, maxAge := AuthCookie, SessionCookie, m.cfg.MaxAge
	if remember {
		authName, sessionName, maxAge = RememberAuthCookie, RememberSessionCookie, m.cfg.RememberMaxAge
	}

	http.SetCookie(w, m.cookie(authName, token, maxAge, true))
	// Значение JSON экранируется: net/http вырезает кавычки из cookie
	http.SetCookie(w, m.cookie(sessionName, url.QueryEscape(string(payload)), maxAge, false))

	return nil
}

// Clear expires both cookie pairs.
func (m *Manager) Clear(w http.ResponseWriter) {
	for _, name := range []string{AuthCookie, RememberAuthCookie} {
		c := m.cookie(name, "", 0, true)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
	for _, name := range []string{SessionCookie, RememberSessionCookie} {
		c := m.cookie(name, "", 0, false)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

// Token returns the access token from the primary cookie, falling back to
// the remember-me cookie.
func (m *Manager) Token(r *http.Request) (string, bool) {
	for _, name := range []string{AuthCookie, RememberAuthCookie} {
		if c, err := r.Cookie(name); err == nil && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}

// Remembered reports whether the request authenticates with the
// remember-me pair only.
func (m *Manager) Remembered(r *http.Request) bool {
	if c, err := r.Cookie(AuthCookie); err == nil && c.Value != "" {
		return false
	}
	c, err := r.Cookie(RememberAuthCookie)
	return err == nil && c.Value != ""
}

// Session decodes the shadow cookie.
func (m *Manager) Session(r *http.Request) (*SessionUser, error) {
	for _, name := range []string{SessionCookie, RememberSessionCookie} {
		c, err := r.Cookie(name)
		if err != nil || c.Value == "" {
			continue
		}

		raw, err := url.QueryUnescape(c.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to unescape session cookie: %w", err)
		}

		var user SessionUser
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return nil, fmt.Errorf("failed to decode session cookie: %w", err)
		}
		return &user, nil
	}
	return nil, ErrNoSession
}

func (m *Manager) cookie(name, value string, maxAge time.Duration, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   m.cfg.Domain,
		MaxAge:   int(maxAge.Seconds()),
		Expires:  time.Now().Add(maxAge),
		HttpOnly: httpOnly,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}
