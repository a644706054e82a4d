package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iudanet/transitauth/internal/models"
	"github.com/iudanet/transitauth/internal/server/storage"
)

// mockUserStorage хранит пользователей в памяти и позволяет подставить ошибки
type mockUserStorage struct {
	users          map[int64]*models.User
	getErr         error
	createErr      error
	updateErr      error
	lastLogoutErr  error
	nextID         int64
	passwordWrites int
	mu             sync.Mutex
}

func newMockUserStorage() *mockUserStorage {
	return &mockUserStorage{users: make(map[int64]*models.User)}
}

func (m *mockUserStorage) add(u *models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	u.ID = m.nextID
	cp := *u
	m.users[u.ID] = &cp
	return u
}

func (m *mockUserStorage) get(id int64) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (m *mockUserStorage) CreateUser(_ context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			m.mu.Unlock()
			return storage.ErrUserAlreadyExists
		}
	}
	m.mu.Unlock()
	m.add(user)
	return nil
}

func (m *mockUserStorage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserStorage) GetUserByID(_ context.Context, userID int64) (*models.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if u := m.get(userID); u != nil {
		return u, nil
	}
	return nil, storage.ErrUserNotFound
}

func (m *mockUserStorage) update(userID int64, fn func(u *models.User)) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	fn(u)
	return nil
}

func (m *mockUserStorage) UpdatePassword(_ context.Context, userID int64, passwordHash string) error {
	return m.update(userID, func(u *models.User) {
		u.PasswordHash = passwordHash
		m.passwordWrites++
	})
}

func (m *mockUserStorage) MarkEmailVerified(_ context.Context, userID int64) error {
	return m.update(userID, func(u *models.User) {
		u.EmailVerified = true
		if u.Status == models.StatusPending {
			u.Status = models.StatusActive
		}
	})
}

func (m *mockUserStorage) UpdateLastLogin(_ context.Context, userID int64, at time.Time) error {
	return m.update(userID, func(u *models.User) { u.LastLoginAt = &at })
}

func (m *mockUserStorage) UpdateLastLogout(_ context.Context, userID int64, at time.Time) error {
	if m.lastLogoutErr != nil {
		return m.lastLogoutErr
	}
	return m.update(userID, func(u *models.User) { u.LastLogoutAt = &at })
}

type sentMail struct {
	kind  string
	to    string
	token string
}

// mockNotifier запоминает письма вместо отправки
type mockNotifier struct {
	errByKind map[string]error
	sent      []sentMail
	mu        sync.Mutex
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{errByKind: make(map[string]error)}
}

func (n *mockNotifier) record(kind, to, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.errByKind[kind]; err != nil {
		return err
	}
	n.sent = append(n.sent, sentMail{kind: kind, to: to, token: token})
	return nil
}

func (n *mockNotifier) last(kind string) (sentMail, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].kind == kind {
			return n.sent[i], true
		}
	}
	return sentMail{}, false
}

func (n *mockNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.sent {
		if m.kind == kind {
			c++
		}
	}
	return c
}

func (n *mockNotifier) SendWelcome(_ context.Context, to, _ string) error {
	return n.record("welcome", to, "")
}

func (n *mockNotifier) SendVerification(_ context.Context, to, _, token string) error {
	return n.record("verification", to, token)
}

func (n *mockNotifier) SendLoginCode(_ context.Context, to, _, code string, _ time.Duration) error {
	return n.record("otp", to, code)
}

func (n *mockNotifier) SendPasswordReset(_ context.Context, to, _, token string) error {
	return n.record("reset", to, token)
}

func (n *mockNotifier) SendPasswordChanged(_ context.Context, to, _ string) error {
	return n.record("password-changed", to, "")
}

// mockSink фиксирует очистку сессии при logout
type mockSink struct {
	cleared int
}

func (s *mockSink) ClearSession() {
	s.cleared++
}
