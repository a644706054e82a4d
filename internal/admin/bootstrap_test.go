package admin

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iudanet/transitauth/internal/client/iocli"
	"github.com/iudanet/transitauth/internal/crypto"
	"github.com/iudanet/transitauth/internal/models"
	"github.com/iudanet/transitauth/internal/server/storage/sqlite"
)

const strongPassword = "Adm1n!Pass"

// scriptedIO отдает заранее заданные ответы по порядку
type scriptedIO struct {
	answers []string
	err     error
	out     bytes.Buffer
}

func (s *scriptedIO) next() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if len(s.answers) == 0 {
		return "", errors.New("no more input")
	}
	v := s.answers[0]
	s.answers = s.answers[1:]
	return v, nil
}

func (s *scriptedIO) Println(a ...any)               {}
func (s *scriptedIO) Printf(format string, a ...any) {}

func (s *scriptedIO) ReadInput(prompt string) (string, error) {
	s.out.WriteString(prompt)
	return s.next()
}

func (s *scriptedIO) ReadPassword(prompt string) (string, error) {
	s.out.WriteString(prompt)
	return s.next()
}

func setupBootstrapper(t *testing.T, io iocli.IO, env map[string]string) (*Bootstrapper, *sqlite.Storage) {
	t.Helper()
	users, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = users.Close() })

	b := NewBootstrapper(users, crypto.NewPasswordHasher(bcrypt.MinCost), io)
	b.getenv = func(key string) string { return env[key] }
	return b, users
}

func TestBootstrapper_CreateAdmin_Interactive(t *testing.T) {
	io := &scriptedIO{answers: []string{"Root@Example.com", "Root", strongPassword, strongPassword}}
	b, users := setupBootstrapper(t, io, nil)

	user, err := b.CreateAdmin(context.Background(), Input{})
	require.NoError(t, err)

	assert.Equal(t, "root@example.com", user.Email)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.Equal(t, models.StatusActive, user.Status)
	assert.True(t, user.EmailVerified)
	assert.Contains(t, io.out.String(), "Confirm password: ")

	stored, err := users.GetUserByEmail(context.Background(), "root@example.com")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(strongPassword)))
}

func TestBootstrapper_CreateAdmin_PasswordSources(t *testing.T) {
	t.Run("environment", func(t *testing.T) {
		io := &scriptedIO{}
		b, _ := setupBootstrapper(t, io, map[string]string{PasswordEnv: strongPassword})

		_, err := b.CreateAdmin(context.Background(), Input{Email: "a@example.com", Name: "A"})
		require.NoError(t, err)
		assert.Empty(t, io.out.String(), "nothing is prompted")
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pw")
		require.NoError(t, os.WriteFile(path, []byte(strongPassword+"\n"), 0o600))
		b, _ := setupBootstrapper(t, &scriptedIO{}, nil)

		_, err := b.CreateAdmin(context.Background(), Input{Email: "b@example.com", Name: "B", PasswordFile: path})
		require.NoError(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		b, _ := setupBootstrapper(t, &scriptedIO{}, nil)

		_, err := b.CreateAdmin(context.Background(), Input{Email: "c@example.com", Name: "C", PasswordFile: "/nonexistent/pw"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read password file")
	})
}

func TestBootstrapper_CreateAdmin_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   Input
		answers []string
		wantErr string
	}{
		{
			name:    "invalid email",
			input:   Input{Email: "not-an-email"},
			wantErr: "invalid email",
		},
		{
			name:    "password mismatch",
			input:   Input{Email: "d@example.com", Name: "D"},
			answers: []string{strongPassword, "Other1!pass"},
			wantErr: ErrPasswordMismatch.Error(),
		},
		{
			name:    "weak password",
			input:   Input{Email: "e@example.com", Name: "E"},
			answers: []string{"short", "short"},
			wantErr: "weak password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := setupBootstrapper(t, &scriptedIO{answers: tt.answers}, nil)

			_, err := b.CreateAdmin(context.Background(), tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBootstrapper_CreateAdmin_Duplicate(t *testing.T) {
	b, _ := setupBootstrapper(t, &scriptedIO{}, map[string]string{PasswordEnv: strongPassword})
	in := Input{Email: "root@example.com", Name: "Root"}

	_, err := b.CreateAdmin(context.Background(), in)
	require.NoError(t, err)

	_, err = b.CreateAdmin(context.Background(), in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestBootstrapper_CreateAdmin_InputError(t *testing.T) {
	b, _ := setupBootstrapper(t, &scriptedIO{err: errors.New("closed")}, nil)

	_, err := b.CreateAdmin(context.Background(), Input{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read email")
}
