// Package admin implements the bootstrap of administrator accounts from
// the command line.
package admin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/iudanet/transitauth/internal/client/iocli"
	"github.com/iudanet/transitauth/internal/crypto"
	"github.com/iudanet/transitauth/internal/models"
	"github.com/iudanet/transitauth/internal/server/storage"
)

// PasswordEnv переменная окружения с паролем администратора
const PasswordEnv = "TRANSIT_ADMIN_PASSWORD"

// ErrPasswordMismatch is returned when the confirmation differs.
var ErrPasswordMismatch = errors.New("passwords do not match")

// Input параметры создаваемого администратора. Пустые поля запрашиваются
// интерактивно.
type Input struct {
	Email        string
	Name         string
	PasswordFile string
}

// Bootstrapper создает учетные записи ADMIN напрямую в хранилище
type Bootstrapper struct {
	users  storage.UserStorage
	hasher *crypto.PasswordHasher
	io     iocli.IO
	getenv func(string) string
}

// NewBootstrapper creates a bootstrapper.
func NewBootstrapper(users storage.UserStorage, hasher *crypto.PasswordHasher, io iocli.IO) *Bootstrapper {
	return &Bootstrapper{users: users, hasher: hasher, io: io, getenv: os.Getenv}
}

// CreateAdmin creates an active, verified ADMIN account.
func (b *Bootstrapper) CreateAdmin(ctx context.Context, in Input) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		v, err := b.io.ReadInput("Email: ")
		if err != nil {
			return nil, fmt.Errorf("failed to read email: %w", err)
		}
		email = strings.ToLower(v)
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email %q", email)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		v, err := b.io.ReadInput("Name: ")
		if err != nil {
			return nil, fmt.Errorf("failed to read name: %w", err)
		}
		name = v
	}
	if name == "" {
		name = "Administrator"
	}

	password, err := b.password(in.PasswordFile)
	if err != nil {
		return nil, err
	}

	if report := crypto.ValidatePasswordStrength(password); !report.IsValid {
		return nil, fmt.Errorf("weak password: %s", strings.Join(report.Errors, "; "))
	}

	hash, err := b.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:          name,
		Email:         email,
		PasswordHash:  hash,
		Role:          models.RoleAdmin,
		Status:        models.StatusActive,
		EmailVerified: true,
	}
	if err := b.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserAlreadyExists) {
			return nil, fmt.Errorf("account %s already exists", email)
		}
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	return user, nil
}

// password читает пароль по приоритету:
// 1. переменная окружения TRANSIT_ADMIN_PASSWORD
// 2. файл
// 3. интерактивный ввод с подтверждением
func (b *Bootstrapper) password(file string) (string, error) {
	if pw := b.getenv(PasswordEnv); pw != "" {
		return pw, nil
	}

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}

	pw, err := b.io.ReadPassword("Password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	confirm, err := b.io.ReadPassword("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}
	if pw != confirm {
		return "", ErrPasswordMismatch
	}
	return pw, nil
}
