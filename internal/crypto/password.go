package crypto

import (
	"fmt"
	"sync"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost стоимость bcrypt по умолчанию
	DefaultBcryptCost = 12
	// MinPasswordLen минимальная длина пароля
	MinPasswordLen = 8
	// MaxPasswordBytes предел bcrypt, считается в байтах, а не в символах
	MaxPasswordBytes = 72
)

// Strength is a coarse, advisory password strength label.
type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

// StrengthReport is the result of ValidatePasswordStrength.
type StrengthReport struct {
	Strength Strength `json:"strength"`
	Errors   []string `json:"errors,omitempty"`
	IsValid  bool     `json:"isValid"`
}

// PasswordHasher хеширует и проверяет пароли с помощью bcrypt
type PasswordHasher struct {
	dummy     []byte
	cost      int
	dummyOnce sync.Once
}

// NewPasswordHasher creates a hasher with the given bcrypt cost.
// Values outside bcrypt's range fall back to DefaultBcryptCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash computes a salted bcrypt hash of the plaintext password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hash), nil
}

// Compare reports whether password matches the stored hash.
// Mismatch and malformed hashes both return false.
func (h *PasswordHasher) Compare(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CompareDummy burns the same bcrypt work as Compare against a hash that
// matches nothing. Callers use it when the account does not exist, so the
// response time does not reveal which emails are registered.
func (h *PasswordHasher) CompareDummy(password string) bool {
	h.dummyOnce.Do(func() {
		// Ошибка невозможна: пароль короткий, cost проверен в конструкторе
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("transitauth-no-such-account"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
	return false
}

// NeedsRehash reports whether hash was produced with a different cost.
func (h *PasswordHasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != h.cost
}

// ValidatePasswordStrength проверяет пароль на соответствие политике
// Правила: длина >= 8 символов и <= 72 байт, заглавная, строчная, цифра, спецсимвол
func ValidatePasswordStrength(password string) StrengthReport {
	var (
		hasUpper, hasLower, hasDigit, hasSpecial bool
		errs                                     []string
		passed                                   int
	)

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	rules := []struct {
		message string
		ok      bool
	}{
		{ok: len([]rune(password)) >= MinPasswordLen, message: fmt.Sprintf("password must be at least %d characters long", MinPasswordLen)},
		{ok: len(password) <= MaxPasswordBytes, message: fmt.Sprintf("password must not exceed %d bytes", MaxPasswordBytes)},
		{ok: hasUpper, message: "password must contain at least one uppercase letter"},
		{ok: hasLower, message: "password must contain at least one lowercase letter"},
		{ok: hasDigit, message: "password must contain at least one number"},
		{ok: hasSpecial, message: "password must contain at least one special character"},
	}

	for _, rule := range rules {
		if rule.ok {
			passed++
			continue
		}
		errs = append(errs, rule.message)
	}

	strength := StrengthWeak
	switch {
	case passed == len(rules):
		strength = StrengthStrong
	case passed == len(rules)-1:
		strength = StrengthMedium
	}

	return StrengthReport{
		IsValid:  len(errs) == 0,
		Errors:   errs,
		Strength: strength,
	}
}
