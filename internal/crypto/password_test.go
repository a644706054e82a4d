package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher_HashAndCompare(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	passwords := []string{"Abc12345!", "Secr3t#Pass", "Пароль123!"}
	for _, p := range passwords {
		t.Run(p, func(t *testing.T) {
			hash, err := h.Hash(p)
			require.NoError(t, err)
			assert.NotEqual(t, p, hash, "hash must never equal plaintext")
			assert.True(t, h.Compare(p, hash))
			assert.False(t, h.Compare(p+"x", hash))
		})
	}
}

func TestPasswordHasher_Salted(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	// Одинаковый пароль должен давать разные хеши (соль)
	hash1, err := h.Hash("Abc12345!")
	require.NoError(t, err)
	hash2, err := h.Hash("Abc12345!")
	require.NoError(t, err)
	assert.NotEqual(t, hash1, hash2)

	other, err := h.Hash("Xyz98765?")
	require.NoError(t, err)
	assert.NotEqual(t, hash1, other)
}

func TestPasswordHasher_CompareNeverPanics(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	assert.False(t, h.Compare("", "$2a$04$abc"))
	assert.False(t, h.Compare("Abc12345!", ""))
	assert.False(t, h.Compare("Abc12345!", "not-a-bcrypt-hash"))
}

func TestPasswordHasher_EmptyPassword(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	hash, err := h.Hash("")
	require.Error(t, err)
	assert.Empty(t, hash)
}

func TestNewPasswordHasher_InvalidCostFallsBack(t *testing.T) {
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(0).cost)
	assert.Equal(t, DefaultBcryptCost, NewPasswordHasher(100).cost)
	assert.Equal(t, 10, NewPasswordHasher(10).cost)
}

func TestPasswordHasher_CompareDummy(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost + 1)

	assert.False(t, h.CompareDummy("Abc12345!"))
	assert.False(t, h.CompareDummy("transitauth-no-such-account"), "dummy never matches")

	cost, err := bcrypt.Cost(h.dummy)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost, "dummy costs as much as a real hash")
}

func TestPasswordHasher_NeedsRehash(t *testing.T) {
	low := NewPasswordHasher(bcrypt.MinCost)
	hash, err := low.Hash("Abc12345!")
	require.NoError(t, err)

	assert.False(t, low.NeedsRehash(hash))
	assert.True(t, NewPasswordHasher(bcrypt.MinCost+1).NeedsRehash(hash))
	assert.True(t, low.NeedsRehash("garbage"))
}

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name         string
		password     string
		wantStrength Strength
		wantErrors   int
		wantValid    bool
	}{
		{name: "strong", password: "Abc12345!", wantValid: true, wantStrength: StrengthStrong},
		{name: "missing special", password: "Abc123456", wantStrength: StrengthMedium, wantErrors: 1},
		{name: "too short", password: "Ab1!", wantStrength: StrengthMedium, wantErrors: 1},
		{name: "only lowercase", password: "abcdefghij", wantStrength: StrengthWeak, wantErrors: 3},
		{name: "empty", password: "", wantStrength: StrengthWeak, wantErrors: 5},
		{name: "lower and digits", password: "abcd1234", wantStrength: StrengthWeak, wantErrors: 2},
		{name: "72 bytes", password: "Abc1!" + strings.Repeat("a", 67), wantValid: true, wantStrength: StrengthStrong},
		{name: "multibyte over 72 bytes", password: "Аб1!" + strings.Repeat("ж", 40), wantStrength: StrengthMedium, wantErrors: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := ValidatePasswordStrength(tt.password)
			assert.Equal(t, tt.wantValid, report.IsValid)
			assert.Equal(t, tt.wantStrength, report.Strength)
			assert.Len(t, report.Errors, tt.wantErrors)
		})
	}
}

func TestValidatePasswordStrength_Messages(t *testing.T) {
	report := ValidatePasswordStrength("abc")

	assert.Contains(t, report.Errors, "password must be at least 8 characters long")
	assert.Contains(t, report.Errors, "password must contain at least one uppercase letter")
	assert.Contains(t, report.Errors, "password must contain at least one number")
	assert.Contains(t, report.Errors, "password must contain at least one special character")
	assert.NotContains(t, report.Errors, "password must contain at least one lowercase letter")
	assert.NotContains(t, report.Errors, "password must not exceed 72 bytes")

	report = ValidatePasswordStrength("Аб1!" + strings.Repeat("ж", 40))
	assert.Equal(t, []string{"password must not exceed 72 bytes"}, report.Errors)
}
