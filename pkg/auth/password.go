package auth

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/voltgrid/identity/internal/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	BcryptCost     = 12
	MinPasswordLen = 8
	MaxPasswordLen = 128
)

// PasswordHasher abstracts the hash algorithm so the registration lifecycle
// never commits to a specific one.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Algorithm names the scheme for credential sync with the identity provider
	Algorithm() string
}

// BcryptHasher is the production PasswordHasher
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: BcryptCost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

func (h *BcryptHasher) Algorithm() string {
	return "bcrypt"
}

// Common weak passwords to reject
var commonPasswords = map[string]bool{
	"password":     true,
	"12345678":     true,
	"qwerty123":    true,
	"password123":  true,
	"password123!": true,
	"letmein123":   true,
	"welcome123":   true,
	"passw0rd":     true,
	"trustno1":     true,
	"p@ssw0rd":     true,
}

// ValidatePassword enforces the minimum-strength policy. The returned error
// unwraps to models.ErrValidation; handlers surface only a generic reason.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLen {
		return &models.ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", MinPasswordLen)}
	}
	if len(password) > MaxPasswordLen {
		return &models.ValidationError{Field: "password", Reason: fmt.Sprintf("must be at most %d characters", MaxPasswordLen)}
	}

	hasUpper := false
	hasLower := false
	hasDigit := false

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return &models.ValidationError{Field: "password", Reason: "must contain uppercase, lowercase and digit characters"}
	}

	if commonPasswords[strings.ToLower(password)] {
		return &models.ValidationError{Field: "password", Reason: "is too common"}
	}

	return nil
}
