package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltgrid/identity/internal/models"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_Hash(t *testing.T) {
	hasher := NewBcryptHasher()

	hash, err := hasher.Hash("P@ssw0rd1")
	require.NoError(t, err)
	assert.NotEqual(t, "P@ssw0rd1", hash)

	// the hash must verify against the original password
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("P@ssw0rd1")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("wrong")))
}

func TestBcryptHasher_EmptyPassword(t *testing.T) {
	hasher := NewBcryptHasher()
	_, err := hasher.Hash("")
	assert.Error(t, err)
}

func TestBcryptHasher_Algorithm(t *testing.T) {
	assert.Equal(t, "bcrypt", NewBcryptHasher().Algorithm())
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "P@ssw0rd1", false},
		{"valid without special char", "Passw0rdX", false},
		{"too short", "Ab1", true},
		{"too long", strings.Repeat("Ab1", 50), true},
		{"no uppercase", "passw0rd1", true},
		{"no lowercase", "PASSW0RD1", true},
		{"no digit", "Password!", true},
		{"common password", "P@ssw0rd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
