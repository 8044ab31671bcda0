package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"alice@example.com", "a****@*******.com"},
		{"a@b.io", "a@*.io"},
		{"ops@mail.example.org", "o**@****.*******.org"},
		{"not-an-email", "[invalid-email]"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskEmail(tt.email), tt.email)
	}
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("token=abc123"))
	assert.True(t, SanitizeQueryString("Email=x%40y.com"))
	assert.True(t, SanitizeQueryString("verification_code=999"))
	assert.False(t, SanitizeQueryString("page=2&limit=50"))
	assert.False(t, SanitizeQueryString(""))
}
