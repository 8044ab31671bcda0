package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/voltgrid/identity/internal/models"
)

// Clock abstracts time so lifecycle rules (expiry, cooldowns) are testable
// with a fixed instant.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// NewSystemClock returns the production clock
func NewSystemClock() Clock { return systemClock{} }

// IDGenerator produces entity ids and verification tokens
type IDGenerator interface {
	NewID() string
	// NewToken returns a URL-safe random token of byteLen random bytes
	NewToken(byteLen int) (string, error)
}

type randomIDGenerator struct{}

func (randomIDGenerator) NewID() string { return uuid.New().String() }

func (randomIDGenerator) NewToken(byteLen int) (string, error) {
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewRandomIDGenerator returns the production id generator (UUIDs for
// entities, crypto/rand hex for tokens).
func NewRandomIDGenerator() IDGenerator { return randomIDGenerator{} }

// RegistrationStore defines the registration persistence operations the
// services depend on
type RegistrationStore interface {
	Create(ctx context.Context, reg *models.Registration) (*models.Registration, error)
	GetByID(ctx context.Context, id string) (*models.Registration, error)
	GetPendingByEmail(ctx context.Context, email string) (*models.Registration, error)
	GetActiveByUsername(ctx context.Context, username string) (*models.Registration, error)
	GetByToken(ctx context.Context, token string) (*models.Registration, error)
	RotateToken(ctx context.Context, id string, expectedResendCount int, newToken string, expiresAt, sentAt time.Time) error
	MarkExpired(ctx context.Context, id string, now time.Time) error
	CompleteVerification(ctx context.Context, id, token string, verifiedAt time.Time, user *models.User) (*models.User, error)
	Cancel(ctx context.Context, id string, now time.Time) error
}

// UserStore defines the user lookups the services depend on
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// InvitationStore defines invitation persistence operations
type InvitationStore interface {
	Create(ctx context.Context, inv *models.Invitation) (*models.Invitation, error)
	GetByID(ctx context.Context, id string) (*models.Invitation, error)
	GetByCodeHash(ctx context.Context, codeHash string) (*models.Invitation, error)
	MarkAccepted(ctx context.Context, id string, acceptedAt time.Time) error
}

// TokenRevoker records a token id on the blacklist
type TokenRevoker interface {
	Revoke(ctx context.Context, jti, userID, reason string, expiresAt time.Time) error
}
