package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltgrid/identity/internal/models"
)

func newInvitationService(invitations *MockInvitationStore, users *MockUserStore, mailer *MockMailer) *InvitationService {
	clock := &fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewInvitationService(invitations, users, mailer, clock, &seqIDGenerator{}, slog.Default(), 168*time.Hour, 16)
}

func TestInvitationService_Create_Success(t *testing.T) {
	invitations := &MockInvitationStore{}
	mailer := &MockMailer{}
	svc := newInvitationService(invitations, &MockUserStore{}, mailer)

	created, err := svc.Create(context.Background(), CreateInvitationInput{
		Email:     "New.Partner@Example.com",
		Role:      models.RolePartner,
		InvitedBy: "admin-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "new.partner@example.com", created.Invitation.Email)
	assert.Equal(t, models.InvitationPending, created.Invitation.Status)
	assert.NotEmpty(t, created.PlainCode)
	assert.Equal(t, hashInviteCode(created.PlainCode), created.Invitation.CodeHash,
		"only the code hash is persisted")
	assert.Equal(t, []string{created.PlainCode}, mailer.SentInvitations)
}

func TestInvitationService_Create_RejectsUnknownRole(t *testing.T) {
	svc := newInvitationService(&MockInvitationStore{}, &MockUserStore{}, &MockMailer{})

	_, err := svc.Create(context.Background(), CreateInvitationInput{
		Email: "a@b.com", Role: models.Role("superuser"), InvitedBy: "admin-1",
	})

	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestInvitationService_Create_ExistingUserConflicts(t *testing.T) {
	users := &MockUserStore{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return activeUser(), nil
		},
	}
	svc := newInvitationService(&MockInvitationStore{}, users, &MockMailer{})

	_, err := svc.Create(context.Background(), CreateInvitationInput{
		Email: "alice@example.com", Role: models.RoleUser, InvitedBy: "admin-1",
	})

	assert.ErrorIs(t, err, models.ErrConflict)
}
