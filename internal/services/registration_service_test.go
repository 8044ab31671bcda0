package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltgrid/identity/internal/config"
	"github.com/voltgrid/identity/internal/idp"
	"github.com/voltgrid/identity/internal/models"
	"github.com/voltgrid/identity/pkg/auth"
)

var testRegistrationConfig = config.RegistrationConfig{
	VerificationTTL: 24 * time.Hour,
	MaxResends:      3,
	ResendCooldown:  15 * time.Minute,
	TokenLength:     32,
	DefaultRole:     models.RoleUser,
	InvitationTTL:   168 * time.Hour,
}

type registrationFixture struct {
	svc           *RegistrationService
	registrations *MockRegistrationStore
	users         *MockUserStore
	invitations   *MockInvitationStore
	idpClient     *MockIdPClient
	mailer        *MockMailer
	clock         *fixedClock
}

func newRegistrationFixture() *registrationFixture {
	f := &registrationFixture{
		registrations: &MockRegistrationStore{},
		users:         &MockUserStore{},
		invitations:   &MockInvitationStore{},
		idpClient:     &MockIdPClient{},
		mailer:        &MockMailer{},
		clock:         &fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.svc = NewRegistrationService(
		f.registrations, f.users, f.invitations, f.idpClient, f.mailer,
		auth.NewBcryptHasher(), f.clock, &seqIDGenerator{}, slog.Default(),
		testRegistrationConfig,
	)
	return f
}

func pendingRegistration(clock *fixedClock) *models.Registration {
	return &models.Registration{
		ID:                "reg-1",
		Email:             "alice@example.com",
		Username:          "alice",
		PasswordHash:      "$2a$12$hash",
		VerificationToken: "token-live",
		Status:            models.RegistrationPending,
		ResendCount:       0,
		LastSentAt:        clock.now.Add(-1 * time.Hour),
		ExpiresAt:         clock.now.Add(23 * time.Hour),
		CreatedAt:         clock.now.Add(-1 * time.Hour),
		UpdatedAt:         clock.now.Add(-1 * time.Hour),
	}
}

func TestRegistrationService_Start_Success(t *testing.T) {
	f := newRegistrationFixture()

	var created *models.Registration
	f.registrations.CreateFunc = func(ctx context.Context, reg *models.Registration) (*models.Registration, error) {
		created = reg
		return reg, nil
	}

	result, err := f.svc.Start(context.Background(), StartRegistrationInput{
		Email:    "Alice@Example.com",
		Username: "Alice",
		Password: "Sup3rSecret",
	})

	require.NoError(t, err)
	require.NotNil(t, created)

	assert.Equal(t, "alice@example.com", created.Email, "email is normalized to lowercase")
	assert.Equal(t, "alice", created.Username)
	assert.Equal(t, models.RegistrationPending, created.Status)
	assert.NotEqual(t, "Sup3rSecret", created.PasswordHash, "password must be stored hashed")
	assert.Equal(t, f.clock.now.Add(24*time.Hour), created.ExpiresAt)

	assert.Equal(t, created.ID, result.RegistrationID)
	assert.Equal(t, "a****@*******.com", result.MaskedEmail, "response must not echo the full email")
	assert.Equal(t, []string{created.VerificationToken}, f.mailer.SentVerifications)
}

func TestRegistrationService_Start_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input StartRegistrationInput
	}{
		{"bad email", StartRegistrationInput{Email: "nope", Username: "alice", Password: "Sup3rSecret"}},
		{"bad username", StartRegistrationInput{Email: "a@b.com", Username: "a", Password: "Sup3rSecret"}},
		{"weak password", StartRegistrationInput{Email: "a@b.com", Username: "alice", Password: "short"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRegistrationFixture()
			_, err := f.svc.Start(context.Background(), tt.input)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestRegistrationService_Start_EmailTakenByUser(t *testing.T) {
	f := newRegistrationFixture()
	f.users.GetByEmailFunc = func(ctx context.Context, email string) (*models.User, error) {
		return &models.User{ID: "user-1", Email: email}, nil
	}

	_, err := f.svc.Start(context.Background(), StartRegistrationInput{
		Email: "alice@example.com", Username: "alice", Password: "Sup3rSecret",
	})

	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestRegistrationService_Start_PendingRegistrationBlocks(t *testing.T) {
	f := newRegistrationFixture()
	f.registrations.GetPendingByEmailFunc = func(ctx context.Context, email string) (*models.Registration, error) {
		return pendingRegistration(f.clock), nil
	}

	_, err := f.svc.Start(context.Background(), StartRegistrationInput{
		Email: "alice@example.com", Username: "bob", Password: "Sup3rSecret",
	})

	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestRegistrationService_Start_StalePendingRegistrationIsExpiredAndReplaced(t *testing.T) {
	f := newRegistrationFixture()

	stale := pendingRegistration(f.clock)
	stale.ExpiresAt = f.clock.now.Add(-1 * time.Minute)

	f.registrations.GetPendingByEmailFunc = func(ctx context.Context, email string) (*models.Registration, error) {
		return stale, nil
	}

	expiredID := ""
	f.registrations.MarkExpiredFunc = func(ctx context.Context, id string, now time.Time) error {
		expiredID = id
		return nil
	}

	result, err := f.svc.Start(context.Background(), StartRegistrationInput{
		Email: "alice@example.com", Username: "alice2", Password: "Sup3rSecret",
	})

	require.NoError(t, err)
	assert.Equal(t, stale.ID, expiredID, "overdue pending row must be flipped to expired")
	assert.NotEmpty(t, result.RegistrationID)
}

func TestRegistrationService_Start_WithInvitation(t *testing.T) {
	f := newRegistrationFixture()

	inv := &models.Invitation{
		ID:        "inv-1",
		Email:     "alice@example.com",
		Role:      models.RoleOperator,
		Status:    models.InvitationPending,
		ExpiresAt: f.clock.now.Add(24 * time.Hour),
	}
	f.invitations.GetByCodeHashFunc = func(ctx context.Context, codeHash string) (*models.Invitation, error) {
		if codeHash == hashInviteCode("good-code") {
			return inv, nil
		}
		return nil, models.ErrNotFound
	}

	var created *models.Registration
	f.registrations.CreateFunc = func(ctx context.Context, reg *models.Registration) (*models.Registration, error) {
		created = reg
		return reg, nil
	}

	_, err := f.svc.Start(context.Background(), StartRegistrationInput{
		Email: "alice@example.com", Username: "alice", Password: "Sup3rSecret",
		InviteCode: "good-code",
	})

	require.NoError(t, err)
	require.NotNil(t, created.InvitationID)
	assert.Equal(t, "inv-1", *created.InvitationID)
}

func TestRegistrationService_Start_InvitationEmailMismatch(t *testing.T) {
	f := newRegistrationFixture()

	f.invitations.GetByCodeHashFunc = func(ctx context.Context, codeHash string) (*models.Invitation, error) {
		return &models.Invitation{
			ID:        "inv-1",
			Email:     "someone-else@example.com",
			Role:      models.RoleOperator,
			Status:    models.InvitationPending,
			ExpiresAt: f.clock.now.Add(24 * time.Hour),
		}, nil
	}

	_, err := f.svc.Start(context.Background(), StartRegistrationInput{
		Email: "alice@example.com", Username: "alice", Password: "Sup3rSecret",
		InviteCode: "good-code",
	})

	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestRegistrationService_Resend_RotatesToken(t *testing.T) {
	f := newRegistrationFixture()

	reg := pendingRegistration(f.clock)
	f.registrations.GetPendingByEmailFunc = func(ctx context.Context, email string) (*models.Registration, error) {
		return reg, nil
	}

	var rotatedToken string
	var expectedCount int
	f.registrations.RotateTokenFunc = func(ctx context.Context, id string, expectedResendCount int, newToken string, expiresAt, sentAt time.Time) error {
		rotatedToken = newToken
		expectedCount = expectedResendCount
		return nil
	}

	updated, err := f.svc.Resend(context.Background(), "alice@example.com")

	require.NoError(t, err)
	assert.Equal(t, 0, expectedCount, "rotation is conditional on the observed resend count")
	assert.NotEqual(t, "token-live", rotatedToken)
	assert.Equal(t, 1, updated.ResendCount)
	assert.Equal(t, []string{rotatedToken}, f.mailer.SentVerifications, "email carries the new token, not the old one")
}

func TestRegistrationService_Resend_CapReached(t *testing.T) {
	f := newRegistrationFixture()

	reg := pendingRegistration(f.clock)
	reg.ResendCount = 3
	f.registrations.GetPendingByEmailFunc = func(ctx context.Context, email string) (*models.Registration, error) {
		return reg, nil
	}

	_, err := f.svc.Resend(context.Background(), "alice@example.com")

	assert.ErrorIs(t, err, models.ErrRateLimited)
	assert.Empty(t, f.mailer.SentVerifications)
}

func TestRegistrationService_Resend_InsideCooldown(t *testing.T) {
	f := newRegistrationFixture()

	reg := pendingRegistration(f.clock)
	reg.LastSentAt = f.clock.now.Add(-5 * time.Minute)
	f.registrations.GetPendingByEmailFunc = func(ctx context.Context, email string) (*models.Registration, error) {
		return reg, nil
	}

	_, err := f.svc.Resend(context.Background(), "alice@example.com")

	assert.ErrorIs(t, err, models.ErrRateLimited)
}

func TestRegistrationService_Resend_ConcurrentLoserConflicts(t *testing.T) {
	f := newRegistrationFixture()

	reg := pendingRegistration(f.clock)
	f.registrations.GetPendingByEmailFunc = func(ctx context.Context, email string) (*models.Registration, error) {
		return reg, nil
	}
	f.registrations.RotateTokenFunc = func(ctx context.Context, id string, expectedResendCount int, newToken string, expiresAt, sentAt time.Time) error {
		// another resend already bumped the count
		return models.ErrConflict
	}

	_, err := f.svc.Resend(context.Background(), "alice@example.com")

	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Empty(t, f.mailer.SentVerifications, "loser of the race must not send a stale token")
}

func TestRegistrationService_Resend_ExpiredFlipsStatus(t *testing.T) {
	f := newRegistrationFixture()

	reg := pendingRegistration(f.clock)
	reg.ExpiresAt = f.clock.now.Add(-1 * time.Minute)
	f.registrations.GetPendingByEmailFunc = func(ctx context.Context, email string) (*models.Registration, error) {
		return reg, nil
	}

	marked := false
	f.registrations.MarkExpiredFunc = func(ctx context.Context, id string, now time.Time) error {
		marked = true
		return nil
	}

	_, err := f.svc.Resend(context.Background(), "alice@example.com")

	assert.ErrorIs(t, err, models.ErrExpired)
	assert.True(t, marked, "reading an overdue pending row must flip it to expired")
}

func TestRegistrationService_Verify_Success(t *testing.T) {
	f := newRegistrationFixture()

	reg := pendingRegistration(f.clock)
	f.registrations.GetByTokenFunc = func(ctx context.Context, token string) (*models.Registration, error) {
		if token == reg.VerificationToken {
			return reg, nil
		}
		return nil, models.ErrNotFound
	}

	var insertedUser *models.User
	f.registrations.CompleteVerificationFunc = func(ctx context.Context, id, token string, verifiedAt time.Time, user *models.User) (*models.User, error) {
		insertedUser = user
		return user, nil
	}

	result, err := f.svc.Verify(context.Background(), "token-live")

	require.NoError(t, err)
	require.Len(t, f.idpClient.CreatedAccounts, 1)

	account := f.idpClient.CreatedAccounts[0]
	assert.Equal(t, "alice@example.com", account.Email)
	assert.Equal(t, reg.PasswordHash, account.PasswordHash, "provider receives the stored hash, never a plain password")
	assert.Equal(t, "bcrypt", account.HashAlgorithm)

	assert.Equal(t, "subject-1", insertedUser.IdPSubjectID)
	assert.Equal(t, models.RoleUser, insertedUser.Role, "default role applies without an invitation")
	assert.Equal(t, models.UserActive, insertedUser.Status)

	assert.Equal(t, "alice@example.com", result.Email)
	assert.Equal(t, "alice", result.Username)
}

func TestRegistrationService_Verify_InvitationRoleWins(t *testing.T) {
	f := newRegistrationFixture()

	invID := "inv-1"
	reg := pendingRegistration(f.clock)
	reg.InvitationID = &invID

	f.registrations.GetByTokenFunc = func(ctx context.Context, token string) (*models.Registration, error) {
		return reg, nil
	}
	f.invitations.GetByIDFunc = func(ctx context.Context, id string) (*models.Invitation, error) {
		return &models.Invitation{ID: invID, Role: models.RolePartner, Status: models.InvitationPending}, nil
	}

	accepted := false
	f.invitations.MarkAcceptedFunc = func(ctx context.Context, id string, acceptedAt time.Time) error {
		accepted = true
		return nil
	}

	result, err := f.svc.Verify(context.Background(), "token-live")

	require.NoError(t, err)
	assert.Equal(t, models.RolePartner, result.Role)
	assert.True(t, accepted)
}

func TestRegistrationService_Verify_UnknownToken(t *testing.T) {
	f := newRegistrationFixture()

	_, err := f.svc.Verify(context.Background(), "no-such-token")

	assert.ErrorIs(t, err, models.ErrInvalidToken)
	assert.Empty(t, f.idpClient.CreatedAccounts, "no provider call for an unknown token")
}

func TestRegistrationService_Verify_TokenIsSingleUse(t *testing.T) {
	f := newRegistrationFixture()

	reg := pendingRegistration(f.clock)
	reg.Status = models.RegistrationVerified
	f.registrations.GetByTokenFunc = func(ctx context.Context, token string) (*models.Registration, error) {
		return reg, nil
	}

	_, err := f.svc.Verify(context.Background(), "token-live")

	assert.ErrorIs(t, err, models.ErrInvalidToken)
	assert.Empty(t, f.idpClient.CreatedAccounts)
}

func TestRegistrationService_Verify_ExpiredRegistration(t *testing.T) {
	f := newRegistrationFixture()

	reg := pendingRegistration(f.clock)
	reg.ExpiresAt = f.clock.now.Add(-1 * time.Minute)
	f.registrations.GetByTokenFunc = func(ctx context.Context, token string) (*models.Registration, error) {
		return reg, nil
	}

	marked := false
	f.registrations.MarkExpiredFunc = func(ctx context.Context, id string, now time.Time) error {
		marked = true
		return nil
	}

	_, err := f.svc.Verify(context.Background(), "token-live")

	assert.ErrorIs(t, err, models.ErrExpired)
	assert.True(t, marked)
	assert.Empty(t, f.idpClient.CreatedAccounts)
}

func TestRegistrationService_Verify_RaceLoserDisablesProviderAccount(t *testing.T) {
	f := newRegistrationFixture()

	reg := pendingRegistration(f.clock)
	f.registrations.GetByTokenFunc = func(ctx context.Context, token string) (*models.Registration, error) {
		return reg, nil
	}
	f.registrations.CompleteVerificationFunc = func(ctx context.Context, id, token string, verifiedAt time.Time, user *models.User) (*models.User, error) {
		// a concurrent verify or resend won the conditional update
		return nil, models.ErrInvalidToken
	}

	_, err := f.svc.Verify(context.Background(), "token-live")

	assert.ErrorIs(t, err, models.ErrInvalidToken)
	assert.Equal(t, []string{"subject-1"}, f.idpClient.DisabledAccounts,
		"the orphaned provider account must be disabled")
}

func TestRegistrationService_Verify_ProviderUnavailableKeepsRegistrationPending(t *testing.T) {
	f := newRegistrationFixture()

	reg := pendingRegistration(f.clock)
	f.registrations.GetByTokenFunc = func(ctx context.Context, token string) (*models.Registration, error) {
		return reg, nil
	}
	f.idpClient.CreateAccountFunc = func(ctx context.Context, account idp.NewAccount) (string, error) {
		return "", models.ErrUpstreamUnavailable
	}

	completed := false
	f.registrations.CompleteVerificationFunc = func(ctx context.Context, id, token string, verifiedAt time.Time, user *models.User) (*models.User, error) {
		completed = true
		return user, nil
	}

	_, err := f.svc.Verify(context.Background(), "token-live")

	assert.ErrorIs(t, err, models.ErrUpstreamUnavailable)
	assert.False(t, completed, "the registration stays pending so verify can be retried")
}

func TestRegistrationService_Verify_StoreFailureDisablesProviderAccount(t *testing.T) {
	f := newRegistrationFixture()

	reg := pendingRegistration(f.clock)
	f.registrations.GetByTokenFunc = func(ctx context.Context, token string) (*models.Registration, error) {
		return reg, nil
	}

	storeErr := errors.New("write failed")
	f.registrations.CompleteVerificationFunc = func(ctx context.Context, id, token string, verifiedAt time.Time, user *models.User) (*models.User, error) {
		return nil, storeErr
	}

	_, err := f.svc.Verify(context.Background(), "token-live")

	assert.ErrorIs(t, err, storeErr)
	assert.Equal(t, []string{"subject-1"}, f.idpClient.DisabledAccounts,
		"a failed completion must not leave an enabled provider login behind")
}

func TestRegistrationService_Verify_RetryAdoptsExistingProviderAccount(t *testing.T) {
	f := newRegistrationFixture()

	reg := pendingRegistration(f.clock)
	f.registrations.GetByTokenFunc = func(ctx context.Context, token string) (*models.Registration, error) {
		return reg, nil
	}

	// a previous attempt provisioned the account and then failed to complete
	f.idpClient.CreateAccountFunc = func(ctx context.Context, account idp.NewAccount) (string, error) {
		return "", models.ErrConflict
	}
	f.idpClient.FindAccountByUsernameFunc = func(ctx context.Context, username string) (string, error) {
		assert.Equal(t, "alice", username)
		return "subject-old", nil
	}

	var enabled []string
	f.idpClient.EnableAccountFunc = func(ctx context.Context, subjectID string) error {
		enabled = append(enabled, subjectID)
		return nil
	}

	var insertedUser *models.User
	f.registrations.CompleteVerificationFunc = func(ctx context.Context, id, token string, verifiedAt time.Time, user *models.User) (*models.User, error) {
		insertedUser = user
		return user, nil
	}

	_, err := f.svc.Verify(context.Background(), "token-live")

	require.NoError(t, err, "a retry must not wedge on the provider conflict")
	assert.Equal(t, "subject-old", insertedUser.IdPSubjectID, "the existing account is reused")
	assert.Equal(t, []string{"subject-old"}, enabled)
}

func TestRegistrationService_Verify_ConflictWithoutAdoptableAccount(t *testing.T) {
	f := newRegistrationFixture()

	reg := pendingRegistration(f.clock)
	f.registrations.GetByTokenFunc = func(ctx context.Context, token string) (*models.Registration, error) {
		return reg, nil
	}
	f.idpClient.CreateAccountFunc = func(ctx context.Context, account idp.NewAccount) (string, error) {
		return "", models.ErrConflict
	}
	// default FindAccountByUsername returns not found

	completed := false
	f.registrations.CompleteVerificationFunc = func(ctx context.Context, id, token string, verifiedAt time.Time, user *models.User) (*models.User, error) {
		completed = true
		return user, nil
	}

	_, err := f.svc.Verify(context.Background(), "token-live")

	assert.ErrorIs(t, err, models.ErrConflict)
	assert.False(t, completed)
}

func TestRegistrationService_Cancel(t *testing.T) {
	f := newRegistrationFixture()

	cancelled := ""
	f.registrations.CancelFunc = func(ctx context.Context, id string, now time.Time) error {
		cancelled = id
		return nil
	}

	err := f.svc.Cancel(context.Background(), "reg-1")

	assert.NoError(t, err)
	assert.Equal(t, "reg-1", cancelled)
}

func TestRegistrationService_Cancel_UnknownID(t *testing.T) {
	f := newRegistrationFixture()
	f.registrations.CancelFunc = func(ctx context.Context, id string, now time.Time) error {
		return models.ErrNotFound
	}

	err := f.svc.Cancel(context.Background(), "missing")

	assert.ErrorIs(t, err, models.ErrNotFound)
}
