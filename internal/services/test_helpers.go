package services

import (
	"context"
	"fmt"
	"time"

	"github.com/voltgrid/identity/internal/idp"
	"github.com/voltgrid/identity/internal/models"
)

// fixedClock returns a pinned instant, advanceable by tests
type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// seqIDGenerator produces deterministic ids and tokens
type seqIDGenerator struct {
	idCount    int
	tokenCount int
}

func (g *seqIDGenerator) NewID() string {
	g.idCount++
	return fmt.Sprintf("id-%d", g.idCount)
}

func (g *seqIDGenerator) NewToken(byteLen int) (string, error) {
	g.tokenCount++
	return fmt.Sprintf("token-%d", g.tokenCount), nil
}

// MockRegistrationStore implements RegistrationStore for testing
type MockRegistrationStore struct {
	CreateFunc               func(ctx context.Context, reg *models.Registration) (*models.Registration, error)
	GetByIDFunc              func(ctx context.Context, id string) (*models.Registration, error)
	GetPendingByEmailFunc    func(ctx context.Context, email string) (*models.Registration, error)
	GetActiveByUsernameFunc  func(ctx context.Context, username string) (*models.Registration, error)
	GetByTokenFunc           func(ctx context.Context, token string) (*models.Registration, error)
	RotateTokenFunc          func(ctx context.Context, id string, expectedResendCount int, newToken string, expiresAt, sentAt time.Time) error
	MarkExpiredFunc          func(ctx context.Context, id string, now time.Time) error
	CompleteVerificationFunc func(ctx context.Context, id, token string, verifiedAt time.Time, user *models.User) (*models.User, error)
	CancelFunc               func(ctx context.Context, id string, now time.Time) error
}

func (m *MockRegistrationStore) Create(ctx context.Context, reg *models.Registration) (*models.Registration, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, reg)
	}
	return reg, nil
}

func (m *MockRegistrationStore) GetByID(ctx context.Context, id string) (*models.Registration, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockRegistrationStore) GetPendingByEmail(ctx context.Context, email string) (*models.Registration, error) {
	if m.GetPendingByEmailFunc != nil {
		return m.GetPendingByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockRegistrationStore) GetActiveByUsername(ctx context.Context, username string) (*models.Registration, error) {
	if m.GetActiveByUsernameFunc != nil {
		return m.GetActiveByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockRegistrationStore) GetByToken(ctx context.Context, token string) (*models.Registration, error) {
	if m.GetByTokenFunc != nil {
		return m.GetByTokenFunc(ctx, token)
	}
	return nil, models.ErrNotFound
}

func (m *MockRegistrationStore) RotateToken(ctx context.Context, id string, expectedResendCount int, newToken string, expiresAt, sentAt time.Time) error {
	if m.RotateTokenFunc != nil {
		return m.RotateTokenFunc(ctx, id, expectedResendCount, newToken, expiresAt, sentAt)
	}
	return nil
}

func (m *MockRegistrationStore) MarkExpired(ctx context.Context, id string, now time.Time) error {
	if m.MarkExpiredFunc != nil {
		return m.MarkExpiredFunc(ctx, id, now)
	}
	return nil
}

func (m *MockRegistrationStore) CompleteVerification(ctx context.Context, id, token string, verifiedAt time.Time, user *models.User) (*models.User, error) {
	if m.CompleteVerificationFunc != nil {
		return m.CompleteVerificationFunc(ctx, id, token, verifiedAt, user)
	}
	return user, nil
}

func (m *MockRegistrationStore) Cancel(ctx context.Context, id string, now time.Time) error {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, id, now)
	}
	return nil
}

// MockUserStore implements UserStore for testing
type MockUserStore struct {
	GetByIDFunc       func(ctx context.Context, id string) (*models.User, error)
	GetByEmailFunc    func(ctx context.Context, email string) (*models.User, error)
	GetByUsernameFunc func(ctx context.Context, username string) (*models.User, error)
}

func (m *MockUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

// MockInvitationStore implements InvitationStore for testing
type MockInvitationStore struct {
	CreateFunc        func(ctx context.Context, inv *models.Invitation) (*models.Invitation, error)
	GetByIDFunc       func(ctx context.Context, id string) (*models.Invitation, error)
	GetByCodeHashFunc func(ctx context.Context, codeHash string) (*models.Invitation, error)
	MarkAcceptedFunc  func(ctx context.Context, id string, acceptedAt time.Time) error
}

func (m *MockInvitationStore) Create(ctx context.Context, inv *models.Invitation) (*models.Invitation, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, inv)
	}
	return inv, nil
}

func (m *MockInvitationStore) GetByID(ctx context.Context, id string) (*models.Invitation, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockInvitationStore) GetByCodeHash(ctx context.Context, codeHash string) (*models.Invitation, error) {
	if m.GetByCodeHashFunc != nil {
		return m.GetByCodeHashFunc(ctx, codeHash)
	}
	return nil, models.ErrNotFound
}

func (m *MockInvitationStore) MarkAccepted(ctx context.Context, id string, acceptedAt time.Time) error {
	if m.MarkAcceptedFunc != nil {
		return m.MarkAcceptedFunc(ctx, id, acceptedAt)
	}
	return nil
}

// MockTokenRevoker implements TokenRevoker for testing
type MockTokenRevoker struct {
	RevokeFunc func(ctx context.Context, jti, userID, reason string, expiresAt time.Time) error
}

func (m *MockTokenRevoker) Revoke(ctx context.Context, jti, userID, reason string, expiresAt time.Time) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, jti, userID, reason, expiresAt)
	}
	return nil
}

// MockMailer implements Mailer for testing
type MockMailer struct {
	SentVerifications []string // tokens in send order
	SentInvitations   []string // codes in send order

	SendVerificationEmailFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
	SendInvitationEmailFunc   func(ctx context.Context, email, code string, role string, expiresAt time.Time) error
}

func (m *MockMailer) SendVerificationEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	m.SentVerifications = append(m.SentVerifications, token)
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, email, token, expiresAt)
	}
	return nil
}

func (m *MockMailer) SendInvitationEmail(ctx context.Context, email, code string, role string, expiresAt time.Time) error {
	m.SentInvitations = append(m.SentInvitations, code)
	if m.SendInvitationEmailFunc != nil {
		return m.SendInvitationEmailFunc(ctx, email, code, role, expiresAt)
	}
	return nil
}

// MockIdPClient implements idp.Client for testing
type MockIdPClient struct {
	CreatedAccounts  []idp.NewAccount
	DisabledAccounts []string

	CreateAccountFunc         func(ctx context.Context, account idp.NewAccount) (string, error)
	FindAccountByUsernameFunc func(ctx context.Context, username string) (string, error)
	EnableAccountFunc         func(ctx context.Context, subjectID string) error
	DisableAccountFunc        func(ctx context.Context, subjectID string) error
	IssueTokenFunc            func(ctx context.Context, username, password string) (*idp.TokenSet, error)
	RefreshTokenFunc          func(ctx context.Context, refreshToken string) (*idp.TokenSet, error)
	ValidateTokenFunc         func(ctx context.Context, bearer string) (*idp.RawClaims, error)
}

func (m *MockIdPClient) CreateAccount(ctx context.Context, account idp.NewAccount) (string, error) {
	m.CreatedAccounts = append(m.CreatedAccounts, account)
	if m.CreateAccountFunc != nil {
		return m.CreateAccountFunc(ctx, account)
	}
	return "subject-1", nil
}

func (m *MockIdPClient) FindAccountByUsername(ctx context.Context, username string) (string, error) {
	if m.FindAccountByUsernameFunc != nil {
		return m.FindAccountByUsernameFunc(ctx, username)
	}
	return "", models.ErrNotFound
}

func (m *MockIdPClient) EnableAccount(ctx context.Context, subjectID string) error {
	if m.EnableAccountFunc != nil {
		return m.EnableAccountFunc(ctx, subjectID)
	}
	return nil
}

func (m *MockIdPClient) DisableAccount(ctx context.Context, subjectID string) error {
	m.DisabledAccounts = append(m.DisabledAccounts, subjectID)
	if m.DisableAccountFunc != nil {
		return m.DisableAccountFunc(ctx, subjectID)
	}
	return nil
}

func (m *MockIdPClient) IssueToken(ctx context.Context, username, password string) (*idp.TokenSet, error) {
	if m.IssueTokenFunc != nil {
		return m.IssueTokenFunc(ctx, username, password)
	}
	return &idp.TokenSet{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", ExpiresIn: 300}, nil
}

func (m *MockIdPClient) RefreshToken(ctx context.Context, refreshToken string) (*idp.TokenSet, error) {
	if m.RefreshTokenFunc != nil {
		return m.RefreshTokenFunc(ctx, refreshToken)
	}
	return &idp.TokenSet{AccessToken: "access-2", RefreshToken: "refresh-2", TokenType: "Bearer", ExpiresIn: 300}, nil
}

func (m *MockIdPClient) ValidateToken(ctx context.Context, bearer string) (*idp.RawClaims, error) {
	if m.ValidateTokenFunc != nil {
		return m.ValidateTokenFunc(ctx, bearer)
	}
	return nil, models.ErrUnauthenticated
}
