package handlers

import (
	"context"

	"github.com/voltgrid/identity/internal/idp"
	"github.com/voltgrid/identity/internal/models"
	"github.com/voltgrid/identity/internal/services"
)

// MockRegistrationService implements RegistrationServiceInterface for testing
type MockRegistrationService struct {
	StartFunc  func(ctx context.Context, input services.StartRegistrationInput) (*services.StartRegistrationResult, error)
	ResendFunc func(ctx context.Context, email string) (*models.Registration, error)
	VerifyFunc func(ctx context.Context, token string) (*services.VerifiedUser, error)
	CancelFunc func(ctx context.Context, registrationID string) error
}

func (m *MockRegistrationService) Start(ctx context.Context, input services.StartRegistrationInput) (*services.StartRegistrationResult, error) {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, input)
	}
	return nil, models.ErrInternalServer
}

func (m *MockRegistrationService) Resend(ctx context.Context, email string) (*models.Registration, error) {
	if m.ResendFunc != nil {
		return m.ResendFunc(ctx, email)
	}
	return nil, models.ErrInternalServer
}

func (m *MockRegistrationService) Verify(ctx context.Context, token string) (*services.VerifiedUser, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, token)
	}
	return nil, models.ErrInternalServer
}

func (m *MockRegistrationService) Cancel(ctx context.Context, registrationID string) error {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, registrationID)
	}
	return nil
}

// MockLoginService implements LoginServiceInterface for testing
type MockLoginService struct {
	LoginFunc   func(ctx context.Context, username, password string) (*idp.TokenSet, error)
	RefreshFunc func(ctx context.Context, refreshToken string) (*idp.TokenSet, error)
	LogoutFunc  func(ctx context.Context, claims *models.AuthorizationClaims) error
}

func (m *MockLoginService) Login(ctx context.Context, username, password string) (*idp.TokenSet, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, username, password)
	}
	return nil, models.ErrUnauthenticated
}

func (m *MockLoginService) Refresh(ctx context.Context, refreshToken string) (*idp.TokenSet, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return nil, models.ErrUnauthenticated
}

func (m *MockLoginService) Logout(ctx context.Context, claims *models.AuthorizationClaims) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, claims)
	}
	return nil
}

// MockInvitationService implements InvitationServiceInterface for testing
type MockInvitationService struct {
	CreateFunc func(ctx context.Context, input services.CreateInvitationInput) (*services.CreatedInvitation, error)
}

func (m *MockInvitationService) Create(ctx context.Context, input services.CreateInvitationInput) (*services.CreatedInvitation, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, input)
	}
	return nil, models.ErrInternalServer
}

// MockUserDirectory implements UserDirectory for testing
type MockUserDirectory struct {
	GetByIDFunc func(ctx context.Context, id string) (*models.User, error)
}

func (m *MockUserDirectory) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}
