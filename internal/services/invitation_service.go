package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/voltgrid/identity/internal/models"
)

// CreateInvitationInput is the admin payload for issuing an invitation
type CreateInvitationInput struct {
	Email     string
	Role      models.Role
	InvitedBy string
}

// CreatedInvitation carries the plain invitation code exactly once, in the
// response to the admin who issued it. Only the hash is stored.
type CreatedInvitation struct {
	Invitation *models.Invitation
	PlainCode  string
}

// InvitationService issues pre-authorized registration invitations
type InvitationService struct {
	invitations InvitationStore
	users       UserStore
	mailer      Mailer
	clock       Clock
	ids         IDGenerator
	logger      *slog.Logger
	ttl         time.Duration
	codeLength  int
}

func NewInvitationService(
	invitations InvitationStore,
	users UserStore,
	mailer Mailer,
	clock Clock,
	ids IDGenerator,
	logger *slog.Logger,
	ttl time.Duration,
	codeLength int,
) *InvitationService {
	return &InvitationService{
		invitations: invitations,
		users:       users,
		mailer:      mailer,
		clock:       clock,
		ids:         ids,
		logger:      logger,
		ttl:         ttl,
		codeLength:  codeLength,
	}
}

// Create issues an invitation for the given email and role and emails the
// code to the invitee.
func (s *InvitationService) Create(ctx context.Context, input CreateInvitationInput) (*CreatedInvitation, error) {
	now := s.clock.Now()

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !emailPattern.MatchString(email) {
		return nil, &models.ValidationError{Field: "email", Reason: "must be a valid email address"}
	}
	if !input.Role.IsValid() {
		return nil, &models.ValidationError{Field: "role", Reason: "unknown role"}
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, models.ErrConflict
	}

	code, err := s.ids.NewToken(s.codeLength)
	if err != nil {
		s.logger.Error("failed to generate invitation code", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	inv := &models.Invitation{
		ID:        s.ids.NewID(),
		CodeHash:  hashInviteCode(code),
		Email:     email,
		Role:      input.Role,
		InvitedBy: input.InvitedBy,
		Status:    models.InvitationPending,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}

	created, err := s.invitations.Create(ctx, inv)
	if err != nil {
		return nil, err
	}

	if err := s.mailer.SendInvitationEmail(ctx, email, code, string(input.Role), created.ExpiresAt); err != nil {
		s.logger.Error("invitation email delivery failed",
			slog.String("invitation_id", created.ID),
			slog.Any("error", err))
	}

	s.logger.Info("invitation created",
		slog.String("invitation_id", created.ID),
		slog.String("role", string(created.Role)),
		slog.String("invited_by", created.InvitedBy))

	return &CreatedInvitation{Invitation: created, PlainCode: code}, nil
}
