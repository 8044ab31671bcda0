package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/voltgrid/identity/internal/config"
	"github.com/voltgrid/identity/internal/idp"
	"github.com/voltgrid/identity/internal/models"
	"github.com/voltgrid/identity/pkg/auth"
	"github.com/voltgrid/identity/pkg/logger"
)

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-]{3,32}$`)
)

// StartRegistrationInput is the payload for opening a new registration
type StartRegistrationInput struct {
	Email      string
	Username   string
	Password   string
	FirstName  string
	LastName   string
	Phone      string
	InviteCode string
}

// StartRegistrationResult is what the API exposes after a successful start.
// The email comes back masked so responses never echo the full address.
type StartRegistrationResult struct {
	RegistrationID string
	MaskedEmail    string
	Status         models.RegistrationStatus
	ExpiresAt      time.Time
}

// VerifiedUser is the outcome of a successful verification
type VerifiedUser struct {
	UserID   string
	Email    string
	Username string
	Role     models.Role
}

// RegistrationService drives the registration lifecycle: start, resend,
// verify, cancel. Expiry is lazy: any read of a pending row past its
// deadline flips it to expired before the operation proceeds.
type RegistrationService struct {
	registrations RegistrationStore
	users         UserStore
	invitations   InvitationStore
	idpClient     idp.Client
	mailer        Mailer
	hasher        auth.PasswordHasher
	clock         Clock
	ids           IDGenerator
	logger        *slog.Logger
	cfg           config.RegistrationConfig
}

func NewRegistrationService(
	registrations RegistrationStore,
	users UserStore,
	invitations InvitationStore,
	idpClient idp.Client,
	mailer Mailer,
	hasher auth.PasswordHasher,
	clock Clock,
	ids IDGenerator,
	logger *slog.Logger,
	cfg config.RegistrationConfig,
) *RegistrationService {
	return &RegistrationService{
		registrations: registrations,
		users:         users,
		invitations:   invitations,
		idpClient:     idpClient,
		mailer:        mailer,
		hasher:        hasher,
		clock:         clock,
		ids:           ids,
		logger:        logger,
		cfg:           cfg,
	}
}

// hashInviteCode mirrors the storage form of invitation codes. Codes are
// random, so an unsalted digest is enough to keep plain codes out of the
// database.
func hashInviteCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Start opens a new registration and sends the verification email. It fails
// with ErrConflict when the email or username is already held by a user or a
// live registration.
func (s *RegistrationService) Start(ctx context.Context, input StartRegistrationInput) (*StartRegistrationResult, error) {
	now := s.clock.Now()

	email := strings.ToLower(strings.TrimSpace(input.Email))
	username := strings.ToLower(strings.TrimSpace(input.Username))

	if !emailPattern.MatchString(email) {
		return nil, &models.ValidationError{Field: "email", Reason: "must be a valid email address"}
	}
	if !usernamePattern.MatchString(username) {
		return nil, &models.ValidationError{Field: "username", Reason: "must be 3-32 characters of letters, digits, underscore or hyphen"}
	}
	if err := auth.ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	var invitation *models.Invitation
	if input.InviteCode != "" {
		inv, err := s.invitations.GetByCodeHash(ctx, hashInviteCode(input.InviteCode))
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, &models.ValidationError{Field: "inviteCode", Reason: "invitation is invalid"}
			}
			return nil, err
		}
		if !inv.IsPending(now) {
			return nil, &models.ValidationError{Field: "inviteCode", Reason: "invitation is expired or already used"}
		}
		if !strings.EqualFold(inv.Email, email) {
			return nil, &models.ValidationError{Field: "inviteCode", Reason: "invitation was issued for a different email"}
		}
		invitation = inv
	}

	if err := s.checkAvailability(ctx, email, username, now); err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	token, err := s.ids.NewToken(s.cfg.TokenLength)
	if err != nil {
		s.logger.Error("failed to generate verification token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	reg := &models.Registration{
		ID:                s.ids.NewID(),
		Email:             email,
		Username:          username,
		PasswordHash:      passwordHash,
		VerificationToken: token,
		Status:            models.RegistrationPending,
		ResendCount:       0,
		LastSentAt:        now,
		FirstName:         strings.TrimSpace(input.FirstName),
		LastName:          strings.TrimSpace(input.LastName),
		Phone:             strings.TrimSpace(input.Phone),
		ExpiresAt:         now.Add(s.cfg.VerificationTTL),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if invitation != nil {
		reg.InvitationID = &invitation.ID
	}

	created, err := s.registrations.Create(ctx, reg)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			// unique index beat our availability check; same outcome
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create registration", slog.Any("error", err))
		return nil, err
	}

	// Email delivery is best effort; the resend endpoint covers failures
	if err := s.mailer.SendVerificationEmail(ctx, email, token, created.ExpiresAt); err != nil {
		s.logger.Error("verification email delivery failed",
			slog.String("registration_id", created.ID),
			slog.Any("error", err))
	}

	s.logger.Info("registration started",
		slog.String("registration_id", created.ID),
		slog.String("email", logger.MaskEmail(email)),
		slog.Bool("invited", invitation != nil))

	return &StartRegistrationResult{
		RegistrationID: created.ID,
		MaskedEmail:    logger.MaskEmail(email),
		Status:         created.Status,
		ExpiresAt:      created.ExpiresAt,
	}, nil
}

// checkAvailability rejects emails and usernames already held by an active
// user or a live registration. A stale pending registration past its deadline
// is flipped to expired and does not block the new attempt.
func (s *RegistrationService) checkAvailability(ctx context.Context, email, username string, now time.Time) error {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return fmt.Errorf("%w: email already in use", models.ErrConflict)
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return fmt.Errorf("%w: username already in use", models.ErrConflict)
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	if existing, err := s.registrations.GetPendingByEmail(ctx, email); err == nil {
		if existing.IsPending(now) {
			return fmt.Errorf("%w: a registration for this email is already pending", models.ErrConflict)
		}
		if err := s.registrations.MarkExpired(ctx, existing.ID, now); err != nil {
			return err
		}
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	if existing, err := s.registrations.GetActiveByUsername(ctx, username); err == nil {
		if existing.Status == models.RegistrationVerified || existing.IsPending(now) {
			return fmt.Errorf("%w: username already in use", models.ErrConflict)
		}
		if existing.Status == models.RegistrationPending {
			if err := s.registrations.MarkExpired(ctx, existing.ID, now); err != nil {
				return err
			}
		}
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	return nil
}

// Resend rotates the verification token and sends a fresh email. It enforces
// both the per-registration resend cap and the cooldown between sends; the
// conditional update means concurrent resends cannot both count.
func (s *RegistrationService) Resend(ctx context.Context, email string) (*models.Registration, error) {
	now := s.clock.Now()
	email = strings.ToLower(strings.TrimSpace(email))

	reg, err := s.registrations.GetPendingByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if reg.IsExpired(now) {
		if err := s.registrations.MarkExpired(ctx, reg.ID, now); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: registration expired, start over", models.ErrExpired)
	}

	if reg.ResendCount >= s.cfg.MaxResends {
		s.logger.Info("resend cap reached",
			slog.String("registration_id", reg.ID),
			slog.Int("resend_count", reg.ResendCount))
		return nil, fmt.Errorf("%w: resend limit reached", models.ErrRateLimited)
	}

	if elapsed := now.Sub(reg.LastSentAt); elapsed < s.cfg.ResendCooldown {
		s.logger.Info("resend inside cooldown",
			slog.String("registration_id", reg.ID),
			slog.Duration("elapsed", elapsed))
		return nil, fmt.Errorf("%w: wait before requesting another email", models.ErrRateLimited)
	}

	token, err := s.ids.NewToken(s.cfg.TokenLength)
	if err != nil {
		s.logger.Error("failed to generate verification token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	expiresAt := now.Add(s.cfg.VerificationTTL)
	if err := s.registrations.RotateToken(ctx, reg.ID, reg.ResendCount, token, expiresAt, now); err != nil {
		if errors.Is(err, models.ErrConflict) {
			// a concurrent resend won the conditional update
			return nil, fmt.Errorf("%w: a resend is already in progress", models.ErrConflict)
		}
		return nil, err
	}

	if err := s.mailer.SendVerificationEmail(ctx, email, token, expiresAt); err != nil {
		s.logger.Error("verification email delivery failed",
			slog.String("registration_id", reg.ID),
			slog.Any("error", err))
	}

	reg.VerificationToken = token
	reg.ResendCount++
	reg.LastSentAt = now
	reg.ExpiresAt = expiresAt

	s.logger.Info("verification email resent",
		slog.String("registration_id", reg.ID),
		slog.Int("resend_count", reg.ResendCount))

	return reg, nil
}

// Verify consumes a verification token: it provisions the account at the
// identity provider, then atomically flips the registration to verified and
// creates the local user. The provider call happens first so a verified row
// never exists without a backing provider account.
func (s *RegistrationService) Verify(ctx context.Context, token string) (*VerifiedUser, error) {
	now := s.clock.Now()

	if token == "" {
		return nil, models.ErrInvalidToken
	}

	reg, err := s.registrations.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// unknown and already-used tokens are indistinguishable
			return nil, models.ErrInvalidToken
		}
		return nil, err
	}

	switch {
	case reg.Status == models.RegistrationExpired:
		return nil, models.ErrExpired
	case reg.Status != models.RegistrationPending:
		return nil, models.ErrInvalidToken
	case reg.IsExpired(now):
		if err := s.registrations.MarkExpired(ctx, reg.ID, now); err != nil {
			return nil, err
		}
		return nil, models.ErrExpired
	}

	role := s.cfg.DefaultRole
	if reg.InvitationID != nil {
		inv, err := s.invitations.GetByID(ctx, *reg.InvitationID)
		if err != nil {
			s.logger.Error("failed to load invitation for verification",
				slog.String("registration_id", reg.ID),
				slog.String("invitation_id", *reg.InvitationID),
				slog.Any("error", err))
			return nil, err
		}
		role = inv.Role
	}

	subjectID, err := s.idpClient.CreateAccount(ctx, idp.NewAccount{
		Email:         reg.Email,
		Username:      reg.Username,
		PasswordHash:  reg.PasswordHash,
		HashAlgorithm: s.hasher.Algorithm(),
		FirstName:     reg.FirstName,
		LastName:      reg.LastName,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			subjectID, err = s.adoptExistingAccount(ctx, reg.Username)
		}
		if err != nil {
			s.logger.Error("identity provider account creation failed",
				slog.String("registration_id", reg.ID),
				slog.Any("error", err))
			return nil, err
		}
	}

	user := &models.User{
		ID:           s.ids.NewID(),
		IdPSubjectID: subjectID,
		Email:        reg.Email,
		Username:     reg.Username,
		Role:         role,
		Status:       models.UserActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.registrations.CompleteVerification(ctx, reg.ID, token, now, user)
	if err != nil {
		// the provider account must not stay enabled when the local
		// transition fails. For a lost race the registration is terminal
		// anyway; for a store failure it stays pending and the next verify
		// attempt re-adopts the disabled account.
		if disableErr := s.idpClient.DisableAccount(ctx, subjectID); disableErr != nil {
			s.logger.Error("failed to disable orphaned provider account",
				slog.String("subject_id", subjectID),
				slog.Any("error", disableErr))
		}
		return nil, err
	}

	if reg.InvitationID != nil {
		if err := s.invitations.MarkAccepted(ctx, *reg.InvitationID, now); err != nil {
			// conflict means another acceptance won; the user is already
			// created, so only log
			s.logger.Warn("failed to mark invitation accepted",
				slog.String("invitation_id", *reg.InvitationID),
				slog.Any("error", err))
		}
	}

	s.logger.Info("registration verified",
		slog.String("registration_id", reg.ID),
		slog.String("user_id", created.ID),
		slog.String("role", string(created.Role)))

	return &VerifiedUser{
		UserID:   created.ID,
		Email:    created.Email,
		Username: created.Username,
		Role:     created.Role,
	}, nil
}

// adoptExistingAccount recovers the subject id when the provider already
// holds an account for this username. An earlier verify attempt that failed
// after provisioning leaves that account behind, disabled; re-enabling it
// lets the retry finish instead of wedging on the conflict.
func (s *RegistrationService) adoptExistingAccount(ctx context.Context, username string) (string, error) {
	subjectID, err := s.idpClient.FindAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// the conflict was not on username; nothing to adopt
			return "", models.ErrConflict
		}
		return "", err
	}

	if err := s.idpClient.EnableAccount(ctx, subjectID); err != nil {
		return "", err
	}

	s.logger.Info("adopted existing provider account",
		slog.String("username", username),
		slog.String("subject_id", subjectID))
	return subjectID, nil
}

// Cancel withdraws a pending registration. Cancelling a registration that is
// already terminal succeeds without effect; only an unknown id is an error.
func (s *RegistrationService) Cancel(ctx context.Context, registrationID string) error {
	now := s.clock.Now()

	if err := s.registrations.Cancel(ctx, registrationID, now); err != nil {
		return err
	}

	s.logger.Info("registration cancelled", slog.String("registration_id", registrationID))
	return nil
}
