package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voltgrid/identity/internal/idp"
	"github.com/voltgrid/identity/internal/models"
)

// UserDirectory resolves provider subjects to local accounts
type UserDirectory interface {
	GetByIdPSubject(ctx context.Context, subjectID string) (*models.User, error)
}

// Clock abstracts time for revocation and expiry checks
type Clock interface {
	Now() time.Time
}

// Authorizer turns bearer tokens into authorization claims and decides
// role/scope questions. Authentication consults the identity provider, the
// revocation blacklist and local account state; Authorize itself is a pure
// decision over claims.
type Authorizer struct {
	idpClient   idp.Client
	users       UserDirectory
	revocations *RevocationCache
	clock       Clock
	logger      *slog.Logger
}

func NewAuthorizer(idpClient idp.Client, users UserDirectory, revocations *RevocationCache, clock Clock, logger *slog.Logger) *Authorizer {
	return &Authorizer{
		idpClient:   idpClient,
		users:       users,
		revocations: revocations,
		clock:       clock,
		logger:      logger,
	}
}

// Authenticate validates a bearer token and derives the claim set for the
// request. Every failure mode surfaces as an authentication error; callers
// must not learn whether the token, the account or the claims were at fault.
func (a *Authorizer) Authenticate(ctx context.Context, bearer string) (*models.AuthorizationClaims, error) {
	raw, err := a.idpClient.ValidateToken(ctx, bearer)
	if err != nil {
		return nil, err
	}

	now := a.clock.Now()
	if raw.TokenID != "" && a.revocations.IsRevoked(raw.TokenID, now) {
		a.logger.Info("revoked token presented", slog.String("subject_id", raw.SubjectID))
		return nil, models.ErrUnauthenticated
	}

	role, ok := models.ParseRole(raw.Role)
	if !ok {
		a.logger.Warn("token carries unknown role",
			slog.String("subject_id", raw.SubjectID),
			slog.String("role", raw.Role))
		return nil, fmt.Errorf("%w: unknown role", models.ErrInvalidClaims)
	}

	user, err := a.users.GetByIdPSubject(ctx, raw.SubjectID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			a.logger.Warn("token subject has no local account",
				slog.String("subject_id", raw.SubjectID))
			return nil, models.ErrUnauthenticated
		}
		return nil, err
	}

	if err := user.CanAuthenticate(); err != nil {
		a.logger.Info("token refused by account state",
			slog.String("user_id", user.ID),
			slog.String("status", string(user.Status)))
		return nil, err
	}

	claims := &models.AuthorizationClaims{
		SubjectID: raw.SubjectID,
		UserID:    user.ID,
		TokenID:   raw.TokenID,
		Role:      role,
		CompanyID: raw.CompanyID,
		NetworkID: raw.NetworkID,
		StationID: raw.StationID,
		ExpiresAt: raw.ExpiresAt,
	}

	// the local record is authoritative for scope grants the token omits
	if claims.CompanyID == "" && user.CompanyID != nil {
		claims.CompanyID = *user.CompanyID
	}
	if claims.NetworkID == "" && user.NetworkID != nil {
		claims.NetworkID = *user.NetworkID
	}
	if claims.StationID == "" && user.StationID != nil {
		claims.StationID = *user.StationID
	}

	return claims, nil
}

// IsRevoked reports whether the token id is on the revocation blacklist.
// Revocation is independent of expiry: a structurally valid, unexpired token
// can still be dead.
func (a *Authorizer) IsRevoked(tokenID string) bool {
	return a.revocations.IsRevoked(tokenID, a.clock.Now())
}

// Authorize decides whether the claims grant access to an operation that
// requires the given minimum role, optionally bound to a resource scope.
// Admins pass scope checks unconditionally; everyone else needs an exact
// scope id match, and a claim set missing the scope id is denied.
func (a *Authorizer) Authorize(claims *models.AuthorizationClaims, required models.Role, scope *models.ResourceScope) error {
	if claims == nil || !claims.Role.IsValid() {
		return models.ErrInvalidClaims
	}

	if !claims.Role.Meets(required) {
		return fmt.Errorf("%w: requires %s role", models.ErrForbidden, required)
	}

	if scope == nil || claims.Role == models.RoleAdmin {
		return nil
	}

	granted := claims.ScopeID(scope.Kind)
	if granted == "" || granted != scope.ID {
		return fmt.Errorf("%w: no grant for %s %s", models.ErrForbidden, scope.Kind, scope.ID)
	}
	return nil
}
