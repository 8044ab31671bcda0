package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/voltgrid/identity/internal/idp"
	"github.com/voltgrid/identity/internal/models"
)

// LoginService exchanges credentials for provider-issued tokens and records
// logouts on the revocation blacklist. Credential verification itself happens
// at the identity provider; this service gates on local account state first.
type LoginService struct {
	users     UserStore
	idpClient idp.Client
	revoker   TokenRevoker
	logger    *slog.Logger
}

func NewLoginService(users UserStore, idpClient idp.Client, revoker TokenRevoker, logger *slog.Logger) *LoginService {
	return &LoginService{
		users:     users,
		idpClient: idpClient,
		revoker:   revoker,
		logger:    logger,
	}
}

// Login exchanges a username and password for a token set. Unknown users,
// bad passwords and blocked accounts all surface the same way to callers.
func (s *LoginService) Login(ctx context.Context, username, password string) (*idp.TokenSet, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return nil, models.ErrUnauthenticated
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login attempt for unknown username")
			return nil, models.ErrUnauthenticated
		}
		return nil, err
	}

	if err := user.CanAuthenticate(); err != nil {
		s.logger.Info("login refused by account state",
			slog.String("user_id", user.ID),
			slog.String("status", string(user.Status)))
		return nil, err
	}

	tokens, err := s.idpClient.IssueToken(ctx, username, password)
	if err != nil {
		if errors.Is(err, models.ErrUnauthenticated) {
			s.logger.Info("login rejected by identity provider",
				slog.String("user_id", user.ID))
		}
		return nil, err
	}

	s.logger.Info("login succeeded", slog.String("user_id", user.ID))
	return tokens, nil
}

// Refresh exchanges a refresh token for a fresh token set
func (s *LoginService) Refresh(ctx context.Context, refreshToken string) (*idp.TokenSet, error) {
	if refreshToken == "" {
		return nil, models.ErrUnauthenticated
	}
	return s.idpClient.RefreshToken(ctx, refreshToken)
}

// Logout blacklists the current access token by its jti. The token remains
// structurally valid until expiry, so revocation is the only way to kill it.
func (s *LoginService) Logout(ctx context.Context, claims *models.AuthorizationClaims) error {
	if claims == nil || claims.TokenID == "" {
		return models.ErrInvalidClaims
	}

	if err := s.revoker.Revoke(ctx, claims.TokenID, claims.UserID, "logout", claims.ExpiresAt); err != nil {
		s.logger.Error("failed to revoke token on logout",
			slog.String("user_id", claims.UserID),
			slog.Any("error", err))
		return err
	}

	s.logger.Info("logout", slog.String("user_id", claims.UserID))
	return nil
}
