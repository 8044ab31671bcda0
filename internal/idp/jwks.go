package idp

import (
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/voltgrid/identity/internal/config"
	"github.com/voltgrid/identity/internal/models"
)

// TokenValidator checks provider-issued JWTs against the provider's JWKS.
type TokenValidator struct {
	issuer string
	jwks   jwt.Keyfunc
}

// providerClaims is the raw claim shape the provider puts in access tokens
type providerClaims struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	CompanyID string `json:"company_id"`
	NetworkID string `json:"network_id"`
	StationID string `json:"station_id"`
	jwt.RegisteredClaims
}

func NewTokenValidator(cfg *config.IdPConfig) (*TokenValidator, error) {
	jwksURL := fmt.Sprintf("%s/protocol/openid-connect/certs", cfg.Issuer)

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:  cfg.JWKSRefresh,
		RefreshRateLimit: time.Minute,
		RefreshErrorHandler: func(err error) {
			// transient; the cached key set keeps serving until the next refresh
		},
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch provider JWKS: %w", err)
	}

	return &TokenValidator{issuer: cfg.Issuer, jwks: jwks.Keyfunc}, nil
}

// Validate parses and verifies a bearer token. Any structural, signature,
// expiry or issuer failure is ErrUnauthenticated; the raw role string is
// passed through for the authorizer to map.
func (v *TokenValidator) Validate(bearer string) (*RawClaims, error) {
	claims := &providerClaims{}

	token, err := jwt.ParseWithClaims(bearer, claims, v.jwks,
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{"RS256"}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", models.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthenticated, err)
	}

	if !token.Valid {
		return nil, models.ErrUnauthenticated
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", models.ErrUnauthenticated)
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	return &RawClaims{
		SubjectID: claims.Subject,
		TokenID:   claims.ID,
		UserID:    claims.UserID,
		Role:      claims.Role,
		CompanyID: claims.CompanyID,
		NetworkID: claims.NetworkID,
		StationID: claims.StationID,
		ExpiresAt: expiresAt,
	}, nil
}
