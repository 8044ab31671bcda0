// Package idp abstracts the external identity provider. The provider owns
// credential material and issues signed bearer tokens; this service owns
// role, scope and account status.
package idp

import (
	"context"
	"time"
)

// NewAccount is the payload for provisioning an account in the provider.
// PasswordHash is pre-hashed credential material; the plain password never
// reaches this service's storage or the provider sync path.
type NewAccount struct {
	Email         string
	Username      string
	PasswordHash  string
	HashAlgorithm string
	FirstName     string
	LastName      string
}

// TokenSet is the provider's response to a successful credential exchange
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RawClaims is the provider's validated claim set before it is mapped into
// the internal authorization shape. Role is the raw string; mapping it to a
// known role is the authorizer's job.
type RawClaims struct {
	SubjectID string
	TokenID   string
	UserID    string
	Role      string
	CompanyID string
	NetworkID string
	StationID string
	ExpiresAt time.Time
}

// Client is the capability interface the core depends on. One production
// implementation (Keycloak) and one in-memory fake for tests.
type Client interface {
	// CreateAccount provisions an enabled account and returns the provider's
	// subject id for it.
	CreateAccount(ctx context.Context, account NewAccount) (string, error)

	// FindAccountByUsername returns the subject id of an existing account, or
	// models.ErrNotFound. Verification retries use it to adopt an account a
	// previous attempt already provisioned.
	FindAccountByUsername(ctx context.Context, username string) (string, error)

	// EnableAccount re-enables a previously disabled account
	EnableAccount(ctx context.Context, subjectID string) error

	// DisableAccount blocks the account from authenticating at the provider
	DisableAccount(ctx context.Context, subjectID string) error

	// IssueToken exchanges credentials for a token set (password grant)
	IssueToken(ctx context.Context, username, password string) (*TokenSet, error)

	// RefreshToken exchanges a refresh token for a fresh token set
	RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error)

	// ValidateToken checks signature, expiry and issuer of a bearer token
	// and returns its raw claims.
	ValidateToken(ctx context.Context, bearer string) (*RawClaims, error)
}
