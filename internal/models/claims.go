package models

import (
	"time"
)

// ScopeKind selects which organizational boundary a resource belongs to
type ScopeKind string

const (
	ScopeCompany ScopeKind = "company"
	ScopeNetwork ScopeKind = "network"
	ScopeStation ScopeKind = "station"
)

// ResourceScope identifies the organizational boundary that owns a resource
type ResourceScope struct {
	Kind ScopeKind
	ID   string
}

// AuthorizationClaims is the internal shape of a validated bearer token.
// It is derived per request and never persisted.
type AuthorizationClaims struct {
	SubjectID string    // IdP subject
	UserID    string    // local user id
	TokenID   string    // jti, used for revocation checks
	Role      Role
	CompanyID string
	NetworkID string
	StationID string
	ExpiresAt time.Time
}

// ScopeID returns the claim value matching the given scope kind. An empty
// return means the token carries no grant for that boundary.
func (c *AuthorizationClaims) ScopeID(kind ScopeKind) string {
	switch kind {
	case ScopeCompany:
		return c.CompanyID
	case ScopeNetwork:
		return c.NetworkID
	case ScopeStation:
		return c.StationID
	default:
		return ""
	}
}
