package models

import "errors"

// Sentinel errors for the core error taxonomy. Callers check these with
// errors.Is, never by matching message text.
var (
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("resource already exists")
	ErrNotFound            = errors.New("resource not found")
	ErrExpired             = errors.New("resource has expired")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrInvalidToken        = errors.New("invalid token")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrInvalidClaims       = errors.New("invalid claims")
	ErrForbidden           = errors.New("forbidden")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrInternalServer      = errors.New("internal server error")

	// Account state errors. All of these surface as a generic 401 so that
	// responses never distinguish a suspended account from a bad password.
	ErrAccountInactive  = errors.New("account is inactive")
	ErrAccountSuspended = errors.New("account is suspended")
	ErrAccountDeleted   = errors.New("account is deleted")
)

// ValidationError carries field-level detail for malformed input. It unwraps
// to ErrValidation so handlers can map it without knowing the field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return "validation failed: " + e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
