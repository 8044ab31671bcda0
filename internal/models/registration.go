package models

import (
	"time"
)

// RegistrationStatus is the lifecycle state of an in-progress signup
type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationVerified  RegistrationStatus = "verified"
	RegistrationExpired   RegistrationStatus = "expired"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible
func (s RegistrationStatus) IsTerminal() bool {
	return s == RegistrationVerified || s == RegistrationExpired || s == RegistrationCancelled
}

// Registration represents an in-progress signup. At most one non-terminal
// registration exists per email at a time.
type Registration struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	Username          string     `json:"username"`
	PasswordHash      string     `json:"-"` // never expose or log
	VerificationToken string     `json:"-"` // single use, rotated on resend
	Status            RegistrationStatus `json:"status"`
	ResendCount       int        `json:"resend_count"`
	LastSentAt        time.Time  `json:"last_sent_at"`
	InvitationID      *string    `json:"invitation_id,omitempty"`
	FirstName         string     `json:"first_name,omitempty"`
	LastName          string     `json:"last_name,omitempty"`
	Phone             string     `json:"phone,omitempty"`
	ExpiresAt         time.Time  `json:"expires_at"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsExpired reports whether the verification window has passed. Expiry is a
// derived predicate: a pending row past its deadline is logically expired
// even before the stored status catches up.
func (r *Registration) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// IsPending reports whether the registration is still awaiting verification
// at the given instant, accounting for derived expiry.
func (r *Registration) IsPending(now time.Time) bool {
	return r.Status == RegistrationPending && !r.IsExpired(now)
}
