package models

import (
	"time"
)

// InvitationStatus mirrors the registration state machine
type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationExpired   InvitationStatus = "expired"
	InvitationCancelled InvitationStatus = "cancelled"
)

// Invitation is a pre-authorized registration shortcut issued by an admin.
// The code is stored hashed; the plain code is only ever delivered out of
// band to the invitee.
type Invitation struct {
	ID         string           `json:"id"`
	CodeHash   string           `json:"-"`
	Email      string           `json:"email"`
	Role       Role             `json:"role"`
	InvitedBy  string           `json:"invited_by"`
	Status     InvitationStatus `json:"status"`
	ExpiresAt  time.Time        `json:"expires_at"`
	AcceptedAt *time.Time       `json:"accepted_at,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// IsExpired reports whether the invitation window has passed
func (i *Invitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// IsPending reports whether the invitation can still be accepted
func (i *Invitation) IsPending(now time.Time) bool {
	return i.Status == InvitationPending && !i.IsExpired(now)
}
