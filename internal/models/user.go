package models

import (
	"time"
)

// UserStatus is the lifecycle state of an activated account
type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserInactive  UserStatus = "inactive"
	UserSuspended UserStatus = "suspended"
	UserDeleted   UserStatus = "deleted"
)

// User represents an activated account. The identity provider is the source
// of truth for credential material; this record owns role, scope and status.
type User struct {
	ID           string     `json:"id"`
	IdPSubjectID string     `json:"idp_subject_id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	Role         Role       `json:"role"`
	Status       UserStatus `json:"status"`
	CompanyID    *string    `json:"company_id,omitempty"`
	NetworkID    *string    `json:"network_id,omitempty"`
	StationID    *string    `json:"station_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CanAuthenticate reports whether the account state permits logins and token
// use. Suspended and deleted users fail even with a structurally valid token.
func (u *User) CanAuthenticate() error {
	switch u.Status {
	case UserActive:
		return nil
	case UserInactive:
		return ErrAccountInactive
	case UserSuspended:
		return ErrAccountSuspended
	case UserDeleted:
		return ErrAccountDeleted
	default:
		return ErrAccountInactive
	}
}
