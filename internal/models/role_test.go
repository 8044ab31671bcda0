package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRole_Meets(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		required Role
		want     bool
	}{
		{"admin meets partner", RoleAdmin, RolePartner, true},
		{"admin meets admin", RoleAdmin, RoleAdmin, true},
		{"partner meets operator", RolePartner, RoleOperator, true},
		{"operator does not meet partner", RoleOperator, RolePartner, false},
		{"user does not meet operator", RoleUser, RoleOperator, false},
		{"guest meets guest", RoleGuest, RoleGuest, true},
		{"guest does not meet user", RoleGuest, RoleUser, false},
		{"unknown role never meets", Role("superuser"), RoleGuest, false},
		{"unknown requirement never met", RoleAdmin, Role("root"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.role.Meets(tt.required))
		})
	}
}

func TestRole_TierOrdering(t *testing.T) {
	roles := AllRoles()
	for i := 1; i < len(roles); i++ {
		assert.Greater(t, roles[i].Tier(), roles[i-1].Tier(),
			"%s should outrank %s", roles[i], roles[i-1])
	}
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole("operator")
	assert.True(t, ok)
	assert.Equal(t, RoleOperator, role)

	_, ok = ParseRole("wizard")
	assert.False(t, ok)

	// Role strings are case sensitive; IdP claims are lowercased upstream
	_, ok = ParseRole("Admin")
	assert.False(t, ok)
}

func TestRole_TierUnknown(t *testing.T) {
	assert.Equal(t, -1, Role("").Tier())
}
