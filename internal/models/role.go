package models

// Role is a user's privilege level. Each role carries a numeric tier so that
// "does this role meet or exceed a required role" is a single integer
// comparison instead of a pile of per-resource boolean checks.
type Role string

const (
	RoleGuest    Role = "guest"
	RoleUser     Role = "user"
	RoleOperator Role = "operator"
	RolePartner  Role = "partner"
	RoleAdmin    Role = "admin"
)

var roleTiers = map[Role]int{
	RoleGuest:    0,
	RoleUser:     1,
	RoleOperator: 2,
	RolePartner:  3,
	RoleAdmin:    4,
}

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	_, ok := roleTiers[r]
	return ok
}

// Tier returns the role's numeric privilege level. Unknown roles get -1 so
// they never satisfy any requirement.
func (r Role) Tier() int {
	tier, ok := roleTiers[r]
	if !ok {
		return -1
	}
	return tier
}

// Meets checks if this role meets or exceeds the required role's tier
func (r Role) Meets(required Role) bool {
	if !r.IsValid() || !required.IsValid() {
		return false
	}
	return r.Tier() >= required.Tier()
}

// AllRoles returns the predefined roles in ascending privilege order
func AllRoles() []Role {
	return []Role{RoleGuest, RoleUser, RoleOperator, RolePartner, RoleAdmin}
}

// ParseRole safely parses a string into a Role
func ParseRole(s string) (Role, bool) {
	role := Role(s)
	return role, role.IsValid()
}
