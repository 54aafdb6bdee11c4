package models

import "fmt"

// Role is a member's privilege level inside a group.
// Roles are totally ordered: RoleMember < RoleAdmin < RoleOwner.
type Role int

const (
	RoleMember Role = 1
	RoleAdmin  Role = 2
	RoleOwner  Role = 3
)

// String returns the wire/storage name of the role.
func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleAdmin:
		return "admin"
	case RoleOwner:
		return "owner"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return r >= RoleMember && r <= RoleOwner
}

// ParseRole converts a stored or wire role name into a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "member":
		return RoleMember, nil
	case "admin":
		return RoleAdmin, nil
	case "owner":
		return RoleOwner, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// Membership links a user to a group.
type Membership struct {
	UserID  string
	GroupID string
	Role    Role
}

// Member is a membership enriched with the user's profile for display.
type Member struct {
	UserID   string
	Username string
	Email    string
	Role     Role
}
