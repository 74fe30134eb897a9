package auth

import "time"

// Role represents an authorisation tier within a household.
type Role string

const (
	// RoleMember is a household member. Can view state and control
	// devices, but cannot manage users or edge nodes.
	RoleMember Role = "member"

	// RoleAdmin manages the household: devices, rooms, floors, members.
	RoleAdmin Role = "admin"

	// RoleOwner has everything admin can do plus deleting the household
	// and managing other admins.
	RoleOwner Role = "owner"
)

// ValidRoles is the set of valid household roles.
var ValidRoles = []Role{RoleMember, RoleAdmin, RoleOwner}

// IsValidRole returns true if the role is a valid household role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// User represents an authenticated human account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"displayName"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
