package auth

import "slices"

// UserRole is the user's role
type UserRole string

const (
	// RoleViewer is a regular storefront account
	RoleViewer UserRole = "viewer"
	// RoleOperator manages a shop and may request password resets
	RoleOperator UserRole = "operator"
	// RoleOwner is the single privileged account
	RoleOwner UserRole = "owner"
)

var roleHierarchy = map[UserRole]int{
	RoleViewer:   0,
	RoleOperator: 1,
	RoleOwner:    2,
}

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

// IsAdminLike reports whether the role gets the short administrative token lifetime.
func (r UserRole) IsAdminLike() bool {
	return r == RoleOperator || r == RoleOwner
}

// IsAtLeast checks if this role meets the minimum required level
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// In reports whether the role is one of allowed.
func (r UserRole) In(allowed ...UserRole) bool {
	return slices.Contains(allowed, r)
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleViewer,
		RoleOperator,
		RoleOwner,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, role.IsValid()
}
