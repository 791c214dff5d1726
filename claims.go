package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind distinguishes access tokens from refresh tokens
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// SessionClaims is the claim set carried by both token kinds.
// Refresh tokens carry no role; the role is re-read on rotation.
type SessionClaims struct {
	jwt.RegisteredClaims
	UID      string    `json:"uid"`
	UserRole UserRole  `json:"role,omitempty"`
	Kind     TokenKind `json:"kind"`
}

// UserID returns the user ID
func (c *SessionClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// Role returns the role carried by access tokens
func (c *SessionClaims) Role() string {
	return string(c.UserRole)
}

// TokenKind returns the decoded kind
func (c *SessionClaims) TokenKind() string {
	return string(c.Kind)
}

// Expiry returns the expiry claim in UTC, zero when absent.
func (c *SessionClaims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time.UTC()
}

// IsAtLeast checks if the carried role meets minRole
func (c *SessionClaims) IsAtLeast(minRole string) bool {
	return c.UserRole.IsAtLeast(UserRole(minRole))
}

// HasRole checks for an exact role
func (c *SessionClaims) HasRole(role string) bool {
	return string(c.UserRole) == role
}
