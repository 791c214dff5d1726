package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenPair is the result of a mint. The TTL fields are advisory cookie
// lifetimes; the signed expiry of each token is carried in its claims.
type TokenPair struct {
	AccessToken      string        `json:"access_token"`
	RefreshToken     string        `json:"refresh_token"`
	AccessTTL        time.Duration `json:"-"`
	RefreshTTL       time.Duration `json:"-"`
	AccessExpiresAt  time.Time     `json:"access_expires_at"`
	RefreshExpiresAt time.Time     `json:"refresh_expires_at"`
}

// CookieLifetimes returns the carrier lifetimes to apply.
func (p TokenPair) CookieLifetimes() (access, refresh time.Duration) {
	return p.AccessTTL, p.RefreshTTL
}

// lifetimes is the role dependent lifetime policy.
type lifetimes struct {
	// signed expiry, shared by both tokens
	token time.Duration
	// cookie lifetimes
	accessCookie  time.Duration
	refreshCookie time.Duration
}

func resolveLifetimes(opts Options, isAdminLike, rememberMe bool) lifetimes {
	if isAdminLike {
		return lifetimes{
			token:         opts.AdminTokenTTL,
			accessCookie:  opts.AdminTokenTTL,
			refreshCookie: opts.AdminTokenTTL,
		}
	}

	refreshCookie := opts.SessionTTL
	if rememberMe {
		refreshCookie = opts.RememberMeTTL
	}

	return lifetimes{
		token:         opts.ViewerTokenTTL,
		accessCookie:  opts.ViewerTokenTTL,
		refreshCookie: refreshCookie,
	}
}

// ensureTokenID gives every token a unique jti so two tokens minted in the
// same second for the same subject never share a signed string.
func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims == nil || claims.ID != "" {
		return
	}
	claims.ID = uuid.NewString()
}
