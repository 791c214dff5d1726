package auth

import "time"

// SignupInput is the payload of SignupOrLogin.
type SignupInput struct {
	Name       string
	Password   string
	Profile    Profile
	Region     string
	RememberMe bool
	Meta       RequestMeta
}

// SessionResult is a resolved identity and a freshly minted pair.
type SessionResult struct {
	User      *User      `json:"user"`
	IsNewUser bool       `json:"is_new_user"`
	Tokens    *TokenPair `json:"tokens"`
}

// CookieLifetimes returns the advisory carrier TTLs of the pair.
func (r *SessionResult) CookieLifetimes() (access, refresh time.Duration) {
	if r == nil || r.Tokens == nil {
		return 0, 0
	}
	return r.Tokens.CookieLifetimes()
}
