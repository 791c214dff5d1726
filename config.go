package auth

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
)

const (
	DefaultAdminTokenTTL  = 24 * time.Hour
	DefaultViewerTokenTTL = 365 * 24 * time.Hour
	DefaultRememberMeTTL  = 30 * 24 * time.Hour
	DefaultSessionTTL     = 7 * 24 * time.Hour

	DefaultAccessCookie  = "access_token"
	DefaultRefreshCookie = "refresh_token"
	DefaultContextKey    = "user"

	DefaultMinPasswordLength = 6
)

// Options holds auth options
type Options struct {
	// AccessSecret signs access tokens. Required.
	AccessSecret string `yaml:"access_secret"`
	// RefreshSecret signs refresh tokens. Empty falls back to AccessSecret.
	RefreshSecret string   `yaml:"refresh_secret"`
	Issuer        string   `yaml:"issuer"`
	Audience      []string `yaml:"audience"`

	// AdminTokenTTL applies to both tokens of operators and owners.
	AdminTokenTTL time.Duration `yaml:"admin_token_ttl"`
	// ViewerTokenTTL applies to both signed tokens of viewers.
	ViewerTokenTTL time.Duration `yaml:"viewer_token_ttl"`
	// RememberMeTTL and SessionTTL are viewer refresh cookie lifetimes.
	RememberMeTTL time.Duration `yaml:"remember_me_ttl"`
	SessionTTL    time.Duration `yaml:"session_ttl"`

	AccessCookie  string `yaml:"access_cookie"`
	RefreshCookie string `yaml:"refresh_cookie"`
	CookieSecure  bool   `yaml:"cookie_secure"`
	ContextKey    string `yaml:"context_key"`
	TokenLookup   string `yaml:"token_lookup"`
	AuthScheme    string `yaml:"auth_scheme"`

	MinPasswordLength int `yaml:"min_password_length"`
}

// SigningKeys are the resolved secrets for both token kinds.
type SigningKeys struct {
	Access  []byte
	Refresh []byte
}

// DefaultOptions returns options with every lifetime and name set.
func DefaultOptions() Options {
	return Options{
		AdminTokenTTL:     DefaultAdminTokenTTL,
		ViewerTokenTTL:    DefaultViewerTokenTTL,
		RememberMeTTL:     DefaultRememberMeTTL,
		SessionTTL:        DefaultSessionTTL,
		AccessCookie:      DefaultAccessCookie,
		RefreshCookie:     DefaultRefreshCookie,
		CookieSecure:      true,
		ContextKey:        DefaultContextKey,
		TokenLookup:       "header:Authorization,cookie:" + DefaultAccessCookie,
		AuthScheme:        "Bearer",
		MinPasswordLength: DefaultMinPasswordLength,
	}
}

// WithDefaults fills zero values from DefaultOptions.
func (o Options) WithDefaults() Options {
	def := DefaultOptions()
	if o.AdminTokenTTL == 0 {
		o.AdminTokenTTL = def.AdminTokenTTL
	}
	if o.ViewerTokenTTL == 0 {
		o.ViewerTokenTTL = def.ViewerTokenTTL
	}
	if o.RememberMeTTL == 0 {
		o.RememberMeTTL = def.RememberMeTTL
	}
	if o.SessionTTL == 0 {
		o.SessionTTL = def.SessionTTL
	}
	if o.AccessCookie == "" {
		o.AccessCookie = def.AccessCookie
	}
	if o.RefreshCookie == "" {
		o.RefreshCookie = def.RefreshCookie
	}
	if o.ContextKey == "" {
		o.ContextKey = def.ContextKey
	}
	if o.TokenLookup == "" {
		o.TokenLookup = "header:Authorization,cookie:" + o.AccessCookie
	}
	if o.AuthScheme == "" {
		o.AuthScheme = def.AuthScheme
	}
	if o.MinPasswordLength == 0 {
		o.MinPasswordLength = def.MinPasswordLength
	}
	return o
}

// SigningKeys resolves both key slots. The refresh slot falls back to the access secret.
func (o Options) SigningKeys() SigningKeys {
	refresh := o.RefreshSecret
	if refresh == "" {
		refresh = o.AccessSecret
	}
	return SigningKeys{
		Access:  []byte(o.AccessSecret),
		Refresh: []byte(refresh),
	}
}

// Validate will run validation rules
func (o Options) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&o,
			validation.Field(&o.AccessSecret, validation.Required, validation.Length(16, 0)),
			validation.Field(&o.AdminTokenTTL, validation.Required, validation.Min(time.Minute)),
			validation.Field(&o.ViewerTokenTTL, validation.Required, validation.Min(time.Minute)),
			validation.Field(&o.RememberMeTTL, validation.Required, validation.Min(time.Minute)),
			validation.Field(&o.SessionTTL, validation.Required, validation.Min(time.Minute)),
			validation.Field(&o.MinPasswordLength, validation.Min(1)),
		)
	}, "invalid auth options")
}
