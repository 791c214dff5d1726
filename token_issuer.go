package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenIssuer mints and verifies access/refresh token pairs.
type TokenIssuer struct {
	opts   Options
	keys   SigningKeys
	now    Clock
	logger Logger
}

// NewTokenIssuer creates a new TokenIssuer instance
func NewTokenIssuer(opts Options, logger Logger) *TokenIssuer {
	opts = opts.WithDefaults()
	return &TokenIssuer{
		opts:   opts,
		keys:   opts.SigningKeys(),
		now:    time.Now,
		logger: resolveLogger(logger),
	}
}

// WithClock overrides the time source used for minting and verification.
func (ti *TokenIssuer) WithClock(clock Clock) *TokenIssuer {
	if clock != nil {
		ti.now = clock
	}
	return ti
}

// Options returns the resolved options.
func (ti *TokenIssuer) Options() Options {
	return ti.opts
}

// Mint signs a fresh pair for identity. The role decides the lifetimes:
// operators and owners get the admin lifetime for both tokens, viewers get
// the viewer lifetime and a refresh cookie lifetime chosen by rememberMe.
func (ti *TokenIssuer) Mint(identity Identity, rememberMe bool) (*TokenPair, error) {
	if identity == nil || identity.ID() == "" {
		return nil, errors.New("identity is required", errors.CategoryInternal)
	}

	now := ti.now()
	ttl := resolveLifetimes(ti.opts, identity.Role().IsAdminLike(), rememberMe)
	expiresAt := now.Add(ttl.token)

	access := ti.claims(identity, TokenKindAccess, now, expiresAt)
	access.UserRole = identity.Role()

	accessToken, err := ti.SignClaims(access)
	if err != nil {
		return nil, err
	}

	refreshToken, err := ti.SignClaims(ti.claims(identity, TokenKindRefresh, now, expiresAt))
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessTTL:        ttl.accessCookie,
		RefreshTTL:       ttl.refreshCookie,
		AccessExpiresAt:  expiresAt,
		RefreshExpiresAt: expiresAt,
	}, nil
}

func (ti *TokenIssuer) claims(identity Identity, kind TokenKind, now, expiresAt time.Time) *SessionClaims {
	var aud jwt.ClaimStrings
	if len(ti.opts.Audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ti.opts.Audience))
		copy(aud, ti.opts.Audience)
	}

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.opts.Issuer,
			Subject:   identity.ID(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:  identity.ID(),
		Kind: kind,
	}
	ensureTokenID(&claims.RegisteredClaims)
	return claims
}

// SignClaims signs claims with the key that matches their kind.
func (ti *TokenIssuer) SignClaims(claims *SessionClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	key, err := ti.keyFor(claims.Kind)
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(key)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Verify parses and validates a token and checks its kind.
// Expired tokens fail with ErrTokenExpired, every other verification
// failure with ErrTokenInvalid.
func (ti *TokenIssuer) Verify(raw string, expected TokenKind) (*SessionClaims, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	}
	if ti.opts.Issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ti.opts.Issuer))
	}
	if len(ti.opts.Audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ti.opts.Audience...))
	}

	token, err := jwt.ParseWithClaims(raw, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ti.logger.Error("token issuer encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		// key selection follows the claimed kind, the signature still has to match it
		claims, ok := t.Claims.(*SessionClaims)
		if !ok {
			return nil, fmt.Errorf("unexpected claims type %T", t.Claims)
		}
		return ti.keyFor(claims.Kind)
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, newError(ErrTokenInvalid, "", map[string]any{
			"reason": err.Error(),
		})
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.UserID() == "" {
		return nil, ErrTokenInvalid
	}

	if claims.Kind != expected {
		return nil, newError(ErrWrongTokenKind, "", map[string]any{
			"expected": string(expected),
			"actual":   string(claims.Kind),
		})
	}

	return claims, nil
}

// VerifyAccess verifies an access token.
func (ti *TokenIssuer) VerifyAccess(raw string) (*SessionClaims, error) {
	return ti.Verify(raw, TokenKindAccess)
}

// VerifyRefresh verifies a refresh token.
func (ti *TokenIssuer) VerifyRefresh(raw string) (*SessionClaims, error) {
	return ti.Verify(raw, TokenKindRefresh)
}

func (ti *TokenIssuer) keyFor(kind TokenKind) ([]byte, error) {
	switch kind {
	case TokenKindAccess:
		return ti.keys.Access, nil
	case TokenKindRefresh:
		return ti.keys.Refresh, nil
	default:
		return nil, fmt.Errorf("unknown token kind %q", kind)
	}
}
