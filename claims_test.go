package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-storeauth"
)

func TestSessionClaims_Accessors(t *testing.T) {
	exp := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	claims := &auth.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "sub-1", ExpiresAt: jwt.NewNumericDate(exp)},
		UID:              "uid-1",
		UserRole:         auth.RoleOperator,
		Kind:             auth.TokenKindAccess,
	}

	assert.Equal(t, "uid-1", claims.UserID())
	assert.Equal(t, "operator", claims.Role())
	assert.Equal(t, "access", claims.TokenKind())
	assert.Equal(t, exp, claims.Expiry())

	claims.UID = ""
	assert.Equal(t, "sub-1", claims.UserID(), "falls back to the subject")

	claims.ExpiresAt = nil
	assert.True(t, claims.Expiry().IsZero())
}

func TestSessionClaims_RoleChecks(t *testing.T) {
	operator := &auth.SessionClaims{UserRole: auth.RoleOperator}
	assert.True(t, operator.IsAtLeast("viewer"))
	assert.True(t, operator.IsAtLeast("operator"))
	assert.False(t, operator.IsAtLeast("owner"))
	assert.False(t, operator.IsAtLeast("admin"))
	assert.True(t, operator.HasRole("operator"))
	assert.False(t, operator.HasRole("owner"))

	refresh := &auth.SessionClaims{Kind: auth.TokenKindRefresh}
	assert.False(t, refresh.IsAtLeast("viewer"), "refresh tokens carry no role")
}

func TestSessionClaims_ExpiryIsUTC(t *testing.T) {
	local := time.Date(2026, 3, 2, 14, 0, 0, 0, time.FixedZone("CET", 2*60*60))
	claims := &auth.SessionClaims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(local)}}

	assert.Equal(t, time.UTC, claims.Expiry().Location())
	assert.True(t, claims.Expiry().Equal(local))

	f := newFixture(t)
	pair, err := f.issuer().Mint(identity(auth.RoleViewer), false)
	require.NoError(t, err)
	parsed, err := f.issuer().VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, parsed.Expiry().Location(), "decoded expiry is normalised to UTC")
	assert.Equal(t, pair.RefreshExpiresAt, parsed.Expiry())
}
