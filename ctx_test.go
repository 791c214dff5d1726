package auth_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-storeauth"
)

func TestContextHelpers(t *testing.T) {
	_, ok := auth.FromContext(context.Background())
	assert.False(t, ok)
	_, ok = auth.GetClaims(context.Background())
	assert.False(t, ok)

	user := &auth.User{ID: uuid.New(), Username: "shopA"}
	claims := &auth.SessionClaims{UID: user.ID.String(), Kind: auth.TokenKindAccess}

	ctx := auth.WithClaimsContext(auth.WithContext(context.Background(), user), claims)

	got, ok := auth.FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, user, got)

	gotClaims, ok := auth.GetClaims(ctx)
	require.True(t, ok)
	assert.Equal(t, user.ID.String(), gotClaims.UserID())

	_, ok = auth.FromContext(auth.WithContext(context.Background(), nil))
	assert.False(t, ok, "nil users are not identities")
}

func TestGetRouterUser(t *testing.T) {
	user := &auth.User{ID: uuid.New(), Username: "shopA"}

	fromLocals := newFakeContext()
	fromLocals.locals[auth.DefaultContextKey] = user
	got, ok := auth.GetRouterUser(fromLocals, "")
	require.True(t, ok)
	assert.Same(t, user, got)

	fromCtx := newFakeContext()
	fromCtx.ctx = auth.WithContext(context.Background(), user)
	got, ok = auth.GetRouterUser(fromCtx, "member")
	require.True(t, ok)
	assert.Same(t, user, got)

	_, ok = auth.GetRouterUser(newFakeContext(), "")
	assert.False(t, ok)

	claims := &auth.SessionClaims{UID: user.ID.String()}
	withClaims := newFakeContext()
	withClaims.locals[auth.DefaultContextKey+"_claims"] = claims
	gotClaims, ok := auth.GetRouterClaims(withClaims, "")
	require.True(t, ok)
	assert.Same(t, claims, gotClaims)
}
