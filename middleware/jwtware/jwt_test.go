package jwtware_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-storeauth/middleware/jwtware"
)

type fakeContext struct {
	router.Context
	headers map[string]string
	cookies map[string]string
	query   map[string]string
	params  map[string]string
	locals  map[any]any
	ctx     context.Context
	status  int
	body    string
}

func newFakeContext() *fakeContext {
	return &fakeContext{
		headers: map[string]string{},
		cookies: map[string]string{},
		query:   map[string]string{},
		params:  map[string]string{},
		locals:  map[any]any{},
		ctx:     context.Background(),
	}
}

func (f *fakeContext) Header(key string) string { return f.headers[key] }

func (f *fakeContext) Cookies(key string, defaultValue ...string) string {
	if v, ok := f.cookies[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (f *fakeContext) Query(key, defaultValue string) string {
	if v, ok := f.query[key]; ok {
		return v
	}
	return defaultValue
}

func (f *fakeContext) Param(key string, defaultValue ...string) string {
	if v, ok := f.params[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (f *fakeContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		f.locals[key] = value[0]
		return value[0]
	}
	return f.locals[key]
}

func (f *fakeContext) Context() context.Context      { return f.ctx }
func (f *fakeContext) SetContext(ctx context.Context) { f.ctx = ctx }

func (f *fakeContext) Status(code int) router.Context {
	f.status = code
	return f
}

func (f *fakeContext) SendString(s string) error {
	f.body = s
	return nil
}

type recordingAuthenticator struct {
	seen []string
	err  error
}

func (r *recordingAuthenticator) Authenticate(ctx router.Context, raw string) error {
	r.seen = append(r.seen, raw)
	if r.err != nil {
		return r.err
	}
	ctx.Locals("user", raw)
	return nil
}

func run(t *testing.T, cfg jwtware.Config, ctx *fakeContext) (bool, error) {
	t.Helper()
	called := false
	handler := jwtware.New(cfg)(func(c router.Context) error {
		called = true
		return nil
	})
	return called, handler(ctx)
}

func passthroughErrors(c router.Context, err error) error { return err }

func TestJWTWare_BasicHeaderExtraction(t *testing.T) {
	authn := &recordingAuthenticator{}
	cfg := jwtware.Config{
		Authenticator: authn,
		ErrorHandler:  passthroughErrors,
	}

	ctx := newFakeContext()
	ctx.headers["Authorization"] = "Bearer abc.def.ghi"

	called, err := run(t, cfg, ctx)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, []string{"abc.def.ghi"}, authn.seen)
	assert.Equal(t, "abc.def.ghi", ctx.locals["user"])
}

func TestJWTWare_MissingToken(t *testing.T) {
	missing := errors.New("missing access token")
	authn := &recordingAuthenticator{}
	cfg := jwtware.Config{
		Authenticator:     authn,
		ErrorHandler:      passthroughErrors,
		MissingTokenError: missing,
	}

	called, err := run(t, cfg, newFakeContext())
	assert.ErrorIs(t, err, missing)
	assert.False(t, called)
	assert.Empty(t, authn.seen)
}

func TestJWTWare_WrongSchemeIsMissing(t *testing.T) {
	authn := &recordingAuthenticator{}
	cfg := jwtware.Config{Authenticator: authn, ErrorHandler: passthroughErrors}

	ctx := newFakeContext()
	ctx.headers["Authorization"] = "Basic dXNlcjpwYXNz"

	called, err := run(t, cfg, ctx)
	assert.ErrorIs(t, err, jwtware.ErrJWTMissingOrMalformed)
	assert.False(t, called)
}

func TestJWTWare_CookieFallback(t *testing.T) {
	authn := &recordingAuthenticator{}
	cfg := jwtware.Config{
		Authenticator: authn,
		ErrorHandler:  passthroughErrors,
		TokenLookup:   "header:Authorization,cookie:access_token",
	}

	ctx := newFakeContext()
	ctx.cookies["access_token"] = "from-cookie"

	called, err := run(t, cfg, ctx)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, []string{"from-cookie"}, authn.seen)
}

func TestJWTWare_HeaderWinsOverCookie(t *testing.T) {
	authn := &recordingAuthenticator{}
	cfg := jwtware.Config{
		Authenticator: authn,
		ErrorHandler:  passthroughErrors,
		TokenLookup:   "header:Authorization,cookie:access_token",
	}

	ctx := newFakeContext()
	ctx.headers["Authorization"] = "bearer from-header"
	ctx.cookies["access_token"] = "from-cookie"

	_, err := run(t, cfg, ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"from-header"}, authn.seen)
}

func TestJWTWare_QueryAndParamExtraction(t *testing.T) {
	authn := &recordingAuthenticator{}
	cfg := jwtware.Config{
		Authenticator: authn,
		ErrorHandler:  passthroughErrors,
		TokenLookup:   "query:token,param:tok",
	}

	ctx := newFakeContext()
	ctx.params["tok"] = "from-param"
	_, err := run(t, cfg, ctx)
	require.NoError(t, err)

	ctx = newFakeContext()
	ctx.query["token"] = "from-query"
	_, err = run(t, cfg, ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"from-param", "from-query"}, authn.seen)
}

func TestJWTWare_AuthenticatorErrorIsHandled(t *testing.T) {
	rejected := errors.New("token is expired")
	cfg := jwtware.Config{
		Authenticator: &recordingAuthenticator{err: rejected},
		ErrorHandler:  passthroughErrors,
	}

	ctx := newFakeContext()
	ctx.headers["Authorization"] = "Bearer expired"

	called, err := run(t, cfg, ctx)
	assert.ErrorIs(t, err, rejected)
	assert.False(t, called)
}

func TestJWTWare_DefaultErrorHandler(t *testing.T) {
	cfg := jwtware.Config{Authenticator: &recordingAuthenticator{err: errors.New("bad")}}

	ctx := newFakeContext()
	_, err := run(t, cfg, ctx)
	require.NoError(t, err)
	assert.Equal(t, router.StatusBadRequest, ctx.status)

	ctx = newFakeContext()
	ctx.headers["Authorization"] = "Bearer nope"
	_, err = run(t, cfg, ctx)
	require.NoError(t, err)
	assert.Equal(t, router.StatusUnauthorized, ctx.status)
	assert.Equal(t, "Invalid or expired token", ctx.body)
}

func TestJWTWare_FilterSkips(t *testing.T) {
	authn := &recordingAuthenticator{}
	cfg := jwtware.Config{
		Authenticator: authn,
		ErrorHandler:  passthroughErrors,
		Filter:        func(router.Context) bool { return true },
	}

	called, err := run(t, cfg, newFakeContext())
	require.NoError(t, err)
	assert.True(t, called)
	assert.Empty(t, authn.seen)
}

func TestJWTWare_ValidationListenerCanReject(t *testing.T) {
	denied := errors.New("denied")
	cfg := jwtware.Config{
		Authenticator: &recordingAuthenticator{},
		ErrorHandler:  passthroughErrors,
		ValidationListeners: []jwtware.ValidationListener{
			nil,
			func(router.Context) error { return denied },
		},
	}

	ctx := newFakeContext()
	ctx.headers["Authorization"] = "Bearer ok"

	called, err := run(t, cfg, ctx)
	assert.ErrorIs(t, err, denied)
	assert.False(t, called)
}

func TestJWTWare_RequiresAuthenticator(t *testing.T) {
	assert.Panics(t, func() {
		jwtware.New(jwtware.Config{})
	})
}

func TestGetExtractorsIgnoresMalformedParts(t *testing.T) {
	extractors := jwtware.GetExtractors("header:Authorization, bogus ,cookie:jwt,unknown:x")
	assert.Len(t, extractors, 2)
}
