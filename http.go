package auth

import (
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-storeauth/middleware/jwtware"
	"github.com/goliatone/go-storeauth/middleware/ratelimit"
)

// RefreshTokenHeader is the explicit header carrier of the refresh token.
const RefreshTokenHeader = "X-Refresh-Token"

// RouteAuthenticator is the HTTP side of the service: cookies, gate
// middleware and error rendering.
type RouteAuthenticator struct {
	service      *Service
	opts         Options
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewHTTPAuthenticator(service *Service) *RouteAuthenticator {
	a := &RouteAuthenticator{
		service: service,
		opts:    service.Options(),
		Logger:  service.logger,
	}
	a.ErrorHandler = a.defaultErrHandler
	return a
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

// ProtectedRoute extracts the access token, authenticates it through the gate
// and attaches the identity to the request.
func (a *RouteAuthenticator) ProtectedRoute() router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ErrorHandler:      a.ErrorHandler,
		Authenticator:     jwtware.AuthenticatorFunc(a.authenticate),
		TokenLookup:       a.opts.TokenLookup,
		AuthScheme:        a.opts.AuthScheme,
		MissingTokenError: newError(ErrUnauthenticated, "missing access token"),
	})
}

func (a *RouteAuthenticator) authenticate(ctx router.Context, raw string) error {
	user, claims, err := a.service.Gate().Authenticate(ctx.Context(), raw)
	if err != nil {
		return err
	}
	attachIdentity(ctx, a.opts.ContextKey, user, claims)
	return nil
}

// RequireRole fails with ErrForbidden unless the attached identity holds one of allowed.
// It must run after ProtectedRoute.
func (a *RouteAuthenticator) RequireRole(allowed ...UserRole) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			user, ok := GetRouterUser(ctx, a.opts.ContextKey)
			if !ok {
				return a.ErrorHandler(ctx, newError(ErrUnauthenticated, "no identity attached to request"))
			}
			if err := CheckRole(user, allowed...); err != nil {
				return a.ErrorHandler(ctx, err)
			}
			return hf(ctx)
		}
	}
}

// CurrentUser returns the identity attached by ProtectedRoute.
func (a *RouteAuthenticator) CurrentUser(ctx router.Context) (*User, error) {
	user, ok := GetRouterUser(ctx, a.opts.ContextKey)
	if !ok {
		return nil, newError(ErrUnauthenticated, "no identity attached to request")
	}
	return user, nil
}

// RefreshTokenFrom reads the refresh token from the body value, the
// X-Refresh-Token header or the refresh cookie, in that order.
func (a *RouteAuthenticator) RefreshTokenFrom(ctx router.Context, bodyValue string) string {
	if bodyValue != "" {
		return bodyValue
	}
	if h := ctx.Header(RefreshTokenHeader); h != "" {
		return h
	}
	return ctx.Cookies(a.opts.RefreshCookie)
}

func (a *RouteAuthenticator) setTokenCookies(c router.Context, pair *TokenPair) {
	if pair == nil {
		return
	}
	accessTTL, refreshTTL := pair.CookieLifetimes()
	a.setCookieToken(c, a.opts.AccessCookie, pair.AccessToken, accessTTL)
	a.setCookieToken(c, a.opts.RefreshCookie, pair.RefreshToken, refreshTTL)
}

func (a *RouteAuthenticator) clearTokenCookies(c router.Context) {
	a.cookieDel(c, a.opts.AccessCookie)
	a.cookieDel(c, a.opts.RefreshCookie)
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, name, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   a.opts.CookieSecure,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.opts.CookieSecure,
		SameSite: "Lax",
	})
}

// RequestMetaFrom collects the client attributes recorded in audit entries.
func RequestMetaFrom(c router.Context) RequestMeta {
	return RequestMeta{IP: ratelimit.ClientIP(c), UserAgent: c.Header("User-Agent")}
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Validation any    `json:"validation,omitempty"`
}

// StatusFromError maps err to a rich error and the HTTP status of its category.
func StatusFromError(err error) (int, *errors.Error) {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	switch richErr.Category {
	case errors.CategoryBadInput, errors.CategoryValidation:
		return http.StatusBadRequest, richErr
	case errors.CategoryAuth:
		return http.StatusUnauthorized, richErr
	case errors.CategoryAuthz:
		return http.StatusForbidden, richErr
	case errors.CategoryNotFound:
		return http.StatusNotFound, richErr
	case errors.CategoryConflict:
		return http.StatusConflict, richErr
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests, richErr
	default:
		return http.StatusInternalServerError, richErr
	}
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	status, richErr := StatusFromError(err)

	log := a.Logger.Info
	if status >= http.StatusInternalServerError {
		log = a.Logger.Error
	}
	log(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	body := ErrorBody{Code: richErr.TextCode, Message: richErr.Message}
	if body.Code == "" {
		body.Code = http.StatusText(status)
	}
	if status >= http.StatusInternalServerError {
		body.Message = "An unexpected server error occurred"
	}
	if v, ok := richErr.Metadata["validation"]; ok {
		body.Validation = v
	}
	return c.Status(status).JSON(status, ErrorResponse{Error: body})
}
