package auth

import (
	"net/http"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidInput       = "INVALID_INPUT"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeUnauthenticated    = "UNAUTHENTICATED"
	TextCodeMissingToken       = "MISSING_TOKEN"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenInvalid       = "TOKEN_INVALID"
	TextCodeTokenReused        = "TOKEN_REUSED"
	TextCodeWrongTokenKind     = "WRONG_TOKEN_KIND"
	TextCodeForbidden          = "FORBIDDEN"
	TextCodeNotFound           = "NOT_FOUND"
	TextCodeConflict           = "CONFLICT"
	TextCodeRateLimited        = "RATE_LIMITED"
)

// ErrInvalidInput is returned for malformed or missing request fields.
var ErrInvalidInput = errors.New("invalid input", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidInput).
	WithCode(errors.CodeBadRequest)

// ErrInvalidCredentials is returned when a name and password pair does not match.
// Unknown names and wrong passwords are reported the same way.
var ErrInvalidCredentials = errors.New("invalid name or password", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeBadRequest)

// ErrUnauthenticated is returned when the request carries no usable identity.
var ErrUnauthenticated = errors.New("authentication required", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrMissingToken is returned when no bearer token was presented.
var ErrMissingToken = errors.New("missing token", errors.CategoryAuth).
	WithTextCode(TextCodeMissingToken).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired signals the client it may attempt a refresh.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenInvalid covers bad signatures, malformed tokens and claim mismatches.
var ErrTokenInvalid = errors.New("token is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrTokenReused is returned when a retired refresh token is presented again.
var ErrTokenReused = errors.New("refresh token has already been used", errors.CategoryAuth).
	WithTextCode(TextCodeTokenReused).
	WithCode(errors.CodeUnauthorized)

// ErrWrongTokenKind is returned when an access token is used as a refresh token or the reverse.
var ErrWrongTokenKind = errors.New("wrong token kind", errors.CategoryAuth).
	WithTextCode(TextCodeWrongTokenKind).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is returned for insufficient roles and business rule violations.
var ErrForbidden = errors.New("forbidden", errors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrNotFound is returned when a referenced identity or request does not exist.
var ErrNotFound = errors.New("not found", errors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(errors.CodeNotFound)

// ErrConflict is returned for duplicate pending requests and role invariant violations.
var ErrConflict = errors.New("conflict", errors.CategoryConflict).
	WithTextCode(TextCodeConflict).
	WithCode(errors.CodeConflict)

// ErrRateLimited is returned when a client exceeds its request budget.
var ErrRateLimited = errors.New("too many requests", errors.CategoryRateLimit).
	WithTextCode(TextCodeRateLimited).
	WithCode(http.StatusTooManyRequests)

// newError clones a sentinel with a specific message and optional metadata.
func newError(base *errors.Error, message string, meta ...map[string]any) *errors.Error {
	clone := base.Clone()
	if message != "" {
		clone.Message = message
	}
	for _, m := range meta {
		if len(m) > 0 {
			clone.WithMetadata(m)
		}
	}
	return clone
}

// invalidPayload converts an ozzo validation failure into ErrInvalidInput.
func invalidPayload(err *errors.Error) error {
	return newError(ErrInvalidInput, err.Message, map[string]any{
		"validation": err.ValidationMap(),
	})
}

// HasTextCode reports whether err is a rich error carrying the given text code.
func HasTextCode(err error, code string) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// IsTokenExpiredError reports whether err signals an expired token.
func IsTokenExpiredError(err error) bool {
	return HasTextCode(err, TextCodeTokenExpired)
}

// IsUnauthenticated reports whether err belongs to the authentication category,
// including the token reuse and token kind specializations.
func IsUnauthenticated(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.Category == errors.CategoryAuth
}

// asRichError returns err untouched when it is already rich, otherwise wraps it.
func asRichError(err error, message string) error {
	if err == nil {
		return nil
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr
	}
	return errors.Wrap(err, errors.CategoryInternal, message)
}
