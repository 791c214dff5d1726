package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// ChangePasswordMessage replaces a user's own password.
type ChangePasswordMessage struct {
	UserID          string      `json:"-"`
	CurrentPassword string      `json:"current_password"`
	NewPassword     string      `json:"new_password"`
	Meta            RequestMeta `json:"-"`
}

func (e ChangePasswordMessage) Type() string { return "user.password.change" }

// ChangePasswordHandler verifies the current password before writing a new one.
type ChangePasswordHandler struct {
	users       CredentialStore
	hasher      PasswordHasher
	audit       *AuditLogger
	minPassword int
}

// NewChangePasswordHandler creates a handler with sane defaults.
func NewChangePasswordHandler(users CredentialStore, hasher PasswordHasher, audit *AuditLogger) *ChangePasswordHandler {
	return &ChangePasswordHandler{
		users:       users,
		hasher:      hasher,
		audit:       audit,
		minPassword: DefaultMinPasswordLength,
	}
}

// WithMinPasswordLength overrides the minimum accepted password length.
func (h *ChangePasswordHandler) WithMinPasswordLength(n int) *ChangePasswordHandler {
	if n > 0 {
		h.minPassword = n
	}
	return h
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	if len(event.NewPassword) < h.minPassword {
		return newError(ErrInvalidInput, "password is too short", map[string]any{
			"min_length": h.minPassword,
		})
	}

	user, err := h.users.FindByID(ctx, event.UserID)
	if err != nil {
		if HasTextCode(err, TextCodeNotFound) {
			return newError(ErrNotFound, "user not found")
		}
		return asRichError(err, "could not retrieve user")
	}

	if err := h.hasher.ComparePasswordAndHash(event.CurrentPassword, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := h.hasher.HashPassword(event.NewPassword)
	if err != nil {
		return asRichError(err, "failed to hash password")
	}

	if _, err := h.users.UpdateByID(ctx, user.ID.String(), UserPatch{PasswordHash: &hash}); err != nil {
		return asRichError(err, "failed to update user password")
	}

	h.audit.Record(ctx, AuditLogEntry{
		Action:      AuditPasswordChanged,
		PerformedBy: user.ID.String(),
		TargetUser:  user.ID.String(),
		IPAddress:   event.Meta.IP,
		UserAgent:   event.Meta.UserAgent,
	})

	return nil
}
