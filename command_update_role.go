package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// UpdateUserRoleMessage changes the role of TargetID on behalf of ActorID.
type UpdateUserRoleMessage struct {
	ActorID  string      `json:"-"`
	TargetID string      `json:"-"`
	Role     string      `json:"role"`
	Meta     RequestMeta `json:"-"`
}

func (e UpdateUserRoleMessage) Type() string { return "user.role.update" }

// UpdateUserRoleHandler enforces the single owner rule on role changes.
type UpdateUserRoleHandler struct {
	users    CredentialStore
	audit    *AuditLogger
	activity ActivitySink
	logger   Logger
}

// NewUpdateUserRoleHandler creates a handler with sane defaults.
func NewUpdateUserRoleHandler(users CredentialStore, audit *AuditLogger) *UpdateUserRoleHandler {
	return &UpdateUserRoleHandler{
		users:    users,
		audit:    audit,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit role change events.
func (h *UpdateUserRoleHandler) WithActivitySink(sink ActivitySink) *UpdateUserRoleHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *UpdateUserRoleHandler) WithLogger(logger Logger) *UpdateUserRoleHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdateUserRoleHandler) Execute(ctx context.Context, event UpdateUserRoleMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during role update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateUserRoleHandler) execute(ctx context.Context, event UpdateUserRoleMessage) (*User, error) {
	role, ok := ParseRole(event.Role)
	if !ok {
		return nil, newError(ErrInvalidInput, "unknown role", map[string]any{"role": event.Role})
	}

	actor, err := requireOwner(ctx, h.users, event.ActorID)
	if err != nil {
		return nil, err
	}

	target, err := h.users.FindByID(ctx, event.TargetID)
	if err != nil {
		if HasTextCode(err, TextCodeNotFound) {
			return nil, newError(ErrNotFound, "user not found", map[string]any{"user_id": event.TargetID})
		}
		return nil, asRichError(err, "could not retrieve user")
	}

	// compare parsed ids, any spelling of the actor's own id is self
	if target.ID == actor.ID {
		return nil, newError(ErrForbidden, "owner cannot change their own role")
	}

	if target.Role == role {
		return target, nil
	}

	if role == RoleOwner {
		owners, err := h.users.CountByRole(ctx, RoleOwner)
		if err != nil {
			return nil, asRichError(err, "could not count owners")
		}
		if owners > 0 {
			return nil, newError(ErrConflict, "an owner already exists")
		}
	}

	from := target.Role
	var updated *User
	if role == RoleOwner {
		updated, err = h.users.AssignOwner(ctx, target.ID.String())
	} else {
		updated, err = h.users.UpdateByID(ctx, target.ID.String(), UserPatch{Role: &role})
	}
	if err != nil {
		switch {
		case HasTextCode(err, TextCodeConflict):
			return nil, newError(ErrConflict, "an owner already exists")
		case HasTextCode(err, TextCodeNotFound):
			return nil, newError(ErrNotFound, "user not found", map[string]any{"user_id": event.TargetID})
		}
		return nil, asRichError(err, "failed to update user role")
	}

	h.audit.Record(ctx, AuditLogEntry{
		Action:      AuditRoleChanged,
		PerformedBy: actor.ID.String(),
		TargetUser:  target.ID.String(),
		Details: map[string]any{
			"from": string(from),
			"to":   string(role),
		},
		IPAddress: event.Meta.IP,
		UserAgent: event.Meta.UserAgent,
	})

	emitActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventRoleChanged,
		Actor:     ActorRef{ID: actor.ID.String(), Type: "user"},
		UserID:    target.ID.String(),
		Metadata: map[string]any{
			"from": string(from),
			"to":   string(role),
		},
	})

	return updated, nil
}
