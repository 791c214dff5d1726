package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// DeleteUserMessage soft deletes TargetID on behalf of ActorID.
type DeleteUserMessage struct {
	ActorID  string
	TargetID string
	Meta     RequestMeta
}

func (e DeleteUserMessage) Type() string { return "user.delete" }

// DeleteUserHandler soft deletes accounts. The owner account is never deleted.
type DeleteUserHandler struct {
	users    CredentialStore
	audit    *AuditLogger
	activity ActivitySink
	logger   Logger
}

// NewDeleteUserHandler creates a handler with sane defaults.
func NewDeleteUserHandler(users CredentialStore, audit *AuditLogger) *DeleteUserHandler {
	return &DeleteUserHandler{
		users:    users,
		audit:    audit,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit deletion events.
func (h *DeleteUserHandler) WithActivitySink(sink ActivitySink) *DeleteUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *DeleteUserHandler) WithLogger(logger Logger) *DeleteUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *DeleteUserHandler) Execute(ctx context.Context, event DeleteUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user deletion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeleteUserHandler) execute(ctx context.Context, event DeleteUserMessage) error {
	actor, err := requireOwner(ctx, h.users, event.ActorID)
	if err != nil {
		return err
	}

	target, err := h.users.FindByID(ctx, event.TargetID)
	if err != nil {
		if HasTextCode(err, TextCodeNotFound) {
			return newError(ErrNotFound, "user not found", map[string]any{"user_id": event.TargetID})
		}
		return asRichError(err, "could not retrieve user")
	}

	// compare parsed ids, any spelling of the actor's own id is self
	if target.ID == actor.ID {
		return newError(ErrForbidden, "cannot delete self")
	}

	if target.Role == RoleOwner {
		return newError(ErrForbidden, "the owner account cannot be deleted")
	}

	if err := h.users.SoftDelete(ctx, target.ID.String()); err != nil {
		return asRichError(err, "failed to delete user")
	}

	h.audit.Record(ctx, AuditLogEntry{
		Action:      AuditUserDeleted,
		PerformedBy: actor.ID.String(),
		TargetUser:  target.ID.String(),
		Details: map[string]any{
			"name": target.Username,
			"role": string(target.Role),
		},
		IPAddress: event.Meta.IP,
		UserAgent: event.Meta.UserAgent,
	})

	emitActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventUserDeleted,
		Actor:     ActorRef{ID: actor.ID.String(), Type: "user"},
		UserID:    target.ID.String(),
	})

	return nil
}
