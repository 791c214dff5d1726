package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// RequestPasswordResetMessage is filed by an operator who lost their password.
type RequestPasswordResetMessage struct {
	Name string `json:"name"`
}

func (e RequestPasswordResetMessage) Type() string { return "password_reset.request" }

// RequestPasswordResetHandler creates pending reset requests for operators.
type RequestPasswordResetHandler struct {
	users    CredentialStore
	resets   ResetStore
	activity ActivitySink
	logger   Logger
	now      Clock
}

// NewRequestPasswordResetHandler creates a handler with sane defaults.
func NewRequestPasswordResetHandler(users CredentialStore, resets ResetStore) *RequestPasswordResetHandler {
	return &RequestPasswordResetHandler{
		users:    users,
		resets:   resets,
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *RequestPasswordResetHandler) WithActivitySink(sink ActivitySink) *RequestPasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RequestPasswordResetHandler) WithLogger(logger Logger) *RequestPasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock overrides the time source.
func (h *RequestPasswordResetHandler) WithClock(clock Clock) *RequestPasswordResetHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

func (h *RequestPasswordResetHandler) Execute(ctx context.Context, event RequestPasswordResetMessage) (*PasswordResetRequest, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestPasswordResetHandler) execute(ctx context.Context, event RequestPasswordResetMessage) (*PasswordResetRequest, error) {
	if event.Name == "" {
		return nil, newError(ErrInvalidInput, "name is required")
	}

	user, err := h.users.FindByName(ctx, event.Name)
	if err != nil {
		if HasTextCode(err, TextCodeNotFound) {
			return nil, newError(ErrNotFound, "user not found", map[string]any{"name": event.Name})
		}
		return nil, asRichError(err, "could not retrieve user")
	}

	if user.Role != RoleOperator {
		return nil, newError(ErrForbidden, "only operators can request a password reset")
	}

	pending, err := h.resets.HasPending(ctx, user.ID)
	if err != nil {
		return nil, asRichError(err, "could not check pending password resets")
	}
	if pending {
		return nil, newError(ErrConflict, "a password reset request is already pending", map[string]any{
			"user_id": user.ID.String(),
		})
	}

	req := &PasswordResetRequest{
		ID:          uuid.New(),
		UserID:      user.ID,
		RequestedBy: user.Username,
		Status:      ResetPending,
		RequestedAt: h.now().UTC(),
	}

	if err := h.resets.CreatePending(ctx, req); err != nil {
		return nil, asRichError(err, "could not create password reset request")
	}

	h.logger.Info("password reset requested, owner approval required",
		"request_id", req.ID.String(),
		"operator", user.Username,
	)

	emitActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetRequest,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"password_reset_id": req.ID.String(),
		},
	})

	return req, nil
}
