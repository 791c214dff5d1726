package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ApprovePasswordResetMessage is the owner's decision on a pending request.
type ApprovePasswordResetMessage struct {
	RequestID string      `json:"request_id"`
	Password  string      `json:"password"`
	OwnerID   string      `json:"-"`
	Meta      RequestMeta `json:"-"`
}

func (e ApprovePasswordResetMessage) Type() string { return "password_reset.approve" }

// ApprovePasswordResetHandler lets the owner set a new password for an operator.
type ApprovePasswordResetHandler struct {
	users       CredentialStore
	resets      ResetStore
	tx          Transactor
	hasher      PasswordHasher
	audit       *AuditLogger
	activity    ActivitySink
	logger      Logger
	now         Clock
	minPassword int
}

// NewApprovePasswordResetHandler creates a handler with sane defaults.
func NewApprovePasswordResetHandler(users CredentialStore, resets ResetStore, hasher PasswordHasher, audit *AuditLogger) *ApprovePasswordResetHandler {
	return &ApprovePasswordResetHandler{
		users:       users,
		resets:      resets,
		tx:          noopTransactor{},
		hasher:      hasher,
		audit:       audit,
		activity:    noopActivitySink{},
		logger:      defLogger{},
		now:         time.Now,
		minPassword: DefaultMinPasswordLength,
	}
}

// WithTransactor runs the password write and the status transition in one transaction.
func (h *ApprovePasswordResetHandler) WithTransactor(tx Transactor) *ApprovePasswordResetHandler {
	if tx != nil {
		h.tx = tx
	}
	return h
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *ApprovePasswordResetHandler) WithActivitySink(sink ActivitySink) *ApprovePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ApprovePasswordResetHandler) WithLogger(logger Logger) *ApprovePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithClock overrides the time source.
func (h *ApprovePasswordResetHandler) WithClock(clock Clock) *ApprovePasswordResetHandler {
	if clock != nil {
		h.now = clock
	}
	return h
}

// WithMinPasswordLength overrides the minimum accepted password length.
func (h *ApprovePasswordResetHandler) WithMinPasswordLength(n int) *ApprovePasswordResetHandler {
	if n > 0 {
		h.minPassword = n
	}
	return h
}

func (h *ApprovePasswordResetHandler) Execute(ctx context.Context, event ApprovePasswordResetMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset approval",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ApprovePasswordResetHandler) execute(ctx context.Context, event ApprovePasswordResetMessage) (*User, error) {
	if len(event.Password) < h.minPassword {
		return nil, newError(ErrInvalidInput, "password is too short", map[string]any{
			"min_length": h.minPassword,
		})
	}

	requestID, err := uuid.Parse(event.RequestID)
	if err != nil {
		return nil, newError(ErrNotFound, "password reset request not found")
	}

	reset, err := h.resets.FindByID(ctx, requestID)
	if err != nil {
		if HasTextCode(err, TextCodeNotFound) {
			return nil, newError(ErrNotFound, "password reset request not found")
		}
		return nil, asRichError(err, "could not retrieve password reset request")
	}

	if reset.Status != ResetPending {
		return nil, newError(ErrConflict, "password reset request is not pending", map[string]any{
			"status": string(reset.Status),
		})
	}

	target, err := h.users.FindByID(ctx, reset.UserID.String())
	if err != nil {
		if HasTextCode(err, TextCodeNotFound) {
			return nil, newError(ErrNotFound, "password reset target not found")
		}
		return nil, asRichError(err, "could not retrieve password reset target")
	}
	if target.Role != RoleOperator {
		return nil, newError(ErrNotFound, "password reset target is no longer an operator")
	}

	owner, err := requireOwner(ctx, h.users, event.OwnerID)
	if err != nil {
		return nil, err
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		return nil, asRichError(err, "failed to hash password")
	}

	var updated *User
	completedAt := h.now().UTC()

	// password first, then the conditional status transition; losing the
	// transition rolls the password back
	err = h.tx.RunInTx(ctx, func(ctx context.Context) error {
		user, err := h.users.UpdateByID(ctx, target.ID.String(), UserPatch{PasswordHash: &hash})
		if err != nil {
			return asRichError(err, "failed to update user password")
		}
		updated = user

		completed, err := h.resets.Complete(ctx, reset.ID, owner.ID, completedAt)
		if err != nil {
			return asRichError(err, "failed to update password reset status")
		}
		if !completed {
			return newError(ErrConflict, "password reset request is not pending")
		}
		return nil
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to approve password reset")
	}

	h.audit.Record(ctx, AuditLogEntry{
		Action:      AuditPasswordReset,
		PerformedBy: owner.ID.String(),
		TargetUser:  target.ID.String(),
		Details: map[string]any{
			"password_reset_id": reset.ID.String(),
			"requested_by_name": reset.RequestedBy,
		},
		IPAddress: event.Meta.IP,
		UserAgent: event.Meta.UserAgent,
	})

	emitActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		Actor:     ActorRef{ID: owner.ID.String(), Type: "user"},
		UserID:    target.ID.String(),
		Metadata: map[string]any{
			"password_reset_id": reset.ID.String(),
		},
	})

	return updated, nil
}
