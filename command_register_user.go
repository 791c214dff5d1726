package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

type RegisterUserMessage struct {
	Name      string      `json:"name"`
	Password  string      `json:"password"`
	Profile   Profile     `json:"profile"`
	Region    string      `json:"region,omitempty"`
	UseHashid bool        `json:"-"`
	Meta      RequestMeta `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate will run validation rules
func (e RegisterUserMessage) Validate(minPassword int) *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&e,
			validation.Field(&e.Name, validation.Required, validation.Length(1, 64), untrimmed),
			validation.Field(&e.Password, validation.Required, validation.Length(minPassword, 128)),
		)
	}, "invalid registration payload")
}

// untrimmed rejects names with surrounding whitespace. Names match exactly
// on lookup, so " shopA" would otherwise become a second account.
var untrimmed = validation.NewStringRule(func(name string) bool {
	return name == strings.TrimSpace(name)
}, "must not start or end with whitespace")

// RegisterUserHandler creates viewer accounts.
type RegisterUserHandler struct {
	users       CredentialStore
	hasher      PasswordHasher
	audit       *AuditLogger
	logger      Logger
	minPassword int
}

// NewRegisterUserHandler creates a handler with sane defaults.
func NewRegisterUserHandler(users CredentialStore, hasher PasswordHasher, audit *AuditLogger) *RegisterUserHandler {
	return &RegisterUserHandler{
		users:       users,
		hasher:      hasher,
		audit:       audit,
		logger:      defLogger{},
		minPassword: DefaultMinPasswordLength,
	}
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

// WithMinPasswordLength overrides the minimum accepted password length.
func (h *RegisterUserHandler) WithMinPasswordLength(n int) *RegisterUserHandler {
	if n > 0 {
		h.minPassword = n
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	if err := event.Validate(h.minPassword); err != nil {
		return nil, invalidPayload(err)
	}

	profile, err := NormalizeProfile(event.Profile, event.Region)
	if err != nil {
		return nil, err
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		return nil, asRichError(err, "failed to hash password")
	}

	now := time.Now().UTC()
	user := &User{
		ID:           uuid.New(),
		Username:     event.Name,
		PasswordHash: hash,
		Role:         RoleViewer,
		Profile:      profile,
		LoggedInAt:   &now,
	}
	if event.UseHashid {
		if id, err := hashid.NewUUID(event.Name); err == nil {
			user.ID = id
		}
	}

	created, err := h.users.Create(ctx, user)
	if err != nil {
		return nil, asRichError(err, "could not create user")
	}

	h.audit.Record(ctx, AuditLogEntry{
		Action:      AuditUserCreated,
		PerformedBy: created.ID.String(),
		TargetUser:  created.ID.String(),
		Details: map[string]any{
			"name": created.Username,
			"role": string(created.Role),
		},
		IPAddress: event.Meta.IP,
		UserAgent: event.Meta.UserAgent,
	})

	return created, nil
}
