package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logger is the logging surface used across the package.
// Arguments are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Identity holds the attributes of an identity
type Identity interface {
	ID() string
	Username() string
	Role() UserRole
}

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// CredentialStore holds user identities.
type CredentialStore interface {
	FindByName(ctx context.Context, name string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	UpdateByID(ctx context.Context, id string, patch UserPatch) (*User, error)
	// AssignOwner promotes id in a single conditional write and fails with
	// ErrConflict when another live owner exists.
	AssignOwner(ctx context.Context, id string) (*User, error)
	CountByRole(ctx context.Context, role UserRole) (int, error)
	SoftDelete(ctx context.Context, id string) error
}

// ResetStore persists password reset requests.
type ResetStore interface {
	// CreatePending fails with ErrConflict when the user already has a pending request.
	CreatePending(ctx context.Context, req *PasswordResetRequest) error
	HasPending(ctx context.Context, userID uuid.UUID) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*PasswordResetRequest, error)
	// ListPending returns pending requests newest first.
	ListPending(ctx context.Context) ([]*PasswordResetRequest, error)
	// Complete moves a pending request to completed and reports whether it
	// was still pending. It never touches requests in any other status.
	Complete(ctx context.Context, id, ownerID uuid.UUID, at time.Time) (bool, error)
}

// Transactor runs fn in a transaction carried by ctx. Stores that share the
// transactor pick the transaction up from ctx.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type noopTransactor struct{}

func (noopTransactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// UserPatch lists the fields an update may touch. Nil fields are left as is.
type UserPatch struct {
	PasswordHash *string
	Role         *UserRole
	Profile      *Profile
	LoggedInAt   *time.Time
}

// Clock returns the current time.
type Clock func() time.Time

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] AUTH " + line(msg, args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] AUTH " + line(msg, args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] AUTH " + line(msg, args))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] AUTH " + line(msg, args))
}

func line(msg string, args []any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	b.WriteString("\n")
	return b.String()
}

func resolveLogger(logger Logger) Logger {
	if logger == nil {
		return defLogger{}
	}
	return logger
}
