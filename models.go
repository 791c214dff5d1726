package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Profile holds the free-form account fields
type Profile struct {
	DisplayName string `bun:"display_name" json:"display_name,omitempty"`
	Email       string `bun:"email" json:"email,omitempty"`
	Phone       string `bun:"phone_number" json:"phone_number,omitempty"`
	ShopName    string `bun:"shop_name" json:"shop_name,omitempty"`
}

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Role          UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	Profile       Profile    `bun:"embed:profile_" json:"profile"`
	LoggedInAt    *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Revocation reasons
const (
	RevokedByRotation = "rotation"
	RevokedByLogout   = "logout"
)

// RevokedToken is a retired refresh token. Rows are never updated.
type RevokedToken struct {
	bun.BaseModel `bun:"table:revoked_tokens,alias:rvk"`
	Token         string    `bun:"token,pk" json:"-"`
	UserID        string    `bun:"user_id" json:"user_id,omitempty"`
	Reason        string    `bun:"reason,notnull" json:"reason"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at"`
	RevokedAt     time.Time `bun:"revoked_at,notnull" json:"revoked_at"`
}

// ResetStatus is the state of a password reset request
type ResetStatus string

const (
	// ResetPending waits for the owner
	ResetPending ResetStatus = "pending"
	// ResetCompleted has been approved and the password changed
	ResetCompleted ResetStatus = "completed"
	// ResetCancelled is reserved
	ResetCancelled ResetStatus = "cancelled"
)

// PasswordResetRequest is an operator's request for the owner to set a new password.
type PasswordResetRequest struct {
	bun.BaseModel `bun:"table:password_reset_requests,alias:pwdr"`
	ID            uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id"`
	UserID        uuid.UUID   `bun:"user_id,notnull,type:uuid" json:"user_id"`
	RequestedBy   string      `bun:"requested_by_name,notnull" json:"requested_by_name"`
	Status        ResetStatus `bun:"status,notnull" json:"status"`
	RequestedAt   time.Time   `bun:"requested_at,notnull" json:"requested_at"`
	CompletedAt   *time.Time  `bun:"completed_at,nullzero" json:"completed_at,omitempty"`
	CompletedBy   *uuid.UUID  `bun:"completed_by_owner_id,nullzero,type:uuid" json:"completed_by_owner_id,omitempty"`
}

// AuditAction is the closed set of audited actions
type AuditAction string

const (
	AuditPasswordReset   AuditAction = "password_reset"
	AuditPasswordChanged AuditAction = "password_changed"
	AuditRoleChanged     AuditAction = "role_changed"
	AuditUserDeleted     AuditAction = "user_deleted"
	AuditUserCreated     AuditAction = "user_created"
)

// IsValid reports whether the action belongs to the closed set.
func (a AuditAction) IsValid() bool {
	switch a {
	case AuditPasswordReset, AuditPasswordChanged, AuditRoleChanged, AuditUserDeleted, AuditUserCreated:
		return true
	default:
		return false
	}
}

// AuditLogEntry records a privileged state change. Rows are never updated or deleted.
type AuditLogEntry struct {
	bun.BaseModel `bun:"table:audit_logs,alias:adt"`
	ID            string         `bun:"id,pk" json:"id"`
	Action        AuditAction    `bun:"action,notnull" json:"action"`
	PerformedBy   string         `bun:"performed_by,notnull" json:"performed_by"`
	TargetUser    string         `bun:"target_user,nullzero" json:"target_user,omitempty"`
	Details       map[string]any `bun:"details,type:jsonb" json:"details,omitempty"`
	IPAddress     string         `bun:"ip_address" json:"ip_address,omitempty"`
	UserAgent     string         `bun:"user_agent" json:"user_agent,omitempty"`
	CreatedAt     time.Time      `bun:"created_at,notnull" json:"timestamp"`
}

// RequestMeta carries the request origin into audited operations.
type RequestMeta struct {
	IP        string
	UserAgent string
}
