package repository

import (
	"context"

	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-storeauth"
)

var models = []any{
	(*auth.User)(nil),
	(*auth.RevokedToken)(nil),
	(*auth.PasswordResetRequest)(nil),
	(*auth.AuditLogEntry)(nil),
}

var indexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS pwdr_one_pending_per_user ON password_reset_requests (user_id) WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS pwdr_status_requested_at ON password_reset_requests (status, requested_at)`,
	`CREATE INDEX IF NOT EXISTS rvk_expires_at ON revoked_tokens (expires_at)`,
	`CREATE INDEX IF NOT EXISTS usr_user_role ON users (user_role)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS usr_single_owner ON users (user_role) WHERE user_role = 'owner' AND deleted_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS adt_created_at ON audit_logs (created_at)`,
	`CREATE INDEX IF NOT EXISTS adt_action ON audit_logs (action)`,
}

// CreateSchema creates tables and indexes from the bun models. It is used
// for sqlite and tests; postgres deployments run the embedded migrations.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return internal(err, "failed to create table")
		}
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return internal(err, "failed to create index")
		}
	}
	return nil
}
