package repository

import (
	"context"

	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-storeauth"
)

// AuditLogs only ever inserts and reads.
type AuditLogs struct {
	db *bun.DB
}

var _ auth.AuditStore = (*AuditLogs)(nil)

func NewAuditLogsRepository(db *bun.DB) *AuditLogs {
	return &AuditLogs{db: db}
}

func (r *AuditLogs) Append(ctx context.Context, entry *auth.AuditLogEntry) error {
	entry.CreatedAt = entry.CreatedAt.UTC()
	// never joins a caller transaction
	if _, err := r.db.NewInsert().Model(entry).Exec(ctx); err != nil {
		return internal(err, "failed to append audit entry")
	}
	return nil
}

func (r *AuditLogs) Query(ctx context.Context, filter auth.AuditFilter, page auth.Page) ([]*auth.AuditLogEntry, int, error) {
	entries := make([]*auth.AuditLogEntry, 0)
	q := r.db.NewSelect().Model(&entries)

	if filter.Action != "" {
		q = q.Where("?TableAlias.action = ?", string(filter.Action))
	}
	if filter.PerformedBy != "" {
		q = q.Where("?TableAlias.performed_by = ?", filter.PerformedBy)
	}
	if filter.TargetUser != "" {
		q = q.Where("?TableAlias.target_user = ?", filter.TargetUser)
	}

	page = page.Normalize()
	total, err := q.
		OrderExpr("?TableAlias.created_at DESC, ?TableAlias.id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		ScanAndCount(ctx)
	if err != nil && !isNotFound(err) {
		return nil, 0, internal(err, "failed to query audit log")
	}
	return entries, total, nil
}
