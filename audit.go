package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

// AuditStore persists audit entries. Implementations only append.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditLogEntry) error
	Query(ctx context.Context, filter AuditFilter, page Page) ([]*AuditLogEntry, int, error)
}

// AuditFilter narrows a query. Empty fields match everything.
type AuditFilter struct {
	Action      AuditAction
	PerformedBy string
	TargetUser  string
}

// Page is an offset window, newest entries first.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = defaultAuditPageSize
	}
	if p.Limit > maxAuditPageSize {
		p.Limit = maxAuditPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// AuditLogger appends privileged state changes. Recording never fails the caller.
type AuditLogger struct {
	store  AuditStore
	logger Logger
	now    Clock
}

// NewAuditLogger creates a logger over store.
func NewAuditLogger(store AuditStore) *AuditLogger {
	return &AuditLogger{
		store:  store,
		logger: defLogger{},
		now:    time.Now,
	}
}

// WithLogger overrides the logger that reports suppressed failures.
func (a *AuditLogger) WithLogger(logger Logger) *AuditLogger {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// WithClock overrides the time source used for timestamps.
func (a *AuditLogger) WithClock(clock Clock) *AuditLogger {
	if clock != nil {
		a.now = clock
	}
	return a
}

// Record appends entry. Failures are logged and swallowed.
func (a *AuditLogger) Record(ctx context.Context, entry AuditLogEntry) {
	if a == nil || a.store == nil {
		return
	}

	if !entry.Action.IsValid() {
		a.logger.Error("audit entry with unknown action dropped", "action", string(entry.Action))
		return
	}

	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = a.now().UTC()
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("audit store panicked", "action", string(entry.Action), "panic", r)
		}
	}()

	if err := a.store.Append(ctx, &entry); err != nil {
		a.logger.Error("failed to append audit entry",
			"action", string(entry.Action),
			"performed_by", entry.PerformedBy,
			"target_user", entry.TargetUser,
			"error", err,
		)
	}
}

// Query returns matching entries newest first and the total match count.
func (a *AuditLogger) Query(ctx context.Context, filter AuditFilter, page Page) ([]*AuditLogEntry, int, error) {
	if filter.Action != "" && !filter.Action.IsValid() {
		return nil, 0, newError(ErrInvalidInput, "unknown audit action", map[string]any{
			"action": string(filter.Action),
		})
	}

	entries, total, err := a.store.Query(ctx, filter, page.Normalize())
	if err != nil {
		return nil, 0, asRichError(err, "failed to query audit log")
	}
	return entries, total, nil
}
