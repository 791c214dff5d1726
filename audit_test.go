package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-storeauth"
)

func TestAuditLogger_RecordFillsIDAndTimestamp(t *testing.T) {
	store := &memAudit{}
	clock := newTestClock()
	logger := auth.NewAuditLogger(store).WithClock(clock.Now).WithLogger(nopLogger{})

	logger.Record(context.Background(), auth.AuditLogEntry{
		Action:      auth.AuditRoleChanged,
		PerformedBy: "owner",
		TargetUser:  "shopA",
	})
	clock.Advance(time.Millisecond)
	logger.Record(context.Background(), auth.AuditLogEntry{
		Action:      auth.AuditUserDeleted,
		PerformedBy: "owner",
		TargetUser:  "shopB",
	})

	entries := store.list()
	require.Len(t, entries, 2)
	assert.Len(t, entries[0].ID, 26, "ulid string")
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	assert.Less(t, entries[0].ID, entries[1].ID, "ids sort by time")
	assert.Equal(t, clock.Now().Add(-time.Millisecond), entries[0].CreatedAt)
}

func TestAuditLogger_KeepsProvidedValues(t *testing.T) {
	store := &memAudit{}
	at := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	logger := auth.NewAuditLogger(store).WithLogger(nopLogger{})

	logger.Record(context.Background(), auth.AuditLogEntry{
		ID:        "fixed-id",
		Action:    auth.AuditPasswordChanged,
		CreatedAt: at,
	})

	entries := store.list()
	require.Len(t, entries, 1)
	assert.Equal(t, "fixed-id", entries[0].ID)
	assert.Equal(t, at, entries[0].CreatedAt)
}

func TestAuditLogger_DropsUnknownActions(t *testing.T) {
	store := &memAudit{}
	logger := auth.NewAuditLogger(store).WithLogger(nopLogger{})

	logger.Record(context.Background(), auth.AuditLogEntry{Action: "login"})
	assert.Empty(t, store.list())
}

func TestAuditLogger_NeverFailsTheCaller(t *testing.T) {
	failing := &memAudit{err: assert.AnError}
	assert.NotPanics(t, func() {
		auth.NewAuditLogger(failing).WithLogger(nopLogger{}).
			Record(context.Background(), auth.AuditLogEntry{Action: auth.AuditUserCreated})
	})

	panicking := &memAudit{panics: true}
	assert.NotPanics(t, func() {
		auth.NewAuditLogger(panicking).WithLogger(nopLogger{}).
			Record(context.Background(), auth.AuditLogEntry{Action: auth.AuditUserCreated})
	})

	var nilLogger *auth.AuditLogger
	assert.NotPanics(t, func() {
		nilLogger.Record(context.Background(), auth.AuditLogEntry{Action: auth.AuditUserCreated})
	})
}

func TestAuditFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.seed(t, "owner", "ownerpass", auth.RoleOwner)
	viewer := f.seed(t, "shopA", "secret1", auth.RoleViewer)

	f.audit.panics = true

	updated, err := f.service.UpdateUserRole(ctx, owner.ID.String(), viewer.ID.String(), auth.RoleOperator, auth.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleOperator, updated.Role)
}

func TestAuditLogger_Query(t *testing.T) {
	store := &memAudit{}
	logger := auth.NewAuditLogger(store).WithLogger(nopLogger{})
	ctx := context.Background()

	for _, target := range []string{"a", "b", "c"} {
		logger.Record(ctx, auth.AuditLogEntry{Action: auth.AuditRoleChanged, PerformedBy: "owner", TargetUser: target})
	}
	logger.Record(ctx, auth.AuditLogEntry{Action: auth.AuditUserCreated, PerformedBy: "c", TargetUser: "c"})

	entries, total, err := logger.Query(ctx, auth.AuditFilter{Action: auth.AuditRoleChanged}, auth.Page{Limit: 2}.Normalize())
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].TargetUser)
	assert.Equal(t, "b", entries[1].TargetUser)

	entries, _, err = logger.Query(ctx, auth.AuditFilter{TargetUser: "c"}, auth.Page{}.Normalize())
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, _, err = logger.Query(ctx, auth.AuditFilter{Action: "login"}, auth.Page{})
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidInput))
}

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, auth.Page{Limit: 50}, auth.Page{}.Normalize())
	assert.Equal(t, auth.Page{Limit: 200, Offset: 0}, auth.Page{Limit: 1000, Offset: -5}.Normalize())
	assert.Equal(t, auth.Page{Limit: 10, Offset: 20}, auth.Page{Limit: 10, Offset: 20}.Normalize())
}
