package activitymap_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-storeauth"
	"github.com/goliatone/go-storeauth/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventRoleChanged,
		Actor:     auth.ActorRef{ID: "owner-42", Type: "owner"},
		UserID:    "user-100",
		Metadata: map[string]any{
			"from": "viewer",
			"to":   "operator",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	assert.Equal(t, "owner-42", out.ActorID)
	assert.Equal(t, string(auth.ActivityEventRoleChanged), out.Verb)
	assert.Equal(t, "user", out.ObjectType)
	assert.Equal(t, "user-100", out.ObjectID)
	assert.Equal(t, "auth", out.Channel)
	assert.True(t, out.OccurredAt.Equal(ts))

	assert.Equal(t, "owner", out.Metadata[activitymap.MetadataKeyActorType])
	assert.Equal(t, "viewer", out.Metadata[activitymap.MetadataKeyFromRole])
	assert.Equal(t, "operator", out.Metadata[activitymap.MetadataKeyToRole])
	assert.NotContains(t, out.Metadata, "from")

	assert.Len(t, event.Metadata, 2, "source metadata must remain unchanged")
	assert.Equal(t, "viewer", event.Metadata["from"])
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	event := auth.ActivityEvent{
		EventType: auth.ActivityEventPasswordResetSuccess,
		Actor:     auth.ActorRef{Type: "user"},
		UserID:    "user-200",
		Metadata: map[string]any{
			"password_reset_id":              "reset-1",
			activitymap.MetadataKeyActorType: "existing",
		},
	}

	out := activitymap.Normalize(
		event,
		activitymap.WithDefaultChannel("security"),
		activitymap.WithDefaultObjectType("account"),
		activitymap.WithObjectIDResolver(func(e auth.ActivityEvent) string {
			if v, ok := e.Metadata["password_reset_id"].(string); ok {
				return v
			}
			return ""
		}),
	)

	assert.Equal(t, "security", out.Channel)
	assert.Equal(t, "account", out.ObjectType)
	assert.Equal(t, "reset-1", out.ObjectID)
	assert.Equal(t, "existing", out.Metadata[activitymap.MetadataKeyActorType])
	assert.False(t, out.OccurredAt.IsZero())
}

func TestNormalizeActorFallbackChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  auth.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses actor id when present",
			event:  auth.ActivityEvent{Actor: auth.ActorRef{ID: "actor-1"}, UserID: "user-1"},
			expect: "actor-1",
		},
		{
			name:   "uses user id when actor id missing",
			event:  auth.ActivityEvent{UserID: "user-2"},
			expect: "user-2",
		},
		{
			name:   "uses default fallback when actor and user missing",
			event:  auth.ActivityEvent{},
			expect: "system",
		},
		{
			name:   "uses configured fallback when actor and user missing",
			event:  auth.ActivityEvent{},
			opts:   []activitymap.Option{activitymap.WithActorFallback("reaper")},
			expect: "reaper",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expect, activitymap.Normalize(tc.event, tc.opts...).ActorID)
		})
	}
}

type captureLogger struct {
	lines []string
}

func (c *captureLogger) Debug(msg string, args ...any) { c.add(msg, args) }
func (c *captureLogger) Info(msg string, args ...any)  { c.add(msg, args) }
func (c *captureLogger) Warn(msg string, args ...any)  { c.add(msg, args) }
func (c *captureLogger) Error(msg string, args ...any) { c.add(msg, args) }

func (c *captureLogger) add(msg string, args []any) {
	c.lines = append(c.lines, fmt.Sprint(append([]any{msg}, args...)...))
}

func TestLogSink(t *testing.T) {
	logger := &captureLogger{}
	sink := activitymap.NewLogSink(logger)

	err := sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventTokenReused,
		UserID:    "user-9",
	})
	require.NoError(t, err)
	require.Len(t, logger.lines, 1)
	assert.Contains(t, logger.lines[0], string(auth.ActivityEventTokenReused))
	assert.Contains(t, logger.lines[0], "user-9")

	assert.NoError(t, activitymap.NewLogSink(nil).Record(context.Background(), auth.ActivityEvent{}))
}
