package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/VidhuSarwal/chatshare/internal/chaterr"
	"github.com/VidhuSarwal/chatshare/internal/events"
	"github.com/VidhuSarwal/chatshare/internal/models"
	"github.com/VidhuSarwal/chatshare/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*Service, *[]*events.Event) {
	t.Helper()
	bus := events.NewBus(zap.NewNop())
	var seen []*events.Event
	record := func(_ context.Context, e *events.Event) error {
		seen = append(seen, e)
		return nil
	}
	bus.Subscribe(events.CalendarEventCreated, record)
	bus.Subscribe(events.CalendarEventUpdated, record)
	return NewService(store.NewMemoryStore(), bus, zap.NewNop()), &seen
}

func TestCreateAndUpdatePublish(t *testing.T) {
	svc, seen := newService(t)
	ctx := context.Background()
	start := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	created, err := svc.Create(ctx, "alice", &models.CalendarEvent{Title: "Standup", Start: start})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, start, created.End)

	updated, err := svc.Update(ctx, "alice", created.ID, &models.CalendarEvent{
		Title: "Standup (moved)", Start: start.Add(time.Hour), End: start.Add(90 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	require.Len(t, *seen, 2)
	assert.Equal(t, events.CalendarEventCreated, (*seen)[0].Type)
	assert.Equal(t, events.CalendarEventUpdated, (*seen)[1].Type)
	assert.Equal(t, "alice", (*seen)[1].UserID)

	got, err := svc.EventsBetween(ctx, "alice", start, start.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Standup (moved)", got[0].Title)
}

func TestUpdate_UnknownEvent(t *testing.T) {
	svc, seen := newService(t)
	_, err := svc.Update(context.Background(), "alice", "nope", &models.CalendarEvent{Title: "x", Start: time.Now()})
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.Empty(t, *seen)
}

func TestCreate_Validation(t *testing.T) {
	svc, seen := newService(t)
	ctx := context.Background()
	now := time.Now()

	_, err := svc.Create(ctx, "alice", &models.CalendarEvent{Start: now})
	assert.ErrorIs(t, err, chaterr.ErrInvalidRequest)
	_, err = svc.Create(ctx, "alice", &models.CalendarEvent{Title: "x"})
	assert.ErrorIs(t, err, chaterr.ErrInvalidRequest)
	_, err = svc.Create(ctx, "alice", &models.CalendarEvent{Title: "x", Start: now, End: now.Add(-time.Minute)})
	assert.ErrorIs(t, err, chaterr.ErrInvalidRequest)
	assert.Empty(t, *seen)
}
