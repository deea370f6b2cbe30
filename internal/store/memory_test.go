package store

import (
	"context"
	"testing"
	"time"

	"github.com/VidhuSarwal/chatshare/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_UserValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	v, err := m.GetUserValue(ctx, "alice", KeyToken)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, m.SetUserValue(ctx, "alice", KeyToken, "t1"))
	require.NoError(t, m.SetUserValue(ctx, "alice", KeyToken, "t2"))
	v, _ = m.GetUserValue(ctx, "alice", KeyToken)
	assert.Equal(t, "t2", v)

	require.NoError(t, m.DeleteUserValue(ctx, "alice", KeyToken))
	v, _ = m.GetUserValue(ctx, "alice", KeyToken)
	assert.Empty(t, v)

	// deleting an absent key is fine
	require.NoError(t, m.DeleteUserValue(ctx, "bob", KeyToken))
}

func TestMemoryStore_UsersWithValue(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.SetUserValue(ctx, "carol", KeyWebhooksEnabled, "1"))
	require.NoError(t, m.SetUserValue(ctx, "alice", KeyWebhooksEnabled, "1"))
	require.NoError(t, m.SetUserValue(ctx, "bob", KeyWebhooksEnabled, "0"))

	users, err := m.UsersWithValue(ctx, KeyWebhooksEnabled, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "carol"}, users)
}

func TestMemoryStore_FileIDsAreStable(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	a := &models.StoredFile{Owner: "alice", Path: "docs/a.txt", Name: "a.txt"}
	b := &models.StoredFile{Owner: "alice", Path: "docs/b.txt", Name: "b.txt"}
	require.NoError(t, m.UpsertFile(ctx, a))
	require.NoError(t, m.UpsertFile(ctx, b))
	assert.NotEqual(t, a.FileID, b.FileID)

	again := &models.StoredFile{Owner: "alice", Path: "docs/a.txt", Name: "a.txt", Size: 10}
	require.NoError(t, m.UpsertFile(ctx, again))
	assert.Equal(t, a.FileID, again.FileID)

	got, err := m.GetFile(ctx, "alice", a.FileID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(10), got.Size)

	got, err = m.GetFile(ctx, "bob", a.FileID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_ShareExpiration(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	exp := time.Now().Add(time.Hour)
	require.NoError(t, m.InsertShare(ctx, &models.Share{ID: "s1", Token: "tok", ExpiresAt: &exp}))

	require.NoError(t, m.SetShareExpiration(ctx, "s1", nil))
	s, err := m.GetShareByToken(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Nil(t, s.ExpiresAt)
}

func TestMemoryStore_CalendarEventsBetween(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, off := range []time.Duration{2 * time.Hour, -time.Hour, 30 * time.Minute, 25 * time.Hour} {
		require.NoError(t, m.SaveCalendarEvent(ctx, &models.CalendarEvent{
			ID:     string(rune('a' + i)),
			UserID: "alice",
			Start:  base.Add(off),
		}))
	}
	events, err := m.CalendarEventsBetween(ctx, "alice", base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "c", events[0].ID)
	assert.Equal(t, "a", events[1].ID)
}
