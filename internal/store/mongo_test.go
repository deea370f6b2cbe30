package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/VidhuSarwal/chatshare/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// startMongo runs a throwaway MongoDB container and returns a connected store.
func startMongo(t *testing.T) *MongoStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping mongo container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("27017/tcp"),
				wait.ForLog("Waiting for connections"),
			).WithDeadline(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "27017/tcp")
	require.NoError(t, err)

	uri := fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	s, err := Connect(ctx, uri, "chatshare_test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Disconnect(context.Background()) })
	return s
}

func TestMongoStore(t *testing.T) {
	s := startMongo(t)
	ctx := context.Background()

	t.Run("user values", func(t *testing.T) {
		v, err := s.GetUserValue(ctx, "alice", KeyToken)
		require.NoError(t, err)
		assert.Empty(t, v)

		require.NoError(t, s.SetUserValue(ctx, "alice", KeyToken, "a"))
		require.NoError(t, s.SetUserValue(ctx, "alice", KeyToken, "b"))
		v, err = s.GetUserValue(ctx, "alice", KeyToken)
		require.NoError(t, err)
		assert.Equal(t, "b", v)

		require.NoError(t, s.DeleteUserValue(ctx, "alice", KeyToken))
		v, err = s.GetUserValue(ctx, "alice", KeyToken)
		require.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("app values", func(t *testing.T) {
		require.NoError(t, s.SetAppValue(ctx, AppKeyClientID, "cid"))
		v, err := s.GetAppValue(ctx, AppKeyClientID)
		require.NoError(t, err)
		assert.Equal(t, "cid", v)
	})

	t.Run("users with value", func(t *testing.T) {
		require.NoError(t, s.SetUserValue(ctx, "u1", KeyWebhooksEnabled, "1"))
		require.NoError(t, s.SetUserValue(ctx, "u2", KeyWebhooksEnabled, "0"))
		users, err := s.UsersWithValue(ctx, KeyWebhooksEnabled, "1")
		require.NoError(t, err)
		assert.Equal(t, []string{"u1"}, users)
	})

	t.Run("file ids", func(t *testing.T) {
		f := &models.StoredFile{Owner: "alice", Path: "x.txt", Name: "x.txt"}
		require.NoError(t, s.UpsertFile(ctx, f))
		first := f.FileID
		require.NoError(t, s.UpsertFile(ctx, &models.StoredFile{Owner: "alice", Path: "y.txt", Name: "y.txt"}))

		again := &models.StoredFile{Owner: "alice", Path: "x.txt", Name: "x.txt", Size: 3}
		require.NoError(t, s.UpsertFile(ctx, again))
		assert.Equal(t, first, again.FileID)

		got, err := s.GetFile(ctx, "alice", first)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, int64(3), got.Size)
	})

	t.Run("share expiration", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
		require.NoError(t, s.InsertShare(ctx, &models.Share{ID: "s1", Token: "tok1", ExpiresAt: &exp}))
		require.NoError(t, s.SetShareExpiration(ctx, "s1", nil))
		got, err := s.GetShareByToken(ctx, "tok1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Nil(t, got.ExpiresAt)
	})
}
