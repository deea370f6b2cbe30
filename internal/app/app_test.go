package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/VidhuSarwal/chatshare/internal/chaterr"
	"github.com/VidhuSarwal/chatshare/internal/config"
	"github.com/VidhuSarwal/chatshare/internal/models"
	"github.com/VidhuSarwal/chatshare/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.Mongo.URI = "memory://"
	cfg.Security.JWTSecret = "jwt"
	cfg.Security.EncryptionKey = "enc"
	cfg.Files.Root = t.TempDir()
	cfg.Server.SettingsURL = "https://cloud.example.com/settings"
	cfg.Server.FilesURL = "https://cloud.example.com/files"
	return cfg
}

func TestNewApp_MemoryBackend(t *testing.T) {
	cfg := testConfig(t)
	a, err := NewApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.Equal(t, "mattermost", a.Platform.Name())
	assert.IsType(t, &store.MemoryStore{}, a.Backend)

	srv := httptest.NewServer(a.Mux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	tok, err := a.SessionToken("alice", false, 0)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/is-connected", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewApp_RejectsIncompleteConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.JWTSecret = ""
	_, err := NewApp(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "security.jwt_secret")
}

func TestAPIBaseURL(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	a, err := NewApp(ctx, cfg, zap.NewNop())
	require.NoError(t, err)

	_, err = a.apiBaseURL(ctx)
	assert.ErrorIs(t, err, chaterr.ErrOAuthNotConfigured)

	require.NoError(t, a.Settings.SetAppValues(ctx, map[string]string{store.AppKeyOAuthInstanceURL: "https://mm.example.com/"}))
	base, err := a.apiBaseURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://mm.example.com/api/v4/", base)

	cfg.Platform.APIURL = "http://127.0.0.1:9999/api"
	base, err = a.apiBaseURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999/api/", base)
}

func TestCalendarEventsReachWebhooks(t *testing.T) {
	ctx := context.Background()
	var hits int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer hook.Close()

	cfg := testConfig(t)
	cfg.Platform.Kind = config.PlatformSlack
	a, err := NewApp(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "slack", a.Platform.Name())

	require.NoError(t, a.Settings.SetUserValues(ctx, "alice", map[string]string{
		store.KeyWebhooksEnabled:     "1",
		store.KeyCalendarCreatedHook: hook.URL,
	}))
	_, err = a.Calendar.Create(ctx, "alice", &models.CalendarEvent{Title: "x", Start: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestOAuthRedirect_DenialConsumesPendingState(t *testing.T) {
	ctx := context.Background()
	a, err := NewApp(ctx, testConfig(t), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, a.Settings.SetAppValues(ctx, map[string]string{
		store.AppKeyClientID:         "client",
		store.AppKeyOAuthInstanceURL: "https://mm.example.com",
	}))
	require.NoError(t, a.Settings.SetSensitiveAppValues(ctx, map[string]string{store.AppKeyClientSecret: "secret"}))

	_, err = a.OAuth.AuthURL(ctx, "alice", models.OAuthOrigin{Surface: models.OriginFiles, Dir: "/docs"})
	require.NoError(t, err)
	pending, err := a.Backend.GetUserValue(ctx, "alice", store.KeyOAuthState)
	require.NoError(t, err)
	require.NotEmpty(t, pending)

	srv := httptest.NewServer(a.Mux())
	defer srv.Close()
	tok, err := a.SessionToken("alice", false, 0)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/oauth-redirect?error=access_denied&state=whatever", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "mattermostToken=error")

	for _, key := range []string{store.KeyOAuthState, store.KeyOAuthOrigin} {
		v, err := a.Backend.GetUserValue(ctx, "alice", key)
		require.NoError(t, err)
		assert.Empty(t, v, key)
	}

	// the original state no longer works either
	_, err = a.OAuth.Complete(ctx, "alice", "code", pending)
	assert.ErrorIs(t, err, chaterr.ErrInvalidOAuthState)
}
