package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/VidhuSarwal/chatshare/internal/chaterr"
	"github.com/VidhuSarwal/chatshare/internal/models"
	"github.com/VidhuSarwal/chatshare/internal/secrets"
	"github.com/VidhuSarwal/chatshare/internal/settings"
	"github.com/VidhuSarwal/chatshare/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type testProvider struct {
	tokenURL string
	shape    ResponseShape
}

func (p testProvider) Endpoint(string) oauth2.Endpoint {
	return oauth2.Endpoint{AuthURL: "https://chat.example.com/oauth/authorize", TokenURL: p.tokenURL}
}
func (p testProvider) Scopes() []string                        { return []string{"chat:write"} }
func (p testProvider) AuthCodeOptions() []oauth2.AuthCodeOption { return nil }
func (p testProvider) Shape() ResponseShape                     { return p.shape }

// tokenServer counts requests and answers with body.
func tokenServer(t *testing.T, status int, body string) (*httptest.Server, *int32, *url.Values) {
	t.Helper()
	var hits int32
	var mu sync.Mutex
	last := &url.Values{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "chatshare-test", r.Header.Get("User-Agent"))
		assert.NoError(t, r.ParseForm())
		mu.Lock()
		*last = r.PostForm
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits, last
}

func newManager(t *testing.T, tokenURL string, shape ResponseShape) (*Manager, *settings.Settings) {
	t.Helper()
	c, err := secrets.NewAESCipher("test-key")
	require.NoError(t, err)
	set := settings.New(store.NewMemoryStore(), c, zap.NewNop())
	ctx := context.Background()
	require.NoError(t, set.SetAppValues(ctx, map[string]string{"client_id": "cid"}))
	require.NoError(t, set.SetSensitiveAppValues(ctx, map[string]string{"client_secret": "csecret"}))

	m := NewManager(set, testProvider{tokenURL: tokenURL, shape: shape}, http.DefaultClient,
		"chatshare-test", "https://files.example.com/oauth-redirect", zap.NewNop())
	return m, set
}

func TestEnsureValidToken_NoRefreshWhenFarFromExpiry(t *testing.T) {
	srv, hits, _ := tokenServer(t, 200, `{"access_token":"new"}`)
	m, set := newManager(t, srv.URL, FlatShape{})
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }

	require.NoError(t, set.SaveTokens(ctx, "alice", &models.TokenSet{AccessToken: "old", RefreshToken: "r", ExpiresIn: 61}, now))
	require.NoError(t, m.EnsureValidToken(ctx, "alice"))
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestEnsureValidToken_NoRefreshWithoutRefreshTokenOrExpiry(t *testing.T) {
	srv, hits, _ := tokenServer(t, 200, `{"access_token":"new"}`)
	m, set := newManager(t, srv.URL, FlatShape{})
	ctx := context.Background()
	now := time.Now()

	// expiry but no refresh token
	require.NoError(t, set.SaveTokens(ctx, "alice", &models.TokenSet{AccessToken: "old", ExpiresIn: 1}, now.Add(-time.Hour)))
	require.NoError(t, m.EnsureValidToken(ctx, "alice"))

	// refresh token but no expiry
	require.NoError(t, set.SaveTokens(ctx, "bob", &models.TokenSet{AccessToken: "old", RefreshToken: "r"}, now))
	require.NoError(t, m.EnsureValidToken(ctx, "bob"))

	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestEnsureValidToken_RefreshesWithinMargin(t *testing.T) {
	for name, offset := range map[string]time.Duration{
		"exactly 60s": 60 * time.Second,
		"soon":        10 * time.Second,
		"expired":     -time.Hour,
	} {
		t.Run(name, func(t *testing.T) {
			srv, hits, form := tokenServer(t, 200, `{"access_token":"A2","refresh_token":"R2","expires_in":3600}`)
			m, set := newManager(t, srv.URL, FlatShape{})
			ctx := context.Background()
			now := time.Unix(1_700_000_000, 0)
			m.now = func() time.Time { return now }

			require.NoError(t, set.SaveTokens(ctx, "alice", &models.TokenSet{AccessToken: "A1", RefreshToken: "R1"}, now))
			// store an explicit expiry relative to now
			require.NoError(t, set.SaveTokens(ctx, "alice", &models.TokenSet{AccessToken: "A1", ExpiresIn: 1}, now.Add(offset-time.Second)))

			require.NoError(t, m.EnsureValidToken(ctx, "alice"))
			assert.Equal(t, int32(1), atomic.LoadInt32(hits))
			assert.Equal(t, "refresh_token", form.Get("grant_type"))
			assert.Equal(t, "R1", form.Get("refresh_token"))
			assert.Equal(t, "cid", form.Get("client_id"))
			assert.Equal(t, "csecret", form.Get("client_secret"))

			conn, err := set.Connection(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, "A2", conn.AccessToken)
			assert.Equal(t, "R2", conn.RefreshToken)
			assert.Equal(t, now.Unix()+3600, conn.ExpiresAt.Unix())
		})
	}
}

func TestEnsureValidToken_ConcurrentCallersShareOneRefresh(t *testing.T) {
	srv, hits, _ := tokenServer(t, 200, `{"access_token":"A2","refresh_token":"R2","expires_in":"3600"}`)
	m, set := newManager(t, srv.URL, FlatShape{})
	ctx := context.Background()
	require.NoError(t, set.SaveTokens(ctx, "alice", &models.TokenSet{AccessToken: "A1", RefreshToken: "R1", ExpiresIn: 5}, time.Now()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.EnsureValidToken(ctx, "alice"))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestEnsureValidToken_RefusedRefreshKeepsStaleToken(t *testing.T) {
	srv, hits, _ := tokenServer(t, 400, `{"error":"invalid_grant"}`)
	m, set := newManager(t, srv.URL, FlatShape{})
	ctx := context.Background()
	require.NoError(t, set.SaveTokens(ctx, "alice", &models.TokenSet{AccessToken: "A1", RefreshToken: "R1", ExpiresIn: 5}, time.Now()))

	tok, err := m.AccessToken(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "A1", tok)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestExchange_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		shape ResponseShape
		body  string
		want  models.TokenSet
	}{
		{
			name:  "flat",
			shape: FlatShape{},
			body:  `{"access_token":"a","refresh_token":"r","expires_in":120,"token_type":"bearer"}`,
			want:  models.TokenSet{AccessToken: "a", RefreshToken: "r", ExpiresIn: 120},
		},
		{
			name:  "flat with string expiry",
			shape: FlatShape{},
			body:  `{"access_token":"a","expires_in":"43200"}`,
			want:  models.TokenSet{AccessToken: "a", ExpiresIn: 43200},
		},
		{
			name:  "nested",
			shape: NestedShape{Key: "authed_user"},
			body:  `{"ok":true,"access_token":"bot","authed_user":{"id":"U1","access_token":"xoxp","refresh_token":"xoxe","expires_in":43200}}`,
			want:  models.TokenSet{AccessToken: "xoxp", RefreshToken: "xoxe", ExpiresIn: 43200, RemoteUserID: "U1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := tokenServer(t, 200, tt.body)
			e := NewExchanger(http.DefaultClient, "chatshare-test", tt.shape, zap.NewNop())
			tok, err := e.Exchange(context.Background(), srv.URL, url.Values{"grant_type": {"authorization_code"}}, http.MethodPost)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *tok)
		})
	}
}

func TestExchange_Refusals(t *testing.T) {
	ctx := context.Background()

	srv, _, _ := tokenServer(t, 401, `{"access_token":"ignored"}`)
	e := NewExchanger(http.DefaultClient, "chatshare-test", FlatShape{}, zap.NewNop())
	_, err := e.Exchange(ctx, srv.URL, url.Values{}, http.MethodPost)
	assert.ErrorIs(t, err, chaterr.ErrOAuthTokenRefused)

	srv, _, _ = tokenServer(t, 200, `{"ok":false,"error":"invalid_code"}`)
	e = NewExchanger(http.DefaultClient, "chatshare-test", NestedShape{Key: "authed_user"}, zap.NewNop())
	_, err = e.Exchange(ctx, srv.URL, url.Values{}, http.MethodPost)
	assert.ErrorIs(t, err, chaterr.ErrOAuthTokenRefused)

	srv, hits, _ := tokenServer(t, 200, `{"access_token":"a"}`)
	_, err = e.Exchange(ctx, srv.URL, url.Values{}, "PATCH")
	assert.ErrorIs(t, err, chaterr.ErrBadHTTPMethod)
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))

	_, err = e.Exchange(ctx, "http://127.0.0.1:1/token", url.Values{}, http.MethodPost)
	assert.ErrorIs(t, err, chaterr.ErrTransport)
}

func TestAuthURLAndComplete(t *testing.T) {
	srv, _, form := tokenServer(t, 200, `{"access_token":"A","refresh_token":"R","expires_in":3600}`)
	m, set := newManager(t, srv.URL, FlatShape{})
	ctx := context.Background()

	origin := models.OAuthOrigin{Surface: models.OriginFiles, Dir: "/docs", FileIDs: []int64{7}}
	raw, err := m.AuthURL(ctx, "alice", origin)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	state := u.Query().Get("state")
	assert.Len(t, state, 32)
	assert.Equal(t, "cid", u.Query().Get("client_id"))
	assert.Equal(t, "https://files.example.com/oauth-redirect", u.Query().Get("redirect_uri"))

	got, err := m.Complete(ctx, "alice", "the-code", state)
	require.NoError(t, err)
	assert.Equal(t, origin, *got)
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "the-code", form.Get("code"))

	conn, err := set.Connection(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "A", conn.AccessToken)

	pending, err := set.TakeFilesToSend(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, pending.FileIDs)
	assert.Equal(t, "/docs", pending.CurrentDir)

	// replaying the same state fails
	_, err = m.Complete(ctx, "alice", "the-code", state)
	assert.ErrorIs(t, err, chaterr.ErrInvalidOAuthState)
}

func TestComplete_WrongStateConsumesPendingState(t *testing.T) {
	srv, hits, _ := tokenServer(t, 200, `{"access_token":"A"}`)
	m, _ := newManager(t, srv.URL, FlatShape{})
	ctx := context.Background()

	raw, err := m.AuthURL(ctx, "alice", models.OAuthOrigin{})
	require.NoError(t, err)
	u, _ := url.Parse(raw)
	state := u.Query().Get("state")

	_, err = m.Complete(ctx, "alice", "code", "forged")
	assert.ErrorIs(t, err, chaterr.ErrInvalidOAuthState)

	// the real state no longer works either
	_, err = m.Complete(ctx, "alice", "code", state)
	assert.ErrorIs(t, err, chaterr.ErrInvalidOAuthState)
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestAuthURL_NotConfigured(t *testing.T) {
	c, err := secrets.NewAESCipher("k")
	require.NoError(t, err)
	set := settings.New(store.NewMemoryStore(), c, zap.NewNop())
	m := NewManager(set, testProvider{shape: FlatShape{}}, http.DefaultClient, "ua", "https://x/cb", zap.NewNop())

	_, err = m.AuthURL(context.Background(), "alice", models.OAuthOrigin{})
	assert.ErrorIs(t, err, chaterr.ErrOAuthNotConfigured)
}
