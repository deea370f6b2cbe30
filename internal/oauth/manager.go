// Package oauth implements the authorization-code flow and the token lifecycle
// for the chat platform connection.
package oauth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/VidhuSarwal/chatshare/internal/logging"
	"github.com/VidhuSarwal/chatshare/internal/models"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// refreshMargin is how close to expiry a token gets refreshed.
const refreshMargin = 60 * time.Second

// Provider describes a platform's OAuth endpoints.
type Provider interface {
	Endpoint(instanceURL string) oauth2.Endpoint
	Scopes() []string
	AuthCodeOptions() []oauth2.AuthCodeOption
	Shape() ResponseShape
}

// Store is the persistence the manager needs.
type Store interface {
	Connection(ctx context.Context, userID string) (*models.Connection, error)
	SaveTokens(ctx context.Context, userID string, tok *models.TokenSet, now time.Time) error
	AppCredentials(ctx context.Context) (*models.AppCredentials, error)
	PutPendingState(ctx context.Context, userID string, p *models.PendingOAuthState) error
	TakePendingState(ctx context.Context, userID string) (*models.PendingOAuthState, error)
	PutFilesToSend(ctx context.Context, userID string, f *models.FilesToSend) error
}

// Manager owns token acquisition and renewal.
type Manager struct {
	store       Store
	provider    Provider
	exchanger   *Exchanger
	redirectURL string
	logger      *zap.Logger

	refreshes singleflight.Group
	now       func() time.Time
}

// NewManager builds a manager whose exchanger uses client for token calls.
func NewManager(st Store, provider Provider, client *http.Client, userAgent, redirectURL string, logger *zap.Logger) *Manager {
	return &Manager{
		store:       st,
		provider:    provider,
		exchanger:   NewExchanger(client, userAgent, provider.Shape(), logger),
		redirectURL: redirectURL,
		logger:      logger,
		now:         time.Now,
	}
}

// EnsureValidToken refreshes the user's access token when it expires within
// refreshMargin. Connections without a refresh token or an expiry are left
// alone. A refused refresh is logged and the stale token kept; only store
// errors are returned. Concurrent calls for one user share a single refresh.
func (m *Manager) EnsureValidToken(ctx context.Context, userID string) error {
	conn, err := m.store.Connection(ctx, userID)
	if err != nil {
		return err
	}
	if !m.needsRefresh(conn) {
		return nil
	}
	_, err, _ = m.refreshes.Do(userID, func() (any, error) {
		// a concurrent caller may have refreshed while we waited
		conn, err := m.store.Connection(ctx, userID)
		if err != nil {
			return nil, err
		}
		if !m.needsRefresh(conn) {
			return nil, nil
		}
		return nil, m.refresh(ctx, userID, conn)
	})
	return err
}

func (m *Manager) needsRefresh(conn *models.Connection) bool {
	if conn.RefreshToken == "" || conn.ExpiresAt.IsZero() {
		return false
	}
	return conn.ExpiresAt.Sub(m.now()) <= refreshMargin
}

func (m *Manager) refresh(ctx context.Context, userID string, conn *models.Connection) error {
	creds, err := m.store.AppCredentials(ctx)
	if err != nil {
		return err
	}
	endpoint := m.provider.Endpoint(creds.InstanceURL)
	params := url.Values{
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {conn.RefreshToken},
		"redirect_uri":  {m.redirectURL},
	}
	m.logger.Info("refreshing access token",
		zap.String("user", userID),
		zap.String("refresh_token", logging.Mask(conn.RefreshToken)))

	now := m.now()
	tok, err := m.exchanger.Exchange(ctx, endpoint.TokenURL, params, http.MethodPost)
	if err != nil {
		m.logger.Warn("token refresh failed, keeping current token", zap.String("user", userID), zap.Error(err))
		return nil
	}
	if err := m.store.SaveTokens(ctx, userID, tok, now); err != nil {
		return fmt.Errorf("persist refreshed token: %w", err)
	}
	return nil
}

// AccessToken ensures the token is fresh and returns it. An empty string
// means the user is not connected.
func (m *Manager) AccessToken(ctx context.Context, userID string) (string, error) {
	if err := m.EnsureValidToken(ctx, userID); err != nil {
		return "", err
	}
	conn, err := m.store.Connection(ctx, userID)
	if err != nil {
		return "", err
	}
	return conn.AccessToken, nil
}
