package oauth

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/VidhuSarwal/chatshare/internal/chaterr"
	"github.com/VidhuSarwal/chatshare/internal/logging"
	"github.com/VidhuSarwal/chatshare/internal/models"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// AuthURL starts an OAuth flow for userID: it stores a fresh state nonce with
// the origin and returns the provider authorization URL.
func (m *Manager) AuthURL(ctx context.Context, userID string, origin models.OAuthOrigin) (string, error) {
	creds, err := m.store.AppCredentials(ctx)
	if err != nil {
		return "", err
	}
	if !creds.OAuthPossible() {
		return "", chaterr.ErrOAuthNotConfigured
	}

	state, err := randomState()
	if err != nil {
		return "", err
	}
	if origin.Surface == "" {
		origin.Surface = models.OriginSettings
	}
	if err := m.store.PutPendingState(ctx, userID, &models.PendingOAuthState{State: state, Origin: origin}); err != nil {
		return "", err
	}

	conf := m.config(creds)
	authURL := conf.AuthCodeURL(state, m.provider.AuthCodeOptions()...)
	m.logger.Debug("generated oauth url",
		zap.String("user", userID),
		zap.String("client_id", logging.Mask(creds.ClientID)),
		zap.String("redirect_uri", conf.RedirectURL))
	return authURL, nil
}

// Complete finishes the flow started by AuthURL. The pending state is deleted
// before it is compared, so a state value works at most once.
func (m *Manager) Complete(ctx context.Context, userID, code, state string) (*models.OAuthOrigin, error) {
	pending, err := m.store.TakePendingState(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pending == nil || state == "" || pending.State != state {
		m.logger.Warn("oauth state mismatch", zap.String("user", userID))
		return nil, chaterr.ErrInvalidOAuthState
	}
	if code == "" {
		return &pending.Origin, fmt.Errorf("%w: missing code", chaterr.ErrInvalidRequest)
	}

	creds, err := m.store.AppCredentials(ctx)
	if err != nil {
		return &pending.Origin, err
	}
	if !creds.OAuthPossible() {
		return &pending.Origin, chaterr.ErrOAuthNotConfigured
	}

	conf := m.config(creds)
	params := url.Values{
		"client_id":     {creds.ClientID},
		"client_secret": {creds.ClientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {conf.RedirectURL},
	}
	now := m.now()
	tok, err := m.exchanger.Exchange(ctx, conf.Endpoint.TokenURL, params, http.MethodPost)
	if err != nil {
		return &pending.Origin, err
	}
	if err := m.store.SaveTokens(ctx, userID, tok, now); err != nil {
		return &pending.Origin, fmt.Errorf("persist tokens: %w", err)
	}

	if pending.Origin.Surface == models.OriginFiles {
		if err := m.store.PutFilesToSend(ctx, userID, &models.FilesToSend{
			FileIDs:    pending.Origin.FileIDs,
			CurrentDir: pending.Origin.Dir,
		}); err != nil {
			return &pending.Origin, err
		}
	}
	m.logger.Info("oauth connection established", zap.String("user", userID))
	return &pending.Origin, nil
}

func (m *Manager) config(creds *models.AppCredentials) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     m.provider.Endpoint(creds.InstanceURL),
		Scopes:       m.provider.Scopes(),
		RedirectURL:  m.redirectURL,
	}
}

// randomState returns 16 random bytes as hex.
func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", b), nil
}
