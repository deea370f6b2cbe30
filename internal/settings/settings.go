// Package settings gives typed access to the values kept in the credential store.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/VidhuSarwal/chatshare/internal/chaterr"
	"github.com/VidhuSarwal/chatshare/internal/models"
	"github.com/VidhuSarwal/chatshare/internal/secrets"
	"github.com/VidhuSarwal/chatshare/internal/store"

	"go.uber.org/zap"
)

// Settings wraps a ConfigStore. Tokens and secrets are encrypted at rest.
type Settings struct {
	store  store.ConfigStore
	cipher secrets.Cipher
	logger *zap.Logger
}

func New(st store.ConfigStore, cipher secrets.Cipher, logger *zap.Logger) *Settings {
	return &Settings{store: st, cipher: cipher, logger: logger}
}

// Connection loads the user's remote connection. An absent connection has an empty AccessToken.
func (s *Settings) Connection(ctx context.Context, userID string) (*models.Connection, error) {
	conn := &models.Connection{}
	var err error
	if conn.AccessToken, err = s.getSecret(ctx, userID, store.KeyToken); err != nil {
		return nil, err
	}
	if conn.RefreshToken, err = s.getSecret(ctx, userID, store.KeyRefreshToken); err != nil {
		return nil, err
	}
	expires, err := s.store.GetUserValue(ctx, userID, store.KeyTokenExpiresAt)
	if err != nil {
		return nil, err
	}
	if expires != "" {
		sec, perr := strconv.ParseInt(expires, 10, 64)
		if perr != nil {
			s.logger.Warn("ignoring malformed token expiry", zap.String("user", userID), zap.String("value", expires))
		} else {
			conn.ExpiresAt = time.Unix(sec, 0)
		}
	}
	if conn.RemoteUserID, err = s.store.GetUserValue(ctx, userID, store.KeyUserID); err != nil {
		return nil, err
	}
	if conn.RemoteDisplayName, err = s.store.GetUserValue(ctx, userID, store.KeyUserName); err != nil {
		return nil, err
	}
	return conn, nil
}

// SaveTokens persists an exchange result. A missing refresh token keeps the
// previous one; a missing expires_in clears the stored expiry.
func (s *Settings) SaveTokens(ctx context.Context, userID string, tok *models.TokenSet, now time.Time) error {
	if err := s.setSecret(ctx, userID, store.KeyToken, tok.AccessToken); err != nil {
		return err
	}
	if tok.RefreshToken != "" {
		if err := s.setSecret(ctx, userID, store.KeyRefreshToken, tok.RefreshToken); err != nil {
			return err
		}
	}
	if tok.ExpiresIn > 0 {
		expiresAt := now.Unix() + tok.ExpiresIn
		if err := s.store.SetUserValue(ctx, userID, store.KeyTokenExpiresAt, strconv.FormatInt(expiresAt, 10)); err != nil {
			return err
		}
	} else if err := s.store.DeleteUserValue(ctx, userID, store.KeyTokenExpiresAt); err != nil {
		return err
	}
	if tok.RemoteUserID != "" {
		return s.store.SetUserValue(ctx, userID, store.KeyUserID, tok.RemoteUserID)
	}
	return nil
}

// SaveIdentity records the remote account the user connected as.
func (s *Settings) SaveIdentity(ctx context.Context, userID string, u *models.RemoteUser) error {
	if err := s.store.SetUserValue(ctx, userID, store.KeyUserID, u.ID); err != nil {
		return err
	}
	return s.store.SetUserValue(ctx, userID, store.KeyUserName, u.DisplayName)
}

// ClearConnection forgets tokens and identity.
func (s *Settings) ClearConnection(ctx context.Context, userID string) error {
	for _, key := range []string{store.KeyToken, store.KeyRefreshToken, store.KeyTokenExpiresAt, store.KeyUserID, store.KeyUserName} {
		if err := s.store.DeleteUserValue(ctx, userID, key); err != nil {
			return err
		}
	}
	return nil
}

// AppCredentials loads the OAuth client configuration. A client secret that
// cannot be decrypted yields ErrInvalidClientSecret.
func (s *Settings) AppCredentials(ctx context.Context) (*models.AppCredentials, error) {
	creds := &models.AppCredentials{}
	var err error
	if creds.ClientID, err = s.store.GetAppValue(ctx, store.AppKeyClientID); err != nil {
		return nil, err
	}
	enc, err := s.store.GetAppValue(ctx, store.AppKeyClientSecret)
	if err != nil {
		return nil, err
	}
	if creds.ClientSecret, err = s.cipher.Decrypt(enc); err != nil {
		s.logger.Error("client secret could not be decrypted", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", chaterr.ErrInvalidClientSecret, err)
	}
	if creds.InstanceURL, err = s.InstanceURL(ctx); err != nil {
		return nil, err
	}
	if creds.UsePopup, err = s.UsePopup(ctx); err != nil {
		return nil, err
	}
	return creds, nil
}

func (s *Settings) InstanceURL(ctx context.Context) (string, error) {
	v, err := s.store.GetAppValue(ctx, store.AppKeyOAuthInstanceURL)
	return strings.TrimRight(v, "/"), err
}

func (s *Settings) UsePopup(ctx context.Context) (bool, error) {
	v, err := s.store.GetAppValue(ctx, store.AppKeyUsePopup)
	return parseBool(v), err
}

var appKeys = map[string]bool{
	store.AppKeyClientID:         true,
	store.AppKeyOAuthInstanceURL: true,
	store.AppKeyUsePopup:         true,
}

// SetAppValues stores non-sensitive admin settings.
func (s *Settings) SetAppValues(ctx context.Context, values map[string]string) error {
	for key := range values {
		if !appKeys[key] {
			return fmt.Errorf("%w: unknown admin setting %q", chaterr.ErrInvalidRequest, key)
		}
	}
	for key, value := range values {
		switch key {
		case store.AppKeyUsePopup:
			value = formatBool(parseBool(value))
		case store.AppKeyOAuthInstanceURL:
			value = strings.TrimRight(strings.TrimSpace(value), "/")
		}
		if err := s.store.SetAppValue(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

// SetSensitiveAppValues stores secrets encrypted.
func (s *Settings) SetSensitiveAppValues(ctx context.Context, values map[string]string) error {
	for key := range values {
		if key != store.AppKeyClientSecret {
			return fmt.Errorf("%w: unknown sensitive setting %q", chaterr.ErrInvalidRequest, key)
		}
	}
	for key, value := range values {
		enc, err := s.cipher.Encrypt(value)
		if err != nil {
			return fmt.Errorf("encrypt %s: %w", key, err)
		}
		if err := s.store.SetAppValue(ctx, key, enc); err != nil {
			return err
		}
	}
	return nil
}

var userKeys = map[string]bool{
	store.KeyToken:               true,
	store.KeyWebhooksEnabled:     true,
	store.KeyWebhookSecret:       true,
	store.KeyCalendarCreatedHook: true,
	store.KeyCalendarUpdatedHook: true,
	store.KeyDailySummaryHook:    true,
	store.KeyImminentEventsHook:  true,
}

// SetUserValues applies user preferences. Setting "token" to "" disconnects;
// any other token value is rejected.
func (s *Settings) SetUserValues(ctx context.Context, userID string, values map[string]string) error {
	for key, value := range values {
		if !userKeys[key] {
			return fmt.Errorf("%w: unknown setting %q", chaterr.ErrInvalidRequest, key)
		}
		if key == store.KeyToken && value != "" {
			return fmt.Errorf("%w: token can only be cleared", chaterr.ErrInvalidRequest)
		}
	}
	for key, value := range values {
		var err error
		switch key {
		case store.KeyToken:
			err = s.ClearConnection(ctx, userID)
		case store.KeyWebhookSecret:
			err = s.setSecret(ctx, userID, key, value)
		case store.KeyWebhooksEnabled:
			err = s.store.SetUserValue(ctx, userID, key, formatBool(parseBool(value)))
		default:
			err = s.store.SetUserValue(ctx, userID, key, strings.TrimSpace(value))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// PutPendingState records the nonce and origin of a new OAuth flow.
func (s *Settings) PutPendingState(ctx context.Context, userID string, p *models.PendingOAuthState) error {
	origin, err := json.Marshal(p.Origin)
	if err != nil {
		return err
	}
	if err := s.store.SetUserValue(ctx, userID, store.KeyOAuthState, p.State); err != nil {
		return err
	}
	return s.store.SetUserValue(ctx, userID, store.KeyOAuthOrigin, string(origin))
}

// TakePendingState reads and deletes the pending OAuth state. The stored
// values are removed even when they turn out to be unusable. Returns nil when
// no flow is pending.
func (s *Settings) TakePendingState(ctx context.Context, userID string) (*models.PendingOAuthState, error) {
	state, err := s.store.GetUserValue(ctx, userID, store.KeyOAuthState)
	if err != nil {
		return nil, err
	}
	origin, err := s.store.GetUserValue(ctx, userID, store.KeyOAuthOrigin)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteUserValue(ctx, userID, store.KeyOAuthState); err != nil {
		return nil, err
	}
	if err := s.store.DeleteUserValue(ctx, userID, store.KeyOAuthOrigin); err != nil {
		return nil, err
	}
	if state == "" {
		return nil, nil
	}
	p := &models.PendingOAuthState{State: state, Origin: models.OAuthOrigin{Surface: models.OriginSettings}}
	if origin != "" {
		if err := json.Unmarshal([]byte(origin), &p.Origin); err != nil {
			s.logger.Warn("discarding malformed oauth origin", zap.String("user", userID), zap.Error(err))
			p.Origin = models.OAuthOrigin{Surface: models.OriginSettings}
		}
	}
	return p, nil
}

// PutFilesToSend remembers the files a user picked before being sent through OAuth.
func (s *Settings) PutFilesToSend(ctx context.Context, userID string, f *models.FilesToSend) error {
	ids, err := json.Marshal(f.FileIDs)
	if err != nil {
		return err
	}
	if err := s.store.SetUserValue(ctx, userID, store.KeyFileIDsToSend, string(ids)); err != nil {
		return err
	}
	return s.store.SetUserValue(ctx, userID, store.KeyCurrentDirAfterOAuth, f.CurrentDir)
}

// TakeFilesToSend returns and forgets the pending file selection.
func (s *Settings) TakeFilesToSend(ctx context.Context, userID string) (*models.FilesToSend, error) {
	raw, err := s.store.GetUserValue(ctx, userID, store.KeyFileIDsToSend)
	if err != nil {
		return nil, err
	}
	dir, err := s.store.GetUserValue(ctx, userID, store.KeyCurrentDirAfterOAuth)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteUserValue(ctx, userID, store.KeyFileIDsToSend); err != nil {
		return nil, err
	}
	if err := s.store.DeleteUserValue(ctx, userID, store.KeyCurrentDirAfterOAuth); err != nil {
		return nil, err
	}
	f := &models.FilesToSend{FileIDs: []int64{}, CurrentDir: dir}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &f.FileIDs); err != nil {
			s.logger.Warn("discarding malformed pending file ids", zap.String("user", userID), zap.Error(err))
			f.FileIDs = []int64{}
		}
	}
	return f, nil
}

// WebhookConfig loads the user's webhook targets.
func (s *Settings) WebhookConfig(ctx context.Context, userID string) (*models.WebhookConfig, error) {
	var err error
	get := func(key string) string {
		if err != nil {
			return ""
		}
		var v string
		v, err = s.store.GetUserValue(ctx, userID, key)
		return v
	}
	cfg := &models.WebhookConfig{
		Enabled:              parseBool(get(store.KeyWebhooksEnabled)),
		CalendarCreatedURL:   get(store.KeyCalendarCreatedHook),
		CalendarUpdatedURL:   get(store.KeyCalendarUpdatedHook),
		DailySummaryURL:      get(store.KeyDailySummaryHook),
		ImminentEventsURL:    get(store.KeyImminentEventsHook),
		LastDailySummaryDate: get(store.KeyLastDailySummaryDate),
	}
	if err != nil {
		return nil, err
	}
	if cfg.Secret, err = s.getSecret(ctx, userID, store.KeyWebhookSecret); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *Settings) SetLastDailySummaryDate(ctx context.Context, userID, date string) error {
	return s.store.SetUserValue(ctx, userID, store.KeyLastDailySummaryDate, date)
}

// WebhookUsers lists users with webhooks enabled.
func (s *Settings) WebhookUsers(ctx context.Context) ([]string, error) {
	return s.store.UsersWithValue(ctx, store.KeyWebhooksEnabled, formatBool(true))
}

func (s *Settings) getSecret(ctx context.Context, userID, key string) (string, error) {
	enc, err := s.store.GetUserValue(ctx, userID, key)
	if err != nil || enc == "" {
		return "", err
	}
	plain, err := s.cipher.Decrypt(enc)
	if err != nil {
		return "", fmt.Errorf("decrypt %s: %w", key, err)
	}
	return plain, nil
}

func (s *Settings) setSecret(ctx context.Context, userID, key, value string) error {
	enc, err := s.cipher.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", key, err)
	}
	return s.store.SetUserValue(ctx, userID, key, enc)
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
