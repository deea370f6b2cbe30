package models

import "time"

// Connection is a user's link to the remote chat workspace.
type Connection struct {
	AccessToken       string
	RefreshToken      string
	ExpiresAt         time.Time // zero when the token never expires or is not refreshable
	RemoteUserID      string
	RemoteDisplayName string
}

// Connected reports whether an access token is present.
func (c *Connection) Connected() bool {
	return c != nil && c.AccessToken != ""
}

// TokenSet is what an OAuth exchange yields.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // seconds, 0 when absent
	RemoteUserID string
}

// RemoteUser identifies the account on the chat platform.
type RemoteUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// AppCredentials is the installation-wide OAuth client configuration.
type AppCredentials struct {
	ClientID     string
	ClientSecret string // decrypted
	InstanceURL  string
	UsePopup     bool
}

// OAuthPossible is true only when both client id and secret are configured.
func (c *AppCredentials) OAuthPossible() bool {
	return c != nil && c.ClientID != "" && c.ClientSecret != ""
}

// Origin surfaces that can start an OAuth flow.
const (
	OriginSettings = "settings"
	OriginFiles    = "files"
)

// OAuthOrigin records which surface started the flow so the redirect can return there.
type OAuthOrigin struct {
	Surface string  `json:"surface"`
	Dir     string  `json:"dir,omitempty"`
	FileIDs []int64 `json:"file_ids,omitempty"`
}

// PendingOAuthState is the single-use anti-CSRF record of an in-flight OAuth flow.
type PendingOAuthState struct {
	State  string
	Origin OAuthOrigin
}

// FilesToSend is the pending send resumed after an OAuth round trip.
type FilesToSend struct {
	FileIDs    []int64 `json:"file_ids"`
	CurrentDir string  `json:"current_dir"`
}

// WebhookConfig holds a user's webhook targets.
type WebhookConfig struct {
	Enabled              bool
	Secret               string
	CalendarCreatedURL   string
	CalendarUpdatedURL   string
	DailySummaryURL      string
	ImminentEventsURL    string
	LastDailySummaryDate string // YYYY-MM-DD in the job timezone
}
