// Package handlers exposes chatshare over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/VidhuSarwal/chatshare/internal/auth"
	"github.com/VidhuSarwal/chatshare/internal/calendar"
	"github.com/VidhuSarwal/chatshare/internal/chaterr"
	"github.com/VidhuSarwal/chatshare/internal/files"
	"github.com/VidhuSarwal/chatshare/internal/models"
	"github.com/VidhuSarwal/chatshare/internal/sharing"

	"go.uber.org/zap"
)

// SettingsStore is the per-user and app-wide configuration surface.
type SettingsStore interface {
	Connection(ctx context.Context, userID string) (*models.Connection, error)
	AppCredentials(ctx context.Context) (*models.AppCredentials, error)
	TakeFilesToSend(ctx context.Context, userID string) (*models.FilesToSend, error)
	SetUserValues(ctx context.Context, userID string, values map[string]string) error
	SetAppValues(ctx context.Context, values map[string]string) error
	SetSensitiveAppValues(ctx context.Context, values map[string]string) error
}

// OAuthFlow starts and completes the authorization code flow.
type OAuthFlow interface {
	AuthURL(ctx context.Context, userID string, origin models.OAuthOrigin) (string, error)
	Complete(ctx context.Context, userID, code, state string) (*models.OAuthOrigin, error)
}

// ChatService is the user-facing chat API.
type ChatService interface {
	CurrentUser(ctx context.Context, userID string) (*models.RemoteUser, error)
	ListChannels(ctx context.Context, userID string) ([]models.Channel, error)
	SendMessage(ctx context.Context, userID, text, channelID string, remoteFileIDs []string) error
	SendFile(ctx context.Context, userID string, fileID int64, channelID string) (string, error)
	SendPublicLinks(ctx context.Context, userID string, req *models.PublicLinksRequest) error
	Avatar(ctx context.Context, userID, remoteUserID string) ([]byte, string)
}

type CalendarService interface {
	Create(ctx context.Context, userID string, e *models.CalendarEvent) (*models.CalendarEvent, error)
	Update(ctx context.Context, userID, id string, e *models.CalendarEvent) (*models.CalendarEvent, error)
	Get(ctx context.Context, userID, id string) (*models.CalendarEvent, error)
}

type ShareResolver interface {
	Resolve(ctx context.Context, token, password string) (*models.Share, error)
}

type FileIndex interface {
	Get(ctx context.Context, owner string, fileID int64) (*files.Node, error)
	List(ctx context.Context, owner string) ([]*files.Node, error)
	Scan(ctx context.Context, owner string) (*files.ScanResult, error)
}

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Settings SettingsStore
	OAuth    OAuthFlow
	Chat     ChatService
	Calendar CalendarService
	Shares   ShareResolver
	Files    FileIndex
}

// Handler serves every chatshare endpoint.
type Handler struct {
	Deps
	platform    string
	settingsURL string
	filesURL    string
	logger      *zap.Logger
}

// New builds the HTTP layer. platform is the lowercase platform name used in
// redirect query parameters, settingsURL and filesURL are where the browser
// returns after OAuth.
func New(deps Deps, platform, settingsURL, filesURL string, logger *zap.Logger) *Handler {
	return &Handler{
		Deps:        deps,
		platform:    platform,
		settingsURL: settingsURL,
		filesURL:    filesURL,
		logger:      logger,
	}
}

// Routes registers all endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux, a *auth.Authenticator) {
	session := a.Middleware

	// Connection and OAuth
	mux.HandleFunc("/is-connected", session(requireMethod("GET", h.IsConnectedHandler)))
	mux.HandleFunc("/oauth-start", session(requireMethod("GET", h.OAuthStartHandler)))
	mux.HandleFunc("/files-to-send", session(requireMethod("GET", h.FilesToSendHandler)))
	mux.HandleFunc("/oauth-redirect", session(requireMethod("GET", h.OAuthRedirectHandler)))
	mux.HandleFunc("/popup-success", requireMethod("GET", h.PopupSuccessHandler))

	// Settings
	mux.HandleFunc("/config", session(requireMethod("PUT", h.ConfigHandler)))
	mux.HandleFunc("/admin-config", a.RequireAdmin(requireMethod("PUT", h.AdminConfigHandler)))
	mux.HandleFunc("/sensitive-admin-config", a.RequireAdmin(requireMethod("PUT", h.SensitiveAdminConfigHandler)))

	// Chat
	mux.HandleFunc("/sendMessage", session(requireMethod("POST", h.SendMessageHandler)))
	mux.HandleFunc("/sendFile", session(requireMethod("POST", h.SendFileHandler)))
	mux.HandleFunc("/sendPublicLinks", session(requireMethod("POST", h.SendPublicLinksHandler)))
	mux.HandleFunc("/channels", session(requireMethod("GET", h.ChannelsHandler)))
	mux.HandleFunc("/users/{id}/image", session(requireMethod("GET", h.AvatarHandler)))

	// Calendar
	mux.HandleFunc("/calendar/events", session(requireMethod("POST", h.CreateCalendarEventHandler)))
	mux.HandleFunc("/calendar/events/{id}", session(h.CalendarEventHandler))

	// Files and public links
	mux.HandleFunc("/files", session(requireMethod("GET", h.ListFilesHandler)))
	mux.HandleFunc("/files/scan", session(requireMethod("POST", h.ScanFilesHandler)))
	mux.HandleFunc("/s/{token}", requireMethod("GET", h.SharedFileHandler))

	mux.HandleFunc("/color/{hex}", requireMethod("GET", h.ColorHandler))
	mux.HandleFunc("/health", requireMethod("GET", h.HealthHandler))
}

func requireMethod(verb string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != verb {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func sessionUser(r *http.Request) string {
	uid, _ := auth.UserID(r.Context())
	return uid
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sharing.ErrShareNotFound), errors.Is(err, calendar.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, sharing.ErrShareExpired):
		return http.StatusGone
	case errors.Is(err, sharing.ErrPasswordRequired):
		return http.StatusUnauthorized
	case errors.Is(err, sharing.ErrWrongPassword):
		return http.StatusForbidden
	default:
		return chaterr.HTTPStatus(err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		h.logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": chaterr.Message(err)})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Join(chaterr.ErrInvalidRequest, err)
	}
	return nil
}

// HealthHandler - GET /health
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
