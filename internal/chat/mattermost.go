package chat

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/VidhuSarwal/chatshare/internal/models"
	"github.com/VidhuSarwal/chatshare/internal/oauth"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Mattermost is a self-hosted instance reached through its REST API v4.
// Files are uploaded first and attached to a post in a second call.
type Mattermost struct {
	logger *zap.Logger
}

func NewMattermost(logger *zap.Logger) *Mattermost {
	return &Mattermost{logger: logger}
}

func (m *Mattermost) Name() string        { return "mattermost" }
func (m *Mattermost) DisplayName() string { return "Mattermost" }

func (m *Mattermost) APIBaseURL(instanceURL string) string {
	return strings.TrimRight(instanceURL, "/") + "/api/v4/"
}

func (m *Mattermost) Endpoint(instanceURL string) oauth2.Endpoint {
	base := strings.TrimRight(instanceURL, "/")
	return oauth2.Endpoint{
		AuthURL:   base + "/oauth/authorize",
		TokenURL:  base + "/oauth/access_token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func (m *Mattermost) Scopes() []string                        { return nil }
func (m *Mattermost) AuthCodeOptions() []oauth2.AuthCodeOption { return nil }
func (m *Mattermost) Shape() oauth.ResponseShape               { return oauth.FlatShape{} }

type mmUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Nickname  string `json:"nickname"`
}

func (u *mmUser) displayName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	return firstNonEmpty(full, u.Nickname, u.Username)
}

func (m *Mattermost) user(ctx context.Context, api Caller, userID, remoteID string) (*mmUser, error) {
	var u mmUser
	err := api.DoJSON(ctx, Request{
		UserID:   userID,
		Method:   http.MethodGet,
		Endpoint: "users/" + url.PathEscape(remoteID),
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (m *Mattermost) CurrentUser(ctx context.Context, api Caller, userID string) (*models.RemoteUser, error) {
	u, err := m.user(ctx, api, userID, "me")
	if err != nil {
		return nil, err
	}
	return &models.RemoteUser{ID: u.ID, DisplayName: u.displayName()}, nil
}

type mmChannel struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Header      string `json:"header"`
	Purpose     string `json:"purpose"`
}

// directPeer returns the other member of a direct channel named "a__b".
func directPeer(name, selfID string) string {
	parts := strings.Split(name, "__")
	if len(parts) != 2 {
		return ""
	}
	if parts[0] == selfID {
		return parts[1]
	}
	if parts[1] == selfID {
		return parts[0]
	}
	return ""
}

func (m *Mattermost) ListChannels(ctx context.Context, api Caller, userID, selfID string) ([]models.Channel, error) {
	if selfID == "" {
		me, err := m.CurrentUser(ctx, api, userID)
		if err != nil {
			return nil, err
		}
		selfID = me.ID
	}

	var raw []mmChannel
	err := api.DoJSON(ctx, Request{
		UserID:   userID,
		Method:   http.MethodGet,
		Endpoint: "users/me/channels",
		Params:   map[string]any{"include_deleted": false},
	}, &raw)
	if err != nil {
		return nil, err
	}

	var peers []string
	for _, c := range raw {
		if c.Type == "D" {
			peers = append(peers, directPeer(c.Name, selfID))
		}
	}
	names := resolveNames(ctx, peers, m.logger, func(ctx context.Context, id string) (string, error) {
		u, err := m.user(ctx, api, userID, id)
		if err != nil {
			return "", err
		}
		return u.displayName(), nil
	})

	channels := make([]models.Channel, 0, len(raw))
	for _, c := range raw {
		switch c.Type {
		case "G":
			channels = append(channels, models.Channel{
				ID:   c.ID,
				Name: firstNonEmpty(c.Header, c.Purpose, c.DisplayName, "Group"),
				Type: models.ChannelTypeGroup,
			})
		case "O", "P":
			channels = append(channels, models.Channel{
				ID:   c.ID,
				Name: firstNonEmpty(c.DisplayName, c.Name),
				Type: models.ChannelTypeChannel,
			})
		case "D":
			peer := directPeer(c.Name, selfID)
			if peer == "" {
				continue
			}
			channels = append(channels, models.Channel{ID: c.ID, Name: names[peer], Type: models.ChannelTypeDirect})
		}
	}
	return channels, nil
}

func (m *Mattermost) SendMessage(ctx context.Context, api Caller, userID, text, channelID string, remoteFileIDs []string) error {
	post := map[string]any{"channel_id": channelID, "message": text}
	if len(remoteFileIDs) > 0 {
		post["file_ids"] = remoteFileIDs
	}
	_, err := api.Do(ctx, Request{
		UserID:   userID,
		Method:   http.MethodPost,
		Endpoint: "posts",
		JSON:     post,
	})
	return err
}

func (m *Mattermost) UploadFile(ctx context.Context, api Caller, userID, channelID, filename string, content io.Reader) (string, error) {
	var out struct {
		FileInfos []struct {
			ID string `json:"id"`
		} `json:"file_infos"`
	}
	err := api.DoJSON(ctx, Request{
		UserID:   userID,
		Method:   http.MethodPost,
		Endpoint: "files",
		Params:   map[string]any{"channel_id": channelID, "filename": filename},
		Body:     content,
	}, &out)
	if err != nil {
		return "", err
	}
	if len(out.FileInfos) == 0 || out.FileInfos[0].ID == "" {
		return "", fmt.Errorf("mattermost upload of %s returned no file id", filename)
	}
	return out.FileInfos[0].ID, nil
}

func (m *Mattermost) Avatar(ctx context.Context, api Caller, userID, remoteUserID string) (*Response, error) {
	return api.Do(ctx, Request{
		UserID:   userID,
		Method:   http.MethodGet,
		Endpoint: "users/" + url.PathEscape(remoteUserID) + "/image",
	})
}
