package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/VidhuSarwal/chatshare/internal/chaterr"
	"github.com/VidhuSarwal/chatshare/internal/models"
	"github.com/VidhuSarwal/chatshare/internal/oauth"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	slackAPIBase   = "https://slack.com/api/"
	slackAuthURL   = "https://slack.com/oauth/v2/authorize"
	slackTokenURL  = "https://slack.com/api/oauth.v2.access"
	slackUserScope = "channels:read,groups:read,im:read,mpim:read,users:read,chat:write,files:write"
)

// Slack errors that mean the token is no longer usable.
var slackAuthErrors = map[string]bool{
	"invalid_auth":     true,
	"not_authed":       true,
	"token_revoked":    true,
	"token_expired":    true,
	"account_inactive": true,
}

// Slack uses user tokens from the v2 OAuth flow; files post in one step.
type Slack struct {
	logger *zap.Logger
}

func NewSlack(logger *zap.Logger) *Slack {
	return &Slack{logger: logger}
}

func (s *Slack) Name() string        { return "slack" }
func (s *Slack) DisplayName() string { return "Slack" }

func (s *Slack) APIBaseURL(string) string { return slackAPIBase }

func (s *Slack) Endpoint(string) oauth2.Endpoint {
	return oauth2.Endpoint{AuthURL: slackAuthURL, TokenURL: slackTokenURL, AuthStyle: oauth2.AuthStyleInParams}
}

// Scopes is empty: Slack user scopes travel in user_scope.
func (s *Slack) Scopes() []string { return nil }

func (s *Slack) AuthCodeOptions() []oauth2.AuthCodeOption {
	return []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("user_scope", slackUserScope)}
}

func (s *Slack) Shape() oauth.ResponseShape { return oauth.NestedShape{Key: "authed_user"} }

// slackEnvelope is the ok/error pair every Web API reply carries.
type slackEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (e slackEnvelope) err(endpoint string) error {
	if e.OK {
		return nil
	}
	if slackAuthErrors[e.Error] {
		return fmt.Errorf("%w: %s: %s", chaterr.ErrBadCredentials, endpoint, e.Error)
	}
	return fmt.Errorf("slack %s: %s", endpoint, e.Error)
}

// call runs req and decodes the reply into out, which must embed slackEnvelope.
func (s *Slack) call(ctx context.Context, api Caller, req Request, out any) error {
	resp, err := api.Do(ctx, req)
	if err != nil {
		return err
	}
	var env slackEnvelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return chaterr.NewTransport(fmt.Errorf("decode %s response: %w", req.Endpoint, err))
	}
	if err := env.err(req.Endpoint); err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return chaterr.NewTransport(fmt.Errorf("decode %s response: %w", req.Endpoint, err))
		}
	}
	return nil
}

type slackUser struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Profile struct {
		DisplayName string `json:"display_name"`
		RealName    string `json:"real_name"`
		Image192    string `json:"image_192"`
		Image72     string `json:"image_72"`
	} `json:"profile"`
}

func (u *slackUser) displayName() string {
	return firstNonEmpty(u.Profile.DisplayName, u.Profile.RealName, u.Name)
}

func (s *Slack) userInfo(ctx context.Context, api Caller, userID, remoteID string) (*slackUser, error) {
	var out struct {
		User slackUser `json:"user"`
	}
	err := s.call(ctx, api, Request{
		UserID:   userID,
		Method:   http.MethodGet,
		Endpoint: "users.info",
		Params:   map[string]any{"user": remoteID},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (s *Slack) CurrentUser(ctx context.Context, api Caller, userID string) (*models.RemoteUser, error) {
	var auth struct {
		UserID string `json:"user_id"`
		User   string `json:"user"`
	}
	if err := s.call(ctx, api, Request{UserID: userID, Method: http.MethodGet, Endpoint: "auth.test"}, &auth); err != nil {
		return nil, err
	}
	u := &models.RemoteUser{ID: auth.UserID, DisplayName: auth.User}
	if info, err := s.userInfo(ctx, api, userID, auth.UserID); err == nil {
		u.DisplayName = firstNonEmpty(info.displayName(), auth.User)
	}
	return u, nil
}

type slackConversation struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsChannel bool   `json:"is_channel"`
	IsGroup   bool   `json:"is_group"`
	IsIM      bool   `json:"is_im"`
	IsMPIM    bool   `json:"is_mpim"`
	User      string `json:"user"`
	Topic     struct {
		Value string `json:"value"`
	} `json:"topic"`
	Purpose struct {
		Value string `json:"value"`
	} `json:"purpose"`
}

func (s *Slack) ListChannels(ctx context.Context, api Caller, userID, _ string) ([]models.Channel, error) {
	var out struct {
		Channels []slackConversation `json:"channels"`
	}
	err := s.call(ctx, api, Request{
		UserID:   userID,
		Method:   http.MethodGet,
		Endpoint: "users.conversations",
		Params: map[string]any{
			"types":            "public_channel,private_channel,mpim,im",
			"exclude_archived": true,
			"limit":            1000,
		},
	}, &out)
	if err != nil {
		return nil, err
	}

	var peers []string
	for _, c := range out.Channels {
		if c.IsIM && c.User != "" {
			peers = append(peers, c.User)
		}
	}
	names := resolveNames(ctx, peers, s.logger, func(ctx context.Context, id string) (string, error) {
		u, err := s.userInfo(ctx, api, userID, id)
		if err != nil {
			return "", err
		}
		return u.displayName(), nil
	})

	channels := make([]models.Channel, 0, len(out.Channels))
	for _, c := range out.Channels {
		switch {
		case c.IsGroup && c.IsMPIM:
			channels = append(channels, models.Channel{
				ID:   c.ID,
				Name: firstNonEmpty(c.Topic.Value, c.Purpose.Value, c.Name, "Group"),
				Type: models.ChannelTypeGroup,
			})
		case c.IsChannel && !c.IsMPIM:
			channels = append(channels, models.Channel{ID: c.ID, Name: c.Name, Type: models.ChannelTypeChannel})
		case c.IsIM && c.User != "":
			channels = append(channels, models.Channel{ID: c.ID, Name: names[c.User], Type: models.ChannelTypeDirect})
		}
	}
	return channels, nil
}

// SendMessage ignores remoteFileIDs: Slack uploads are already posted.
func (s *Slack) SendMessage(ctx context.Context, api Caller, userID, text, channelID string, _ []string) error {
	return s.call(ctx, api, Request{
		UserID:   userID,
		Method:   http.MethodPost,
		Endpoint: "chat.postMessage",
		JSON:     map[string]any{"channel": channelID, "text": text},
	}, nil)
}

func (s *Slack) UploadFile(ctx context.Context, api Caller, userID, channelID, filename string, content io.Reader) (string, error) {
	err := s.call(ctx, api, Request{
		UserID:   userID,
		Method:   http.MethodPost,
		Endpoint: "files.upload",
		Params:   map[string]any{"channels": channelID, "filename": filename},
		Body:     content,
	}, nil)
	return "", err
}

func (s *Slack) Avatar(ctx context.Context, api Caller, userID, remoteUserID string) (*Response, error) {
	u, err := s.userInfo(ctx, api, userID, remoteUserID)
	if err != nil {
		return nil, err
	}
	src := firstNonEmpty(u.Profile.Image192, u.Profile.Image72)
	if src == "" || !strings.HasPrefix(src, "http") {
		return nil, fmt.Errorf("no avatar for %s", remoteUserID)
	}
	return api.Download(ctx, userID, src)
}
