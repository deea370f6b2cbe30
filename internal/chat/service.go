package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/VidhuSarwal/chatshare/internal/chaterr"
	"github.com/VidhuSarwal/chatshare/internal/files"
	"github.com/VidhuSarwal/chatshare/internal/models"

	"go.uber.org/zap"
)

// FileSource resolves file ids of a user.
type FileSource interface {
	Get(ctx context.Context, owner string, fileID int64) (*files.Node, error)
}

// ShareManager mints public links.
type ShareManager interface {
	CreateShare(ctx context.Context, req *models.ShareRequest) (*models.ShareLink, error)
	SetPassword(ctx context.Context, shareID, password string) error
	SetExpiration(ctx context.Context, shareID string, expiresAt *time.Time) error
}

// Identity reads and records the remote account of a user.
type Identity interface {
	Connection(ctx context.Context, userID string) (*models.Connection, error)
	SaveIdentity(ctx context.Context, userID string, u *models.RemoteUser) error
}

// Service is the user-facing chat API.
type Service struct {
	platform Platform
	api      Caller
	identity Identity
	files    FileSource
	shares   ShareManager
	logger   *zap.Logger
}

func NewService(platform Platform, api Caller, identity Identity, fs FileSource, shares ShareManager, logger *zap.Logger) *Service {
	return &Service{
		platform: platform,
		api:      api,
		identity: identity,
		files:    fs,
		shares:   shares,
		logger:   logger,
	}
}

func (s *Service) Platform() Platform { return s.platform }

// CurrentUser fetches the remote identity and stores it with the connection.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*models.RemoteUser, error) {
	u, err := s.platform.CurrentUser(ctx, s.api, userID)
	if err != nil {
		return nil, err
	}
	if err := s.identity.SaveIdentity(ctx, userID, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) ListChannels(ctx context.Context, userID string) ([]models.Channel, error) {
	conn, err := s.identity.Connection(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.platform.ListChannels(ctx, s.api, userID, conn.RemoteUserID)
}

func (s *Service) SendMessage(ctx context.Context, userID, text, channelID string, remoteFileIDs []string) error {
	if channelID == "" {
		return fmt.Errorf("%w: channel id required", chaterr.ErrInvalidRequest)
	}
	return s.platform.SendMessage(ctx, s.api, userID, text, channelID, remoteFileIDs)
}

// SendFile uploads one regular file. The returned remote id is set only on
// platforms that attach uploads through a later SendMessage.
func (s *Service) SendFile(ctx context.Context, userID string, fileID int64, channelID string) (string, error) {
	if channelID == "" {
		return "", fmt.Errorf("%w: channel id required", chaterr.ErrInvalidRequest)
	}
	node, err := s.files.Get(ctx, userID, fileID)
	if err != nil {
		return "", err
	}
	if node.IsDir {
		return "", fmt.Errorf("%w: %s", chaterr.ErrNotAFile, node.Name)
	}
	rc, err := node.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	remoteID, err := s.platform.UploadFile(ctx, s.api, userID, channelID, node.Name, rc)
	if err != nil {
		return "", err
	}
	s.logger.Info("file sent",
		zap.String("user", userID),
		zap.Int64("file_id", fileID),
		zap.String("channel", channelID))
	return remoteID, nil
}

// SendPublicLinks shares every resolvable file and posts one message listing
// the links. Share and password failures abort the whole send.
func (s *Service) SendPublicLinks(ctx context.Context, userID string, req *models.PublicLinksRequest) error {
	if req.ChannelID == "" {
		return fmt.Errorf("%w: channel id required", chaterr.ErrInvalidRequest)
	}
	var expiration *time.Time
	if req.ExpirationDate != "" {
		t, err := parseDate(req.ExpirationDate)
		if err != nil {
			return fmt.Errorf("%w: expiration date %q", chaterr.ErrInvalidRequest, req.ExpirationDate)
		}
		expiration = &t
	}
	perm := models.PermissionRead
	if req.Permission == "edit" {
		perm = models.PermissionReadUpdate
	}
	label := s.platform.DisplayName() + " " + req.ChannelName

	var lines []string
	for _, id := range req.FileIDs {
		node, err := s.files.Get(ctx, userID, id)
		if err != nil {
			if !errors.Is(err, chaterr.ErrFilesNotFound) {
				s.logger.Warn("skipping file", zap.String("user", userID), zap.Int64("file_id", id), zap.Error(err))
			}
			continue
		}
		link, err := s.shares.CreateShare(ctx, &models.ShareRequest{
			Owner:      userID,
			FileID:     node.ID,
			Name:       node.Name,
			IsDir:      node.IsDir,
			Permission: perm,
			Label:      label,
			Expiration: expiration,
		})
		if err != nil {
			return err
		}
		if req.Password != "" {
			if err := s.shares.SetPassword(ctx, link.ID, req.Password); err != nil {
				return err
			}
		}
		if expiration == nil {
			if err := s.shares.SetExpiration(ctx, link.ID, nil); err != nil {
				return err
			}
		}
		lines = append(lines, `"`+node.Name+`": `+link.URL)
	}
	if len(lines) == 0 {
		return chaterr.ErrFilesNotFound
	}

	message := req.Comment + "\n" + strings.Join(lines, "\n")
	return s.platform.SendMessage(ctx, s.api, userID, message, req.ChannelID, nil)
}

// Avatar returns the remote avatar, or a generated placeholder when the
// platform has none.
func (s *Service) Avatar(ctx context.Context, userID, remoteUserID string) ([]byte, string) {
	resp, err := s.platform.Avatar(ctx, s.api, userID, remoteUserID)
	if err == nil && len(resp.Body) > 0 {
		ct := resp.ContentType
		if ct == "" {
			ct = "image/png"
		}
		return resp.Body, ct
	}
	if err != nil {
		s.logger.Debug("avatar unavailable, using placeholder", zap.String("peer", remoteUserID), zap.Error(err))
	}
	return PlaceholderAvatar(remoteUserID), "image/png"
}

// parseDate accepts YYYY-MM-DD or a full RFC 3339 timestamp.
func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}
