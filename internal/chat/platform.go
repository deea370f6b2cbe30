package chat

import (
	"context"
	"io"
	"sync"

	"github.com/VidhuSarwal/chatshare/internal/models"
	"github.com/VidhuSarwal/chatshare/internal/oauth"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Caller is the request surface platforms build on. *Client implements it.
type Caller interface {
	Do(ctx context.Context, req Request) (*Response, error)
	DoJSON(ctx context.Context, req Request, out any) error
	Download(ctx context.Context, userID, rawURL string) (*Response, error)
}

// Platform is one chat product (Slack or Mattermost). Whether file sends
// take one or two steps is a property of the platform.
type Platform interface {
	oauth.Provider

	Name() string
	DisplayName() string
	APIBaseURL(instanceURL string) string

	CurrentUser(ctx context.Context, api Caller, userID string) (*models.RemoteUser, error)
	// ListChannels returns the user's conversations. selfID is the user's
	// remote id when already known.
	ListChannels(ctx context.Context, api Caller, userID, selfID string) ([]models.Channel, error)
	SendMessage(ctx context.Context, api Caller, userID, text, channelID string, remoteFileIDs []string) error
	// UploadFile returns the remote file id on two-step platforms and "" on
	// platforms where the upload already posts the file.
	UploadFile(ctx context.Context, api Caller, userID, channelID, filename string, content io.Reader) (string, error)
	Avatar(ctx context.Context, api Caller, userID, remoteUserID string) (*Response, error)
}

// peerLookupLimit bounds concurrent user lookups during channel listing.
const peerLookupLimit = 4

// resolveNames looks up each distinct id once. Failed lookups fall back to the id.
func resolveNames(ctx context.Context, ids []string, logger *zap.Logger, lookup func(ctx context.Context, id string) (string, error)) map[string]string {
	names := make(map[string]string, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(peerLookupLimit)
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		id := id
		g.Go(func() error {
			name, err := lookup(gctx, id)
			if err != nil || name == "" {
				if err != nil {
					logger.Debug("peer lookup failed", zap.String("peer", id), zap.Error(err))
				}
				name = id
			}
			mu.Lock()
			names[id] = name
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return names
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
