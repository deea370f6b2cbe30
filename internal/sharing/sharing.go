// Package sharing mints public links to indexed files and folders.
package sharing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/VidhuSarwal/chatshare/internal/chaterr"
	"github.com/VidhuSarwal/chatshare/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrShareNotFound    = errors.New("share not found")
	ErrShareExpired     = errors.New("share expired")
	ErrPasswordRequired = errors.New("share password required")
	ErrWrongPassword    = errors.New("wrong share password")
)

// Repository persists shares.
type Repository interface {
	InsertShare(ctx context.Context, share *models.Share) error
	GetShare(ctx context.Context, id string) (*models.Share, error)
	GetShareByToken(ctx context.Context, token string) (*models.Share, error)
	SetSharePassword(ctx context.Context, id string, hash []byte) error
	SetShareExpiration(ctx context.Context, id string, expiresAt *time.Time) error
}

// Service creates and resolves public links.
type Service struct {
	repo              Repository
	publicBaseURL     string
	defaultExpireDays int
	logger            *zap.Logger
	now               func() time.Time
}

// NewService builds a share service. defaultExpireDays > 0 gives every new
// share an expiry unless the request carries one.
func NewService(repo Repository, publicBaseURL string, defaultExpireDays int, logger *zap.Logger) *Service {
	return &Service{
		repo:              repo,
		publicBaseURL:     strings.TrimRight(publicBaseURL, "/"),
		defaultExpireDays: defaultExpireDays,
		logger:            logger,
		now:               time.Now,
	}
}

// URL is the public address of a share token.
func (s *Service) URL(token string) string {
	return s.publicBaseURL + "/s/" + token
}

func (s *Service) CreateShare(ctx context.Context, req *models.ShareRequest) (*models.ShareLink, error) {
	perm := req.Permission
	if perm == "" {
		perm = models.PermissionRead
	}
	if perm != models.PermissionRead && perm != models.PermissionReadUpdate {
		return nil, fmt.Errorf("%w: permission %q", chaterr.ErrInvalidRequest, perm)
	}

	share := &models.Share{
		ID:         uuid.NewString(),
		Token:      strings.ReplaceAll(uuid.NewString(), "-", ""),
		Owner:      req.Owner,
		FileID:     req.FileID,
		Name:       req.Name,
		IsDir:      req.IsDir,
		Permission: perm,
		Label:      req.Label,
		ExpiresAt:  req.Expiration,
		CreatedAt:  s.now().UTC(),
	}
	if share.ExpiresAt == nil && s.defaultExpireDays > 0 {
		exp := share.CreatedAt.AddDate(0, 0, s.defaultExpireDays)
		share.ExpiresAt = &exp
	}
	if err := s.repo.InsertShare(ctx, share); err != nil {
		return nil, fmt.Errorf("create share for %s: %w", req.Name, err)
	}
	s.logger.Info("public link created",
		zap.String("share", share.ID),
		zap.String("owner", share.Owner),
		zap.Int64("file_id", share.FileID))
	return s.link(share), nil
}

// SetPassword protects a share. Empty passwords are rejected.
func (s *Service) SetPassword(ctx context.Context, shareID, password string) error {
	if password == "" {
		return fmt.Errorf("%w: empty share password", chaterr.ErrInvalidRequest)
	}
	if _, err := s.existing(ctx, shareID); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash share password: %w", err)
	}
	return s.repo.SetSharePassword(ctx, shareID, hash)
}

// SetExpiration sets or, with nil, clears the expiry.
func (s *Service) SetExpiration(ctx context.Context, shareID string, expiresAt *time.Time) error {
	if _, err := s.existing(ctx, shareID); err != nil {
		return err
	}
	return s.repo.SetShareExpiration(ctx, shareID, expiresAt)
}

// Resolve checks token and password and returns the share.
func (s *Service) Resolve(ctx context.Context, token, password string) (*models.Share, error) {
	share, err := s.repo.GetShareByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if share == nil {
		return nil, ErrShareNotFound
	}
	if share.ExpiresAt != nil && !s.now().Before(*share.ExpiresAt) {
		return nil, ErrShareExpired
	}
	if len(share.PasswordHash) > 0 {
		if password == "" {
			return nil, ErrPasswordRequired
		}
		if err := bcrypt.CompareHashAndPassword(share.PasswordHash, []byte(password)); err != nil {
			return nil, ErrWrongPassword
		}
	}
	return share, nil
}

func (s *Service) existing(ctx context.Context, shareID string) (*models.Share, error) {
	share, err := s.repo.GetShare(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if share == nil {
		return nil, ErrShareNotFound
	}
	return share, nil
}

func (s *Service) link(share *models.Share) *models.ShareLink {
	return &models.ShareLink{
		ID:          share.ID,
		Token:       share.Token,
		URL:         s.URL(share.Token),
		Name:        share.Name,
		FileID:      share.FileID,
		Permission:  share.Permission,
		ExpiresAt:   share.ExpiresAt,
		HasPassword: len(share.PasswordHash) > 0,
	}
}
