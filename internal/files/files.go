// Package files resolves numeric file ids to entries under a local storage root.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/VidhuSarwal/chatshare/internal/chaterr"
	"github.com/VidhuSarwal/chatshare/internal/models"

	"go.uber.org/zap"
)

// Repository persists the file index.
type Repository interface {
	UpsertFile(ctx context.Context, file *models.StoredFile) error
	GetFile(ctx context.Context, owner string, fileID int64) (*models.StoredFile, error)
	ListFiles(ctx context.Context, owner string) ([]*models.StoredFile, error)
	PruneFiles(ctx context.Context, owner string, before time.Time) (int64, error)
}

// Node is a resolved file or folder.
type Node struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Path    string `json:"path"` // slash separated, relative to the owner's root
	IsDir   bool   `json:"is_dir"`
	Size    int64  `json:"size"`
	AbsPath string `json:"-"`
}

// Open opens a regular file for reading.
func (n *Node) Open() (io.ReadCloser, error) {
	if n.IsDir {
		return nil, fmt.Errorf("%w: %s", chaterr.ErrNotAFile, n.Name)
	}
	return os.Open(n.AbsPath)
}

// Source maps ids to nodes under root/<owner>.
type Source struct {
	root   string
	repo   Repository
	logger *zap.Logger
}

func NewSource(root string, repo Repository, logger *zap.Logger) *Source {
	return &Source{root: root, repo: repo, logger: logger}
}

func (s *Source) ownerRoot(owner string) (string, error) {
	if owner == "" || owner == "." || owner == ".." || strings.ContainsAny(owner, `/\`) {
		return "", fmt.Errorf("%w: bad owner %q", chaterr.ErrInvalidRequest, owner)
	}
	return filepath.Join(s.root, owner), nil
}

// Get resolves fileID for owner. Unknown ids and entries missing on disk
// yield ErrFilesNotFound.
func (s *Source) Get(ctx context.Context, owner string, fileID int64) (*Node, error) {
	base, err := s.ownerRoot(owner)
	if err != nil {
		return nil, err
	}
	f, err := s.repo.GetFile(ctx, owner, fileID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("%w: id %d", chaterr.ErrFilesNotFound, fileID)
	}
	abs := filepath.Join(base, filepath.FromSlash(f.Path))
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: id %d", chaterr.ErrFilesNotFound, fileID)
		}
		return nil, err
	}
	return &Node{
		ID:      f.FileID,
		Name:    f.Name,
		Path:    f.Path,
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		AbsPath: abs,
	}, nil
}

// List returns the indexed entries of owner.
func (s *Source) List(ctx context.Context, owner string) ([]*Node, error) {
	stored, err := s.repo.ListFiles(ctx, owner)
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(stored))
	for _, f := range stored {
		nodes = append(nodes, &Node{ID: f.FileID, Name: f.Name, Path: f.Path, IsDir: f.IsDir, Size: f.Size})
	}
	return nodes, nil
}

// ScanResult summarizes a Scan.
type ScanResult struct {
	Indexed int   `json:"indexed"`
	Pruned  int64 `json:"pruned"`
}

// Scan walks root/<owner>, indexes every entry and drops index entries that
// no longer exist. Known paths keep their ids.
func (s *Source) Scan(ctx context.Context, owner string) (*ScanResult, error) {
	base, err := s.ownerRoot(owner)
	if err != nil {
		return nil, err
	}
	// stored timestamps have millisecond precision
	started := time.Now().UTC().Truncate(time.Millisecond)

	res := &ScanResult{}
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == base && errors.Is(walkErr, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == base {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		f := &models.StoredFile{
			Owner: owner,
			Path:  filepath.ToSlash(rel),
			Name:  d.Name(),
			IsDir: d.IsDir(),
		}
		if !d.IsDir() {
			f.Size = info.Size()
		}
		if err := s.repo.UpsertFile(ctx, f); err != nil {
			return fmt.Errorf("index %s: %w", f.Path, err)
		}
		res.Indexed++
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Pruned, err = s.repo.PruneFiles(ctx, owner, started); err != nil {
		return nil, err
	}
	s.logger.Info("file index updated",
		zap.String("owner", owner),
		zap.Int("indexed", res.Indexed),
		zap.Int64("pruned", res.Pruned))
	return res, nil
}
