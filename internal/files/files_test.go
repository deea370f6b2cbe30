package files

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/VidhuSarwal/chatshare/internal/chaterr"
	"github.com/VidhuSarwal/chatshare/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScanAndGet(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "alice", "notes.txt"), "hello")
	writeFile(t, filepath.Join(root, "alice", "docs", "report.pdf"), "%PDF")

	ctx := context.Background()
	src := NewSource(root, store.NewMemoryStore(), zap.NewNop())

	res, err := src.Scan(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Indexed) // docs, docs/report.pdf, notes.txt

	nodes, err := src.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	var notesID, docsID int64
	for _, n := range nodes {
		switch n.Path {
		case "notes.txt":
			notesID = n.ID
		case "docs":
			docsID = n.ID
		}
	}

	n, err := src.Get(ctx, "alice", notesID)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", n.Name)
	assert.False(t, n.IsDir)
	rc, err := n.Open()
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "hello", string(b))

	dir, err := src.Get(ctx, "alice", docsID)
	require.NoError(t, err)
	assert.True(t, dir.IsDir)
	_, err = dir.Open()
	assert.ErrorIs(t, err, chaterr.ErrNotAFile)

	// ids survive a rescan
	_, err = src.Scan(ctx, "alice")
	require.NoError(t, err)
	again, err := src.Get(ctx, "alice", notesID)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", again.Path)
}

func TestGet_Missing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "alice", "gone.txt"), "x")
	ctx := context.Background()
	src := NewSource(root, store.NewMemoryStore(), zap.NewNop())
	_, err := src.Scan(ctx, "alice")
	require.NoError(t, err)
	nodes, _ := src.List(ctx, "alice")
	require.Len(t, nodes, 1)

	_, err = src.Get(ctx, "alice", 999)
	assert.ErrorIs(t, err, chaterr.ErrFilesNotFound)

	// other users cannot resolve alice's ids
	_, err = src.Get(ctx, "bob", nodes[0].ID)
	assert.ErrorIs(t, err, chaterr.ErrFilesNotFound)

	require.NoError(t, os.Remove(filepath.Join(root, "alice", "gone.txt")))
	_, err = src.Get(ctx, "alice", nodes[0].ID)
	assert.ErrorIs(t, err, chaterr.ErrFilesNotFound)
}

func TestOwnerValidation(t *testing.T) {
	src := NewSource(t.TempDir(), store.NewMemoryStore(), zap.NewNop())
	_, err := src.Scan(context.Background(), "../etc")
	assert.ErrorIs(t, err, chaterr.ErrInvalidRequest)
}
