package handlers

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/VidhuSarwal/chatshare/internal/files"
	"github.com/VidhuSarwal/chatshare/internal/models"
	"github.com/VidhuSarwal/chatshare/internal/webhook"

	"go.uber.org/zap"
)

// ListFilesHandler - GET /files
func (h *Handler) ListFilesHandler(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.Files.List(r.Context(), sessionUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

// ScanFilesHandler - POST /files/scan
func (h *Handler) ScanFilesHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.Files.Scan(r.Context(), sessionUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SharedFileHandler - GET /s/{token}?password=
// Public: serves a shared file, or the listing of a shared folder.
func (h *Handler) SharedFileHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	share, err := h.Shares.Resolve(ctx, r.PathValue("token"), r.URL.Query().Get("password"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	node, err := h.Files.Get(ctx, share.Owner, share.FileID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if node.IsDir {
		h.serveFolder(w, r, share, node)
		return
	}

	rc, err := node.Open()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": node.Name}))
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, node.Name, time.Time{}, rs)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("shared file download interrupted", zap.String("share", share.ID), zap.Error(err))
	}
}

func (h *Handler) serveFolder(w http.ResponseWriter, r *http.Request, share *models.Share, dir *files.Node) {
	all, err := h.Files.List(r.Context(), share.Owner)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	entries := make([]*files.Node, 0)
	for _, n := range all {
		if n.Path != dir.Path && path.Dir(n.Path) == dir.Path {
			entries = append(entries, n)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":       share.Name,
		"permission": share.Permission,
		"entries":    entries,
	})
}

// ColorHandler - GET /color/{hex}
func (h *Handler) ColorHandler(w http.ResponseWriter, r *http.Request) {
	hex := webhook.NormalizeColor(r.PathValue("hex"))
	if hex == "" {
		http.Error(w, "invalid color", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	fmt.Fprintf(w, `<svg xmlns="http://www.w3.org/2000/svg" width="16" height="16"><rect width="16" height="16" rx="3" fill="#%s"/></svg>`, hex)
}
