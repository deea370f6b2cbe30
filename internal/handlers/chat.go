package handlers

import (
	"net/http"
	"strconv"

	"github.com/VidhuSarwal/chatshare/internal/models"
)

// SendMessageHandler - POST /sendMessage
func (h *Handler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message       string   `json:"message"`
		ChannelID     string   `json:"channel_id"`
		RemoteFileIDs []string `json:"remote_file_ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Chat.SendMessage(r.Context(), sessionUser(r), req.Message, req.ChannelID, req.RemoteFileIDs); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// SendFileHandler - POST /sendFile
func (h *Handler) SendFileHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileID    int64  `json:"file_id"`
		ChannelID string `json:"channel_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	remoteID, err := h.Chat.SendFile(r.Context(), sessionUser(r), req.FileID, req.ChannelID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "remote_file_id": remoteID})
}

// SendPublicLinksHandler - POST /sendPublicLinks
func (h *Handler) SendPublicLinksHandler(w http.ResponseWriter, r *http.Request) {
	var req models.PublicLinksRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Chat.SendPublicLinks(r.Context(), sessionUser(r), &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ChannelsHandler - GET /channels
func (h *Handler) ChannelsHandler(w http.ResponseWriter, r *http.Request) {
	channels, err := h.Chat.ListChannels(r.Context(), sessionUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if channels == nil {
		channels = []models.Channel{}
	}
	writeJSON(w, http.StatusOK, channels)
}

// AvatarHandler - GET /users/{id}/image
func (h *Handler) AvatarHandler(w http.ResponseWriter, r *http.Request) {
	body, contentType := h.Chat.Avatar(r.Context(), sessionUser(r), r.PathValue("id"))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(body)
}
