package handlers

import (
	"net/http"

	"github.com/VidhuSarwal/chatshare/internal/store"
)

type valuesReq struct {
	Values map[string]string `json:"values"`
}

// ConfigHandler - PUT /config
func (h *Handler) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	var req valuesReq
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Settings.SetUserValues(r.Context(), sessionUser(r), req.Values); err != nil {
		h.writeError(w, r, err)
		return
	}

	out := map[string]any{}
	if v, ok := req.Values[store.KeyToken]; ok && v == "" {
		out["user_name"] = ""
	}
	writeJSON(w, http.StatusOK, out)
}

// AdminConfigHandler - PUT /admin-config
func (h *Handler) AdminConfigHandler(w http.ResponseWriter, r *http.Request) {
	var req valuesReq
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Settings.SetAppValues(r.Context(), req.Values); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

// SensitiveAdminConfigHandler - PUT /sensitive-admin-config
func (h *Handler) SensitiveAdminConfigHandler(w http.ResponseWriter, r *http.Request) {
	var req valuesReq
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Settings.SetSensitiveAppValues(r.Context(), req.Values); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}
