package handlers

import (
	"net/http"

	"github.com/VidhuSarwal/chatshare/internal/models"
)

// CreateCalendarEventHandler - POST /calendar/events
func (h *Handler) CreateCalendarEventHandler(w http.ResponseWriter, r *http.Request) {
	var e models.CalendarEvent
	if err := decodeJSON(r, &e); err != nil {
		h.writeError(w, r, err)
		return
	}
	created, err := h.Calendar.Create(r.Context(), sessionUser(r), &e)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// CalendarEventHandler - GET|PUT /calendar/events/{id}
func (h *Handler) CalendarEventHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		e, err := h.Calendar.Get(r.Context(), sessionUser(r), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	case http.MethodPut:
		var e models.CalendarEvent
		if err := decodeJSON(r, &e); err != nil {
			h.writeError(w, r, err)
			return
		}
		updated, err := h.Calendar.Update(r.Context(), sessionUser(r), id, &e)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
