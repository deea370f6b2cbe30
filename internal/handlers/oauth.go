package handlers

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/VidhuSarwal/chatshare/internal/chaterr"
	"github.com/VidhuSarwal/chatshare/internal/models"

	"go.uber.org/zap"
)

// IsConnectedHandler - GET /is-connected
func (h *Handler) IsConnectedHandler(w http.ResponseWriter, r *http.Request) {
	userID := sessionUser(r)

	conn, err := h.Settings.Connection(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	creds, err := h.Settings.AppCredentials(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// never return tokens or the client secret
	writeJSON(w, http.StatusOK, map[string]any{
		"connected":      conn.Connected(),
		"oauth_possible": creds.OAuthPossible(),
		"use_popup":      creds.UsePopup,
		"client_id":      creds.ClientID,
		"instance_url":   creds.InstanceURL,
		"user_id":        conn.RemoteUserID,
		"user_name":      conn.RemoteDisplayName,
	})
}

// OAuthStartHandler - GET /oauth-start?origin=settings|files&dir=&file_ids=1,2
func (h *Handler) OAuthStartHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	origin := models.OAuthOrigin{Surface: q.Get("origin"), Dir: q.Get("dir")}
	switch origin.Surface {
	case "":
		origin.Surface = models.OriginSettings
	case models.OriginSettings, models.OriginFiles:
	default:
		h.writeError(w, r, fmt.Errorf("%w: unknown origin %q", chaterr.ErrInvalidRequest, origin.Surface))
		return
	}
	ids, err := parseIDs(q.Get("file_ids"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	origin.FileIDs = ids

	authURL, err := h.OAuth.AuthURL(r.Context(), sessionUser(r), origin)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": authURL})
}

func parseIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: file id %q", chaterr.ErrInvalidRequest, p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// FilesToSendHandler - GET /files-to-send
func (h *Handler) FilesToSendHandler(w http.ResponseWriter, r *http.Request) {
	f, err := h.Settings.TakeFilesToSend(r.Context(), sessionUser(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// OAuthRedirectHandler - GET /oauth-redirect?code=&state=
// The provider sends the browser here; the session cookie identifies the user.
func (h *Handler) OAuthRedirectHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := sessionUser(r)
	q := r.URL.Query()
	if denied := q.Get("error"); denied != "" {
		h.logger.Info("authorization not granted", zap.String("user", userID), zap.String("error", denied))
	}

	// Complete always runs so the pending state is consumed, even on denial.
	origin, err := h.OAuth.Complete(ctx, userID, q.Get("code"), q.Get("state"))
	if err != nil {
		h.redirectError(w, r, err)
		return
	}

	user, err := h.Chat.CurrentUser(ctx, userID)
	if err != nil {
		h.logger.Warn("connected but identity lookup failed", zap.String("user", userID), zap.Error(err))
		user = &models.RemoteUser{}
	}
	h.logger.Info("chat account connected", zap.String("user", userID), zap.String("remote_user", user.ID))

	creds, err := h.Settings.AppCredentials(ctx)
	if err == nil && creds.UsePopup {
		v := url.Values{"user_id": {user.ID}, "user_name": {user.DisplayName}}
		http.Redirect(w, r, "/popup-success?"+v.Encode(), http.StatusFound)
		return
	}

	target := h.settingsURL + "?" + url.Values{h.platform + "Token": {"success"}}.Encode()
	if origin.Surface == models.OriginFiles {
		target = h.filesURL + "?" + url.Values{"dir": {origin.Dir}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) redirectError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("oauth redirect failed", zap.String("user", sessionUser(r)), zap.Error(err))
	creds, credErr := h.Settings.AppCredentials(r.Context())
	if credErr == nil && creds.UsePopup {
		v := url.Values{"error": {chaterr.Message(err)}}
		http.Redirect(w, r, "/popup-success?"+v.Encode(), http.StatusFound)
		return
	}
	v := url.Values{h.platform + "Token": {"error"}, "message": {chaterr.Message(err)}}
	http.Redirect(w, r, h.settingsURL+"?"+v.Encode(), http.StatusFound)
}

var popupTemplate = template.Must(template.New("popup").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{if .Error}}Connection failed{{else}}Connected{{end}}</title></head>
<body>
{{if .Error}}<p>Connection failed: {{.Error}}</p>
{{else}}<p>Connected{{if .UserName}} as {{.UserName}}{{end}}. You can close this window.</p>
{{end}}
<script>
if (window.opener) {
	window.opener.postMessage({{.Message}}, "*");
}
window.close();
</script>
</body>
</html>
`))

// PopupSuccessHandler - GET /popup-success
// Hands the connected identity, or the failure, to the opener window and
// closes the popup.
func (h *Handler) PopupSuccessHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := struct {
		UserName string
		Error    string
		Message  map[string]string
	}{
		UserName: q.Get("user_name"),
		Error:    q.Get("error"),
	}
	if data.Error != "" {
		data.Message = map[string]string{"error": data.Error}
	} else {
		data.Message = map[string]string{
			"user_id":   q.Get("user_id"),
			"user_name": q.Get("user_name"),
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := popupTemplate.Execute(w, data); err != nil {
		h.logger.Error("render popup page", zap.Error(err))
	}
}
