package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/api/auth"
	"github.com/marmos91/authkeep/pkg/backup"
)

// AdminHandler exposes the session cache, reloads and backups.
type AdminHandler struct {
	runtime Runtime
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(runtime Runtime) *AdminHandler {
	return &AdminHandler{runtime: runtime}
}

// SessionResponse is one authenticated identity.
type SessionResponse struct {
	Username  string     `json:"username"`
	RealName  string     `json:"realname"`
	IP        string     `json:"ip,omitempty"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// Sessions handles GET /api/v1/sessions.
func (h *AdminHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	if !requireEnabled(w, h.runtime) {
		return
	}
	sessions, ok := h.runtime.Sessions()
	if !ok {
		ServiceUnavailable(w, "session cache unavailable")
		return
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionResponse{
			Username:  s.Username,
			RealName:  s.RealName,
			IP:        s.IP,
			LastLogin: s.LastLogin,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	WriteJSON(w, http.StatusOK, out)
}

// Reload handles POST /api/v1/reload. The reload runs asynchronously.
func (h *AdminHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if !h.runtime.RequestReload() {
		Conflict(w, "A reload is already pending")
		return
	}
	logger.Info("Reload requested", "operator", auth.OperatorFromContext(r.Context()))
	WriteJSON(w, http.StatusAccepted, Response{Status: "ok", Timestamp: time.Now().UTC()})
}

// BackupResponse reports a backup taken on request.
type BackupResponse struct {
	Path string `json:"path,omitempty"`
}

// Backup handles POST /api/v1/backup.
func (h *AdminHandler) Backup(w http.ResponseWriter, r *http.Request) {
	if !requireEnabled(w, h.runtime) {
		return
	}
	svc, ok := h.runtime.Backup()
	if !ok {
		ServiceUnavailable(w, "backup service unavailable")
		return
	}
	logger.Info("Backup requested", "operator", auth.OperatorFromContext(r.Context()))
	path, err := svc.DoBackup(r.Context(), backup.CauseCommand)
	if err != nil {
		InternalServerError(w, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, Response{Status: "ok", Timestamp: time.Now().UTC(), Data: BackupResponse{Path: path}})
}
