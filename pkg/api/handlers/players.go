package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/host/standalone"
	"github.com/marmos91/authkeep/pkg/models"
)

// Roster is the standalone host surface driven by the player endpoints.
type Roster interface {
	Join(ctx context.Context, name, ip string) (*standalone.Player, error)
	Quit(ctx context.Context, name string) error
	Act(ctx context.Context, name string, t host.EventType, message string) (bool, error)
	Player(name string) (*standalone.Player, bool)
	OnlineEntities() []host.Entity
}

// PlayerHandler connects, drives and disconnects simulated players.
type PlayerHandler struct {
	roster Roster
}

// NewPlayerHandler creates a player handler.
func NewPlayerHandler(roster Roster) *PlayerHandler {
	return &PlayerHandler{roster: roster}
}

// PlayerResponse describes a connected player.
type PlayerResponse struct {
	Name     string          `json:"name"`
	IP       string          `json:"ip"`
	Location models.Location `json:"location"`
	Messages []string        `json:"messages,omitempty"`
	Kicked   string          `json:"kicked,omitempty"`
}

func playerToResponse(p *standalone.Player, withMessages bool) PlayerResponse {
	resp := PlayerResponse{
		Name:     p.Name(),
		IP:       p.IP(),
		Location: p.State().Location,
		Kicked:   p.KickReason(),
	}
	if withMessages {
		resp.Messages = p.Messages()
	}
	return resp
}

// JoinRequest is the request body for POST /api/v1/players.
type JoinRequest struct {
	Name string `json:"name"`
	IP   string `json:"ip"`
}

// ActionRequest is the request body for POST /api/v1/players/{name}/actions.
type ActionRequest struct {
	// Type is an event name such as "chat", "command" or "move".
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// ActionResponse reports whether the action was allowed.
type ActionResponse struct {
	Allowed  bool     `json:"allowed"`
	Messages []string `json:"messages,omitempty"`
}

// List handles GET /api/v1/players.
func (h *PlayerHandler) List(w http.ResponseWriter, r *http.Request) {
	online := h.roster.OnlineEntities()
	out := make([]PlayerResponse, 0, len(online))
	for _, e := range online {
		if p, ok := h.roster.Player(e.Name()); ok {
			out = append(out, playerToResponse(p, false))
		}
	}
	WriteJSON(w, http.StatusOK, out)
}

// Get handles GET /api/v1/players/{name}.
func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.roster.Player(chi.URLParam(r, "name"))
	if !ok {
		NotFound(w, "Player is not online")
		return
	}
	WriteJSON(w, http.StatusOK, playerToResponse(p, true))
}

// Join handles POST /api/v1/players.
func (h *PlayerHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if models.NormalizeName(req.Name) == "" {
		BadRequest(w, "Player name is required")
		return
	}
	if req.IP == "" {
		req.IP = "127.0.0.1"
	}

	p, err := h.roster.Join(r.Context(), req.Name, req.IP)
	switch {
	case errors.Is(err, standalone.ErrRejected):
		Conflict(w, err.Error())
		return
	case errors.Is(err, standalone.ErrFull):
		ServiceUnavailable(w, err.Error())
		return
	case err != nil:
		InternalServerError(w, "Failed to join")
		return
	}
	WriteJSON(w, http.StatusCreated, playerToResponse(p, true))
}

// Quit handles DELETE /api/v1/players/{name}.
func (h *PlayerHandler) Quit(w http.ResponseWriter, r *http.Request) {
	if err := h.roster.Quit(r.Context(), chi.URLParam(r, "name")); err != nil {
		if errors.Is(err, standalone.ErrNotOnline) {
			NotFound(w, "Player is not online")
			return
		}
		InternalServerError(w, "Failed to quit")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Act handles POST /api/v1/players/{name}/actions.
func (h *PlayerHandler) Act(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	t, ok := host.ParseEventType(req.Type)
	if !ok || t == host.EventPreLogin || t == host.EventJoin || t == host.EventQuit {
		BadRequest(w, "Unsupported action type")
		return
	}

	name := chi.URLParam(r, "name")
	p, ok := h.roster.Player(name)
	if !ok {
		NotFound(w, "Player is not online")
		return
	}
	before := len(p.Messages())

	allowed, err := h.roster.Act(r.Context(), name, t, req.Message)
	if err != nil {
		if errors.Is(err, standalone.ErrNotOnline) {
			NotFound(w, "Player is not online")
			return
		}
		InternalServerError(w, "Failed to dispatch action")
		return
	}

	resp := ActionResponse{Allowed: allowed}
	if msgs := p.Messages(); len(msgs) > before {
		resp.Messages = msgs[before:]
	}
	WriteJSON(w, http.StatusOK, resp)
}
