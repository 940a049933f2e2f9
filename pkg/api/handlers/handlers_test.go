package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marmos91/authkeep/pkg/backup"
	"github.com/marmos91/authkeep/pkg/host"
	"github.com/marmos91/authkeep/pkg/host/hosttest"
	"github.com/marmos91/authkeep/pkg/host/standalone"
	"github.com/marmos91/authkeep/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	state    string
	sessions []*models.PlayerAuth
	stores   map[string]HealthChecker
	reloads  int
	pending  bool
}

func (f *fakeRuntime) State() string { return f.state }

func (f *fakeRuntime) Version() (string, string) { return "5.3.0", "1234" }

func (f *fakeRuntime) Sessions() ([]*models.PlayerAuth, bool) {
	if f.state != "enabled" {
		return nil, false
	}
	return f.sessions, true
}

func (f *fakeRuntime) Stores() (map[string]HealthChecker, bool) {
	if f.state != "enabled" {
		return nil, false
	}
	return f.stores, true
}

func (f *fakeRuntime) Backup() (*backup.Service, bool) { return nil, false }

func (f *fakeRuntime) RequestReload() bool {
	if f.pending {
		return false
	}
	f.reloads++
	return true
}

type checker struct{ err error }

func (c checker) Healthcheck(context.Context) error { return c.err }

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}

func TestLiveness_ReturnsOK(t *testing.T) {
	handler := NewHealthHandler(&fakeRuntime{state: "disabled"})
	w := httptest.NewRecorder()
	handler.Liveness(w, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp Response
	decode(t, w, &resp)
	assert.Equal(t, "healthy", resp.Status)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "authkeep", data["service"])
	assert.Equal(t, "1234", data["build"])
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		state  string
		status int
	}{
		{"disabled", http.StatusServiceUnavailable},
		{"enabling", http.StatusServiceUnavailable},
		{"enabled", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			rt := &fakeRuntime{state: tt.state, sessions: []*models.PlayerAuth{{Username: "alice"}}}
			w := httptest.NewRecorder()
			NewHealthHandler(rt).Readiness(w, httptest.NewRequest("GET", "/health/ready", nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestStores(t *testing.T) {
	rt := &fakeRuntime{state: "enabled", stores: map[string]HealthChecker{
		"datasource":  checker{},
		"player_data": checker{},
	}}
	w := httptest.NewRecorder()
	NewHealthHandler(rt).Stores(w, httptest.NewRequest("GET", "/health/stores", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	rt.stores["player_data"] = checker{err: errors.New("closed")}
	w = httptest.NewRecorder()
	NewHealthHandler(rt).Stores(w, httptest.NewRequest("GET", "/health/stores", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp Response
	decode(t, w, &resp)
	assert.Equal(t, "unhealthy", resp.Status)

	rt.state = "disabled"
	w = httptest.NewRecorder()
	NewHealthHandler(rt).Stores(w, httptest.NewRequest("GET", "/health/stores", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSessions(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rt := &fakeRuntime{state: "enabled", sessions: []*models.PlayerAuth{
		{Username: "bob", RealName: "Bob"},
		{Username: "alice", RealName: "Alice", IP: "10.0.0.1", LastLogin: &ts},
	}}
	h := NewAdminHandler(rt)

	w := httptest.NewRecorder()
	h.Sessions(w, httptest.NewRequest("GET", "/api/v1/sessions", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var out []SessionResponse
	decode(t, w, &out)
	require.Len(t, out, 2)
	assert.Equal(t, "alice", out[0].Username)
	assert.Equal(t, "bob", out[1].Username)

	rt.state = "enabling"
	w = httptest.NewRecorder()
	h.Sessions(w, httptest.NewRequest("GET", "/api/v1/sessions", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, ContentTypeProblemJSON, w.Header().Get("Content-Type"))
}

func TestReload(t *testing.T) {
	rt := &fakeRuntime{state: "enabled"}
	h := NewAdminHandler(rt)

	w := httptest.NewRecorder()
	h.Reload(w, httptest.NewRequest("POST", "/api/v1/reload", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, rt.reloads)

	rt.pending = true
	w = httptest.NewRecorder()
	h.Reload(w, httptest.NewRequest("POST", "/api/v1/reload", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBackupUnavailable(t *testing.T) {
	w := httptest.NewRecorder()
	NewAdminHandler(&fakeRuntime{state: "enabled"}).Backup(w, httptest.NewRequest("POST", "/api/v1/backup", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// chatFilter cancels chat containing "spam".
type chatFilter struct{}

func (chatFilter) Name() string             { return "chat_filter" }
func (chatFilter) Events() []host.EventType { return []host.EventType{host.EventChat} }
func (chatFilter) Handle(_ context.Context, ev *host.Event) {
	if ev.Message == "spam" {
		ev.Entity.SendMessage("no spam")
		ev.Cancel("")
	}
}

func playerRouter(roster Roster) http.Handler {
	h := NewPlayerHandler(roster)
	r := chi.NewRouter()
	r.Get("/players", h.List)
	r.Post("/players", h.Join)
	r.Get("/players/{name}", h.Get)
	r.Delete("/players/{name}", h.Quit)
	r.Post("/players/{name}/actions", h.Act)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, &buf))
	return w
}

func TestPlayers(t *testing.T) {
	roster := standalone.New(standalone.Config{
		Name:       "test",
		Version:    "1.12.2",
		MaxPlayers: 1,
		Spawn:      models.Location{World: "world", Y: 64},
	}, hosttest.NewScheduler())
	roster.RegisterListener("test", chatFilter{})
	r := playerRouter(roster)

	w := do(t, r, "POST", "/players", JoinRequest{Name: "Alice", IP: "10.0.0.1"})
	require.Equal(t, http.StatusCreated, w.Code)
	var joined PlayerResponse
	decode(t, w, &joined)
	assert.Equal(t, "Alice", joined.Name)
	assert.Equal(t, 64.0, joined.Location.Y)

	w = do(t, r, "POST", "/players", JoinRequest{Name: "Bob"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "roster full")

	w = do(t, r, "POST", "/players", JoinRequest{Name: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, "GET", "/players", nil)
	var list []PlayerResponse
	decode(t, w, &list)
	assert.Len(t, list, 1)

	w = do(t, r, "POST", "/players/alice/actions", ActionRequest{Type: "chat", Message: "hello"})
	var act ActionResponse
	decode(t, w, &act)
	assert.True(t, act.Allowed)

	w = do(t, r, "POST", "/players/alice/actions", ActionRequest{Type: "chat", Message: "spam"})
	act = ActionResponse{}
	decode(t, w, &act)
	assert.False(t, act.Allowed)
	assert.Equal(t, []string{"no spam"}, act.Messages)

	w = do(t, r, "POST", "/players/alice/actions", ActionRequest{Type: "join"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, "POST", "/players/carol/actions", ActionRequest{Type: "chat"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, "DELETE", "/players/alice", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, r, "DELETE", "/players/alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, r, "GET", "/players/alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDecodeJSONBody(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"valid", `{"name":"alice","ip":"10.0.0.1"}`, http.StatusOK},
		{"empty", ``, http.StatusBadRequest},
		{"unknown field", `{"name":"alice","admin":true}`, http.StatusBadRequest},
		{"malformed", `{"name":`, http.StatusBadRequest},
		{"too large", `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/players", strings.NewReader(tt.body))
			var req JoinRequest
			if decodeJSONBody(w, r, &req) {
				w.WriteHeader(http.StatusOK)
			}
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
