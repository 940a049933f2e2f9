package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/marmos91/authkeep/pkg/api/auth"
	"github.com/marmos91/authkeep/pkg/api/handlers"
	"github.com/marmos91/authkeep/pkg/backup"
	"github.com/marmos91/authkeep/pkg/config"
	"github.com/marmos91/authkeep/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "router-secret-key-must-be-32-chars"

type stubRuntime struct{}

func (stubRuntime) State() string                                     { return "enabled" }
func (stubRuntime) Version() (string, string)                         { return "5.3.0", "1" }
func (stubRuntime) Sessions() ([]*models.PlayerAuth, bool)            { return nil, true }
func (stubRuntime) Stores() (map[string]handlers.HealthChecker, bool) { return nil, true }
func (stubRuntime) Backup() (*backup.Service, bool)                   { return nil, false }
func (stubRuntime) RequestReload() bool                               { return true }

func serve(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouterRequiresTokenWhenSecretSet(t *testing.T) {
	cfg := config.GetDefaultConfig().API
	cfg.JWTSecret = secret
	srv, err := NewServer(cfg, stubRuntime{}, nil)
	require.NoError(t, err)
	h := srv.Handler()

	w := serve(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code, "probes stay open")
	assert.NotEmpty(t, w.Header().Get(chimw.RequestIDHeader))

	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodGet, "/api/v1/sessions", "").Code)

	jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: secret})
	require.NoError(t, err)
	token, err := jwtService.Issue("ops")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/api/v1/sessions", token.AccessToken).Code)
	assert.Equal(t, http.StatusAccepted, serve(h, http.MethodPost, "/api/v1/reload", token.AccessToken).Code)

	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/api/v1/players", token.AccessToken).Code,
		"player routes need the standalone host")
}

func TestRouterOpenWithoutSecret(t *testing.T) {
	srv, err := NewServer(config.GetDefaultConfig().API, stubRuntime{}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(srv.Handler(), http.MethodGet, "/api/v1/sessions", "").Code)
}

func TestNewServerRejectsShortSecret(t *testing.T) {
	cfg := config.GetDefaultConfig().API
	cfg.JWTSecret = "short"
	_, err := NewServer(cfg, stubRuntime{}, nil)
	assert.ErrorIs(t, err, auth.ErrInvalidSecretLength)
}
