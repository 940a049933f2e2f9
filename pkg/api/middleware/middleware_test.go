package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/marmos91/authkeep/pkg/api/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJWT(t *testing.T) *auth.JWTService {
	t.Helper()
	s, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret-key-must-be-32-chars!"})
	require.NoError(t, err)
	return s
}

func TestJWTAuth(t *testing.T) {
	jwtService := newJWT(t)
	token, err := jwtService.Issue("ops")
	require.NoError(t, err)

	var seen *auth.Claims
	h := JWTAuth(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.ClaimsFromContext(r.Context())
		assert.Equal(t, "ops", auth.OperatorFromContext(r.Context()))
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"empty token", "Bearer  ", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"lower case scheme", "bearer " + token.AccessToken, http.StatusOK},
		{"valid token", "Bearer " + token.AccessToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, "ops", seen.Operator)
			} else {
				assert.Nil(t, seen)
				assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
				assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var id string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id = chimw.GetReqID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, id, w.Header().Get(chimw.RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(chimw.RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "abc", id)
}
