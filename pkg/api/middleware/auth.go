// Package middleware provides HTTP middleware for the operator API.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/authkeep/internal/logger"
	"github.com/marmos91/authkeep/pkg/api/auth"
	"github.com/marmos91/authkeep/pkg/api/handlers"
)

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// JWTAuth rejects requests without a valid operator token with a 401
// problem and passes the claims of valid ones down the context.
func JWTAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, r, "bearer token required")
				return
			}

			claims, err := jwtService.Validate(token)
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				unauthorized(w, r, "token has expired")
				return
			case err != nil:
				unauthorized(w, r, "invalid token")
				return
			}

			logger.Debug("API request authenticated",
				"request_id", chimw.GetReqID(r.Context()),
				"operator", claims.Operator,
			)
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	logger.Warn("API request rejected",
		"request_id", chimw.GetReqID(r.Context()),
		"path", r.URL.Path,
		"reason", detail,
	)
	w.Header().Set("WWW-Authenticate", `Bearer realm="authkeep"`)
	handlers.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", detail)
}
