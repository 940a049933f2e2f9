// Package auth issues and validates the bearer tokens of the operator API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Common errors for JWT operations.
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrTokenSigningFailed  = errors.New("failed to sign token")
	ErrInvalidSecretLength = errors.New("JWT secret must be at least 32 characters")
)

// DefaultIssuer is the issuer claim of operator tokens.
const DefaultIssuer = "authkeep"

// JWTConfig holds configuration for token generation.
type JWTConfig struct {
	// Secret is the HMAC signing key. Must be at least 32 characters.
	Secret string

	// Issuer defaults to DefaultIssuer.
	Issuer string

	// TokenDuration is the lifetime of issued tokens. Default: 24 hours.
	TokenDuration time.Duration
}

// Claims are the claims carried by an operator token.
type Claims struct {
	jwt.RegisteredClaims

	// Operator is the name the token was issued to.
	Operator string `json:"operator"`
}

// JWTService handles token generation and validation.
type JWTService struct {
	config JWTConfig
	now    func() time.Time
}

// Token is an issued operator token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// NewJWTService creates a new JWT service with the given configuration.
func NewJWTService(config JWTConfig) (*JWTService, error) {
	if len(config.Secret) < 32 {
		return nil, ErrInvalidSecretLength
	}
	if config.Issuer == "" {
		config.Issuer = DefaultIssuer
	}
	if config.TokenDuration == 0 {
		config.TokenDuration = 24 * time.Hour
	}
	return &JWTService{config: config, now: time.Now}, nil
}

// Issue creates a token for operator.
func (s *JWTService) Issue(operator string) (*Token, error) {
	now := s.now()
	expiry := now.Add(s.config.TokenDuration)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
		Operator: operator,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return nil, ErrTokenSigningFailed
	}
	return &Token{AccessToken: signed, TokenType: "Bearer", ExpiresAt: expiry}, nil
}

// Validate validates a token and returns its claims.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithIssuer(s.config.Issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

type claimsKey struct{}

// WithClaims returns a context carrying the claims of a validated token.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims WithClaims attached, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	return claims
}

// OperatorFromContext names the authenticated operator, or "anonymous"
// when the API runs without tokens.
func OperatorFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil && c.Operator != "" {
		return c.Operator
	}
	return "anonymous"
}
