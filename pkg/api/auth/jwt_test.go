package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret-key-must-be-32-chars!"

func TestNewJWTService_ShortSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{Secret: "short"})
	assert.ErrorIs(t, err, ErrInvalidSecretLength)
}

func TestIssueAndValidate(t *testing.T) {
	service, err := NewJWTService(JWTConfig{Secret: secret, TokenDuration: time.Hour})
	require.NoError(t, err)

	token, err := service.Issue("ops")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, 2, strings.Count(token.AccessToken, "."))

	claims, err := service.Validate(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Operator)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, DefaultIssuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestValidate_Expired(t *testing.T) {
	service, err := NewJWTService(JWTConfig{Secret: secret, TokenDuration: time.Minute})
	require.NoError(t, err)
	issued := time.Now()
	service.now = func() time.Time { return issued }

	token, err := service.Issue("ops")
	require.NoError(t, err)

	service.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = service.Validate(token.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidate_WrongSecret(t *testing.T) {
	a, err := NewJWTService(JWTConfig{Secret: secret})
	require.NoError(t, err)
	b, err := NewJWTService(JWTConfig{Secret: strings.Repeat("x", 32)})
	require.NoError(t, err)

	token, err := a.Issue("ops")
	require.NoError(t, err)
	_, err = b.Validate(token.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_Garbage(t *testing.T) {
	service, err := NewJWTService(JWTConfig{Secret: secret})
	require.NoError(t, err)
	_, err = service.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestClaimsContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, ClaimsFromContext(ctx))
	assert.Equal(t, "anonymous", OperatorFromContext(ctx))

	ctx = WithClaims(ctx, &Claims{Operator: "ops"})
	assert.Equal(t, "ops", ClaimsFromContext(ctx).Operator)
	assert.Equal(t, "ops", OperatorFromContext(ctx))
}
