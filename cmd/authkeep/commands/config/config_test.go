package config

import (
	"encoding/json"
	"testing"

	"github.com/marmos91/authkeep/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaUsesFileKeys(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "security")
	assert.Contains(t, props, "data_dir")
	assert.NotContains(t, props, "DataDir")
}

func TestWarnings(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.API.Enabled = true
	cfg.API.JWTSecret = ""
	cfg.Security.PasswordHash = "PLAINTEXT"
	cfg.Security.StopServerOnProblem = true

	warnings := Warnings(cfg)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "api.jwt_secret")
	assert.Contains(t, warnings[1], "PLAINTEXT")

	cfg.API.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.Security.PasswordHash = "BCRYPT"
	assert.Empty(t, Warnings(cfg))
}
