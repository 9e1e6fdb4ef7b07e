package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, "resonance-lobby", cfg.Client.RoomKey)
	assert.Equal(t, 3, cfg.Client.ReconnectAttempts)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example , https://b.example,")
	t.Setenv("IMPAIRMENTS", "blind,deaf")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())
	assert.Equal(t, []string{"blind", "deaf"}, cfg.Client.Impairments())
}
