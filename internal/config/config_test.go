package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, TransportHTTP, cfg.Authority.Transport)
	assert.Equal(t, 15*time.Second, cfg.Authority.Timeout)
	assert.Equal(t, 3, cfg.Combat.HandSize)
	assert.Equal(t, 2, cfg.Combat.MaxSelection)
	assert.Equal(t, 4, cfg.Combat.FieldSlots)
	assert.Equal(t, 100, cfg.Combat.LogLimit)
	assert.Equal(t, BackendNone, cfg.Progress.Backend)
	assert.False(t, cfg.Journal.Enabled)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: debug
  format: json
authority:
  transport: websocket
  ws_url: ws://example.test/ws
  timeout: 3s
combat:
  field_slots: 9
  enemy_id: ember-wolf
`), 0o644))

	t.Setenv("COMBAT_AUTHORITY_TOKEN", "secret")
	t.Setenv("COMBAT_COMBAT_HAND_SIZE", "5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, TransportWebSocket, cfg.Authority.Transport)
	assert.Equal(t, "ws://example.test/ws", cfg.Authority.WSURL)
	assert.Equal(t, 3*time.Second, cfg.Authority.Timeout)
	assert.Equal(t, "secret", cfg.Authority.Token)
	assert.Equal(t, 5, cfg.Combat.HandSize)
	assert.Equal(t, 4, cfg.Combat.FieldSlots, "field width is clamped")
	assert.Equal(t, "ember-wolf", cfg.Combat.EnemyID)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"transport", func(c *Config) { c.Authority.Transport = "carrier-pigeon" }},
		{"backend", func(c *Config) { c.Progress.Backend = "floppy" }},
		{"postgres without url", func(c *Config) { c.Progress.Backend = BackendPostgres }},
		{"timeout", func(c *Config) { c.Authority.Timeout = 0 }},
		{"hand size", func(c *Config) { c.Combat.HandSize = 0 }},
		{"journal dir", func(c *Config) { c.Journal.Enabled = true; c.Journal.Directory = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
