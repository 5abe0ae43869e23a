package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/v1", cfg.Server.BasePath)
	assert.Equal(t, "memory", cfg.Realtime.Driver)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Auth.DevLogin)
	assert.Equal(t, 5*time.Minute, cfg.Client.CacheTimeout)
	assert.Equal(t, 30*time.Second, cfg.Client.RefreshInterval)
	require.NotNil(t, cfg.Client.MaxRetries)
	assert.Equal(t, 3, *cfg.Client.MaxRetries)
	require.NotNil(t, cfg.Client.AutoRefresh)
	assert.True(t, *cfg.Client.AutoRefresh)
}

func TestFromYAMLValidation(t *testing.T) {
	cases := map[string]string{
		"bad base path":   "server:\n  base_path: v1\n",
		"unknown driver":  "realtime:\n  driver: kafka\n",
		"redis no addr":   "realtime:\n  driver: redis\n",
		"negative retry":  "client:\n  max_retries: -1\n",
		"negative period": "client:\n  refresh_interval: -5s\n",
		"negative ttl":    "auth:\n  token_ttl: -1h\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptionalFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)

	_, err = Load(dir)
	assert.Error(t, err)

	raw := "realtime:\n  driver: redis\n  redis_addr: 127.0.0.1:6379\nclient:\n  enable_caching: false\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "collabhub.yml"), []byte(raw), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Realtime.Driver)
	require.NotNil(t, cfg.Client.EnableCaching)
	assert.False(t, *cfg.Client.EnableCaching)
	assert.Nil(t, cfg.Client.AutoRefresh)
}
