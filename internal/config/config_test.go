package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dora.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", env(nil))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "dora.json", cfg.Snapshot.Location)
	assert.Equal(t, "repo_summary_7d.csv", cfg.Feeds.Locations[7])
	assert.Equal(t, "file", cfg.Cache.Backend)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  shutdown_timeout: 3s
snapshot:
  location: gs://metrics/dora.json
feeds:
  locations:
    7: https://example.com/7d.csv
  cache_ttl: 1m
cache:
  backend: badger
  dir: /tmp/dora-cache
logging:
  level: debug
  format: json
`)
	cfg, err := load(path, env(nil))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "gs://metrics/dora.json", cfg.Snapshot.Location)
	assert.Equal(t, "https://example.com/7d.csv", cfg.Feeds.Locations[7])
	assert.Equal(t, time.Minute, cfg.Feeds.CacheTTL)
	assert.Equal(t, "badger", cfg.Cache.Backend)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	cfg, err := load("", env(map[string]string{
		"GITHUB_TOKEN":  "secret",
		"DORA_SNAPSHOT": "/data/dora.json",
		"DORA_FEED_30D": "/data/30d.csv",
		"PORT":          "7000",
		"LOG_LEVEL":     "warn",
	}))
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.GitHub.Token)
	assert.Equal(t, "/data/dora.json", cfg.Snapshot.Location)
	assert.Equal(t, "/data/30d.csv", cfg.Feeds.Locations[30])
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := load("", env(map[string]string{"PORT": "eighty"}))
	assert.Error(t, err)

	_, err = load(writeConfig(t, "cache:\n  backend: redis\n"), env(nil))
	assert.ErrorContains(t, err, "invalid configuration")

	_, err = load(writeConfig(t, "feeds:\n  locations:\n    14: x.csv\n"), env(nil))
	assert.Error(t, err)

	_, err = load(writeConfig(t, "snapshot:\n  location: \"\"\n"), env(nil))
	assert.Error(t, err)

	_, err = load(filepath.Join(t.TempDir(), "missing.yaml"), env(nil))
	assert.Error(t, err)
}
