package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "https://login.keystash.dev/api", c.ServerEndpointURL)
	assert.Empty(t, c.APIKey)
	assert.Equal(t, "keystash-cli", c.AppID)
	assert.NotEmpty(t, c.DBPath)
}

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	os.Args = []string{"cmd", "-e", "https://auth.example.com", "-k", "secret-key", "-app", "other-app"}

	cfg := &Config{}
	cfg.LoadDefaults()
	require.NotPanics(t, func() { parseFlags(cfg) })

	assert.Equal(t, "https://auth.example.com", cfg.ServerEndpointURL)
	assert.Equal(t, "secret-key", cfg.APIKey)
	assert.Equal(t, "other-app", cfg.AppID)
}

func TestParseJson(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := filepath.Join(t.TempDir(), "conf.json")
	body := `{"server_endpoint_url": "https://auth.example.com", "db_path": "/tmp/test.db"}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	os.Args = []string{"cmd", "-c", path}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, "https://auth.example.com", cfg.ServerEndpointURL)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	// Untouched fields keep their defaults.
	assert.Equal(t, "keystash-cli", cfg.AppID)
}

func TestParseJsonMissingFile(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"cmd", "-c", "/does/not/exist.json"}

	cfg := &Config{}
	cfg.LoadDefaults()
	require.Panics(t, func() { parseJson(cfg) })
}
