// Package config loads runtime configuration for the keystash CLI.
//
// Sources and precedence:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
package config

import "github.com/mkarpov/keystash/internal/storage"

// Config holds runtime settings for the keystash CLI.
type Config struct {
	// ServerEndpointURL is the base URL of the auth server.
	ServerEndpointURL string
	// APIKey authenticates this application with the auth server.
	APIKey string
	// DBPath is the sqlite file holding the local login stashes.
	DBPath string
	// AppID namespaces logins created by this application.
	AppID string
}

// LoadDefaults populates c with sensible defaults. The database path falls
// back to the working directory when the user config dir is unavailable.
func (c *Config) LoadDefaults() {
	c.ServerEndpointURL = "https://login.keystash.dev/api"
	c.APIKey = ""
	c.AppID = "keystash-cli"

	dsn, err := storage.DefaultDSN()
	if err != nil {
		dsn = "stashes.db"
	}
	c.DBPath = dsn
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
