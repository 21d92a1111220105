package config

import (
	"encoding/json"
	"os"

	"github.com/mkarpov/keystash/internal/flagx"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. After parsing,
// non-empty values are copied into the runtime Config.
type JsonConfig struct {
	ServerEndpointURL string `json:"server_endpoint_url"`
	APIKey            string `json:"api_key"`
	DBPath            string `json:"db_path"`
	AppID             string `json:"app_id"`
}

// parseJson overlays Config with values loaded from a JSON file. The file
// path comes from the -c or -config flags; when absent, nothing is loaded.
// Read or unmarshal errors panic, since a named config file that cannot be
// used is a startup mistake the user has to fix.
func parseJson(cfg *Config) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(raw, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointURL != "" {
		cfg.ServerEndpointURL = jc.ServerEndpointURL
	}
	if jc.APIKey != "" {
		cfg.APIKey = jc.APIKey
	}
	if jc.DBPath != "" {
		cfg.DBPath = jc.DBPath
	}
	if jc.AppID != "" {
		cfg.AppID = jc.AppID
	}
}
