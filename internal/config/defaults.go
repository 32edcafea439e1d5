package config

import (
	"github.com/knadh/koanf/providers/confmap"
)

// DefaultConfig returns the baseline configuration as a nested map.
func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"api": map[string]interface{}{
			"base_url":  "http://localhost:8000/api/v1",
			"timeout":   15,
			"init_data": "",
		},
		"journal": map[string]interface{}{
			"enabled": false,
			"path":    "~/.remsync/journal.db",
		},
		"log": map[string]interface{}{
			"level":  "info",
			"format": "text",
		},
		"sync": map[string]interface{}{
			"resync_on_delete": true,
		},
	}
}

// NewDefaultProvider returns the defaults as the lowest koanf layer.
func NewDefaultProvider() *confmap.Confmap {
	return confmap.Provider(DefaultConfig(), ".")
}

// DefaultConfigPath is the config file read when --config is not given.
func DefaultConfigPath() string {
	return "~/.remsync/config.yaml"
}
