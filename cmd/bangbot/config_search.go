package main

import (
	"os"
	"path/filepath"
)

const envConfig = "BANGBOT_CONFIG"

// defaultConfigPath prefers $BANGBOT_CONFIG, then ./config.yaml, then
// ~/.config/bangbot/config.yaml.
func defaultConfigPath() string {
	if p := os.Getenv(envConfig); p != "" {
		return p
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, ".config", "bangbot", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return "config.yaml"
}
