package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "BANGBOT_"

// Overrides are the settings that may come from the environment instead of
// config.yaml, usually secrets.
type Overrides struct {
	DiscordToken    string `env:"DISCORD_TOKEN"`
	NostrPrivateKey string `env:"NOSTR_PRIVATE_KEY"`
	AdminToken      string `env:"ADMIN_TOKEN"`
	LogLevel        string `env:"LOG_LEVEL"`
	CommandPrefix   string `env:"COMMAND_PREFIX"`
	StoragePath     string `env:"STORAGE_PATH"`
}

// ReadOverrides parses BANGBOT_* variables from the process environment.
func ReadOverrides() (Overrides, error) {
	var o Overrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix}); err != nil {
		return o, fmt.Errorf("parse environment: %w", err)
	}
	return o, nil
}

// loadDotEnv loads dir/.env if present. Variables already set win.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	o, err := ReadOverrides()
	if err != nil {
		return err
	}
	c.apply(o)
	return nil
}

func (c *Config) apply(o Overrides) {
	for i := range c.Transports {
		t := &c.Transports[i]
		switch strings.ToLower(strings.TrimSpace(t.Type)) {
		case "discord":
			if o.DiscordToken != "" {
				t.Token = o.DiscordToken
			}
		case "nostr":
			if o.NostrPrivateKey != "" {
				t.PrivateKey = o.NostrPrivateKey
			}
		}
	}
	if o.AdminToken != "" {
		c.Admin.AuthToken = o.AdminToken
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.CommandPrefix != "" {
		c.Prefixes.Command = o.CommandPrefix
	}
	if o.StoragePath != "" {
		c.Storage.Path = o.StoragePath
	}
}
