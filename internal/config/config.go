package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"gopkg.in/yaml.v3"

	"github.com/joelklabo/bangbot/internal/commands"
)

// Config holds the runtime configuration loaded from config.yaml.
type Config struct {
	Prefixes   commands.Prefixes `yaml:"prefixes"`
	Runner     RunnerConfig      `yaml:"runner"`
	Help       HelpConfig        `yaml:"help"`
	Transports []TransportConfig `yaml:"transports"`
	Storage    StorageConfig     `yaml:"storage"`
	Logging    LoggingConfig     `yaml:"logging"`
	Metrics    MetricsConfig     `yaml:"metrics"`
	Admin      AdminConfig       `yaml:"admin"`
}

// RunnerConfig controls how inbound messages are admitted and answered.
type RunnerConfig struct {
	AllowedSenders     []string `yaml:"allowed_senders"`
	// RateLimitPerMinute defaults to 30 when unset; a negative value disables
	// rate limiting.
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
	RateBurst          int      `yaml:"rate_burst"`
	DedupWindowSeconds int      `yaml:"dedup_window_seconds"`
	ReplyTimeoutSecs   int      `yaml:"reply_timeout_seconds"`
	FailurePrefix      *string  `yaml:"failure_prefix"`
	InfoPrefix         *string  `yaml:"info_prefix"`
	MaxReplyChars      int      `yaml:"max_reply_chars"`
}

// HelpConfig controls the built-in help command.
type HelpConfig struct {
	Identifier   string `yaml:"identifier"`
	File         string `yaml:"file"`
	LookupFormat string `yaml:"lookup_format"`
	// Disable drops the help command entirely.
	Disable bool `yaml:"disable"`
}

// TransportConfig selects and configures one transport.
type TransportConfig struct {
	Type           string         `yaml:"type"`
	ID             string         `yaml:"id"`
	Token          string         `yaml:"token"`
	Relays         []string       `yaml:"relays"`
	PrivateKey     string         `yaml:"private_key"`
	AllowedPubkeys []string       `yaml:"allowed_pubkeys"`
	Config         map[string]any `yaml:"config"`
}

// StorageConfig controls persistence.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls log level, format and destination.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// MetricsConfig controls the standalone Prometheus listener.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// AdminConfig controls the optional admin HTTP API.
type AdminConfig struct {
	Enable    bool   `yaml:"enable"`
	Addr      string `yaml:"addr"`
	AuthToken string `yaml:"auth_token"`
}

const (
	DefaultFailurePrefix = ":exclamation: "
	DefaultInfoPrefix    = ":information_source: "
)

// Load reads configuration from path, applies .env and environment
// overrides, fills defaults and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config: %w", commands.ErrConfiguration, err)
	}

	baseDir := filepath.Dir(path)
	if err := loadDotEnv(baseDir); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults(baseDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures the config is usable.
func (c *Config) Validate() error {
	if err := c.Prefixes.Validate(); err != nil {
		return err
	}
	if len(c.Transports) == 0 {
		return errors.New("at least one transport is required")
	}
	if c.Storage.Path == "" {
		return errors.New("storage.path is required")
	}
	if c.Runner.RateBurst < 0 {
		return errors.New("runner.rate_burst cannot be negative")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if c.Admin.Enable && c.Admin.Addr == "" {
		return errors.New("admin.addr is required when admin is enabled")
	}
	return c.ValidateTransports()
}

// FailureDecoration returns the decoration for failure replies.
func (r RunnerConfig) FailureDecoration() string {
	if r.FailurePrefix == nil {
		return DefaultFailurePrefix
	}
	return *r.FailurePrefix
}

// InfoDecoration returns the decoration for informational replies.
func (r RunnerConfig) InfoDecoration() string {
	if r.InfoPrefix == nil {
		return DefaultInfoPrefix
	}
	return *r.InfoPrefix
}

// NostrPubKey derives the public key for a nostr transport's private key.
func (t TransportConfig) NostrPubKey() (string, error) {
	if t.PrivateKey == "" {
		return "", fmt.Errorf("transport %q: private_key is required", t.ID)
	}
	pub, err := nostr.GetPublicKey(t.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("derive pubkey: %w", err)
	}
	return pub, nil
}

func (c *Config) applyDefaults(baseDir string) {
	def := commands.DefaultPrefixes()
	if c.Prefixes.Command == "" {
		c.Prefixes.Command = def.Command
	}
	if c.Prefixes.Flag == "" {
		c.Prefixes.Flag = def.Flag
	}
	if c.Prefixes.Pair == "" {
		c.Prefixes.Pair = def.Pair
	}
	if c.Runner.RateLimitPerMinute == 0 {
		c.Runner.RateLimitPerMinute = 30
	}
	if c.Runner.RateBurst == 0 {
		c.Runner.RateBurst = 5
	}
	if c.Runner.ReplyTimeoutSecs == 0 {
		c.Runner.ReplyTimeoutSecs = 30
	}
	if c.Runner.MaxReplyChars == 0 {
		c.Runner.MaxReplyChars = 4000
	}
	if c.Help.Identifier == "" {
		c.Help.Identifier = "help"
	}
	if c.Help.LookupFormat == "" {
		c.Help.LookupFormat = commands.DefaultLookupFormat
	}
	if c.Help.File != "" {
		c.Help.File = resolvePath(baseDir, c.Help.File)
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "~/.bangbot/state.db"
	}
	c.Storage.Path = resolvePath(baseDir, c.Storage.Path)
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.File != "" {
		c.Logging.File = resolvePath(baseDir, c.Logging.File)
	}
	if c.Admin.Addr == "" {
		c.Admin.Addr = "127.0.0.1:8080"
	}

	for i := range c.Transports {
		t := &c.Transports[i]
		t.Type = strings.ToLower(strings.TrimSpace(t.Type))
		if t.ID == "" {
			t.ID = t.Type
		}
		if t.Config == nil {
			t.Config = map[string]any{}
		}
		for j, pk := range t.AllowedPubkeys {
			t.AllowedPubkeys[j] = normalizePubkey(pk)
		}
	}
	for i, s := range c.Runner.AllowedSenders {
		c.Runner.AllowedSenders[i] = strings.ToLower(strings.TrimSpace(s))
	}
}

// normalizePubkey accepts hex or npub and returns lowercase hex.
func normalizePubkey(pk string) string {
	pk = strings.TrimSpace(pk)
	if strings.HasPrefix(pk, "npub") {
		if _, v, err := nip19.Decode(pk); err == nil {
			if s, ok := v.(string); ok {
				return strings.ToLower(s)
			}
		}
	}
	return strings.ToLower(pk)
}

func resolvePath(baseDir, p string) string {
	p = expandPath(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// expandPath expands environment variables and a leading ~.
func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return filepath.Clean(p)
}
