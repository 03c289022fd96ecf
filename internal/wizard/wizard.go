// Package wizard interactively writes a starter config.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/joelklabo/bangbot/internal/config"
	"github.com/joelklabo/bangbot/internal/presets"
)

// Prompter abstracts survey for testability.
type Prompter interface {
	AskSelect(label string, options []string, def string) (string, error)
	AskInput(label, def string) (string, error)
	AskPassword(label string) (string, error)
	AskConfirm(label string, def bool) (bool, error)
}

// Run executes the interactive wizard and writes a config file.
func Run(ctx context.Context, path string, p Prompter) (string, error) {
	if p == nil {
		p = &surveyPrompter{}
	}

	cfgPath, err := resolveConfigPath(path)
	if err != nil {
		return "", err
	}

	if fileExists(cfgPath) {
		overwrite, err := p.AskConfirm(fmt.Sprintf("%s exists. Overwrite?", cfgPath), false)
		if err != nil {
			return "", err
		}
		if !overwrite {
			return "", fmt.Errorf("aborted: config exists at %s", cfgPath)
		}
	}

	reg := GetRegistry()
	names := presetNames(reg)
	choice, err := p.AskSelect("Pick a preset", names, defaultChoice("mock-echo", names))
	if err != nil {
		return "", err
	}

	cfg := &config.Config{}
	if data, err := presets.Get(choice); err == nil {
		if cfg, err = loadPresetConfig(data); err != nil {
			return "", fmt.Errorf("load preset %s: %w", choice, err)
		}
	}
	applyWizardDefaults(cfg)

	prefix, err := p.AskInput("Command prefix", cfg.Prefixes.Command)
	if err != nil {
		return "", err
	}
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		cfg.Prefixes.Command = prefix
	}

	for i := range cfg.Transports {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := askTransport(reg, &cfg.Transports[i], p); err != nil {
			return "", err
		}
	}

	senders, err := p.AskInput("Allowed senders (comma-separated, blank for everyone)", strings.Join(cfg.Runner.AllowedSenders, ","))
	if err != nil {
		return "", err
	}
	cfg.Runner.AllowedSenders = splitCSV(senders)

	enableAdmin, err := p.AskConfirm("Enable the admin API on "+adminAddr(cfg)+"?", cfg.Admin.Enable)
	if err != nil {
		return "", err
	}
	if enableAdmin {
		cfg.Admin.Enable = true
		cfg.Admin.Addr = adminAddr(cfg)
		if cfg.Admin.AuthToken == "" {
			cfg.Admin.AuthToken = uuid.NewString()
		}
	}

	dryRun, err := p.AskConfirm("Dry-run only (preview config without writing)?", false)
	if err != nil {
		return "", err
	}
	if dryRun {
		fmt.Printf("Dry run: config NOT written. Target path would be %s\n", cfgPath)
		return cfgPath, nil
	}

	if err := writeConfig(cfgPath, cfg); err != nil {
		return "", err
	}
	return cfgPath, nil
}

func askTransport(reg Registry, t *config.TransportConfig, p Prompter) error {
	switch t.Type {
	case "discord":
		if t.Token == "" {
			tok, err := p.AskPassword("Discord bot token (blank to use BANGBOT_DISCORD_TOKEN)")
			if err != nil {
				return err
			}
			t.Token = strings.TrimSpace(tok)
		}
	case "nostr":
		if len(t.Relays) == 0 {
			relays, err := p.AskInput("Relays (comma-separated)", "wss://relay.damus.io,wss://nos.lol")
			if err != nil {
				return err
			}
			t.Relays = splitCSV(relays)
		}
		if t.PrivateKey == "" {
			pk, err := p.AskPassword("Nostr private key (hex)")
			if err != nil {
				return err
			}
			if pk == "" {
				return errors.New("private key is required")
			}
			t.PrivateKey = pk
		}
		if len(t.AllowedPubkeys) == 0 {
			allowed, err := p.AskInput("Allowed pubkeys (comma-separated hex or npub)", "")
			if err != nil {
				return err
			}
			keys := splitCSV(allowed)
			if len(keys) == 0 {
				return errors.New("at least one allowed pubkey required")
			}
			t.AllowedPubkeys = keys
		}
	}

	opt, ok := transportOption(reg, t.Type)
	if !ok {
		return nil
	}
	if t.Config == nil {
		t.Config = map[string]any{}
	}
	for _, spec := range opt.Prompts {
		if v, _ := t.Config[spec.Key].(string); strings.TrimSpace(v) != "" {
			continue
		}
		ans, err := ask(p, spec)
		if err != nil {
			return err
		}
		if ans == "" {
			if spec.Required {
				return fmt.Errorf("%s is required", strings.ToLower(spec.Label))
			}
			continue
		}
		t.Config[spec.Key] = ans
	}
	return nil
}

func ask(p Prompter, spec PromptSpec) (string, error) {
	switch spec.Kind {
	case PromptPassword:
		return p.AskPassword(spec.Label)
	case PromptSelect:
		return p.AskSelect(spec.Label, spec.Options, defaultChoice(spec.Default, spec.Options))
	case PromptConfirm:
		ok, err := p.AskConfirm(spec.Label, spec.Default == "true")
		return fmt.Sprint(ok), err
	default:
		ans, err := p.AskInput(spec.Label, spec.Default)
		return strings.TrimSpace(ans), err
	}
}

func adminAddr(cfg *config.Config) string {
	if cfg.Admin.Addr != "" {
		return cfg.Admin.Addr
	}
	return "127.0.0.1:8080"
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "bangbot", "config.yaml"), nil
}

func writeConfig(path string, cfg *config.Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("make config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// surveyPrompter is the real interactive implementation.
type surveyPrompter struct{}

func (surveyPrompter) AskSelect(label string, options []string, def string) (string, error) {
	sel := def
	prompt := &survey.Select{Message: label, Options: options, Default: def}
	if err := survey.AskOne(prompt, &sel); err != nil {
		return "", err
	}
	return sel, nil
}

func (surveyPrompter) AskInput(label, def string) (string, error) {
	ans := def
	prompt := &survey.Input{Message: label, Default: def}
	if err := survey.AskOne(prompt, &ans); err != nil {
		return "", err
	}
	return ans, nil
}

func (surveyPrompter) AskPassword(label string) (string, error) {
	var ans string
	prompt := &survey.Password{Message: label}
	if err := survey.AskOne(prompt, &ans); err != nil {
		return "", err
	}
	return ans, nil
}

func (surveyPrompter) AskConfirm(label string, def bool) (bool, error) {
	ans := def
	prompt := &survey.Confirm{Message: label, Default: def}
	if err := survey.AskOne(prompt, &ans); err != nil {
		return false, err
	}
	return ans, nil
}

func defaultChoice(defaultVal string, options []string) string {
	for _, opt := range options {
		if opt == defaultVal {
			return defaultVal
		}
	}
	if len(options) > 0 {
		return options[0]
	}
	return defaultVal
}

func presetNames(reg Registry) []string {
	names := make([]string, 0, len(reg.Presets))
	for _, p := range reg.Presets {
		names = append(names, p.Name)
	}
	return names
}

func loadPresetConfig(data []byte) (*config.Config, error) {
	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse preset: %w", err)
	}
	return &cfg, nil
}

func applyWizardDefaults(cfg *config.Config) {
	if cfg.Prefixes.Command == "" {
		cfg.Prefixes.Command = "!"
	}
	if len(cfg.Transports) == 0 {
		cfg.Transports = []config.TransportConfig{{Type: "mock", ID: "mock"}}
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "~/.bangbot/state.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// StubPrompter is used in tests.
type StubPrompter struct {
	Selects   []string
	Inputs    []string
	Passwords []string
	Confirms  []bool
}

func (s *StubPrompter) popSelect(def string) string {
	if len(s.Selects) == 0 {
		return def
	}
	v := s.Selects[0]
	s.Selects = s.Selects[1:]
	return v
}

func (s *StubPrompter) popInput(def string) string {
	if len(s.Inputs) == 0 {
		return def
	}
	v := s.Inputs[0]
	s.Inputs = s.Inputs[1:]
	return v
}

func (s *StubPrompter) popPassword() string {
	if len(s.Passwords) == 0 {
		return ""
	}
	v := s.Passwords[0]
	s.Passwords = s.Passwords[1:]
	return v
}

func (s *StubPrompter) popConfirm(def bool) bool {
	if len(s.Confirms) == 0 {
		return def
	}
	v := s.Confirms[0]
	s.Confirms = s.Confirms[1:]
	return v
}

func (s *StubPrompter) AskSelect(label string, options []string, def string) (string, error) {
	return s.popSelect(def), nil
}
func (s *StubPrompter) AskInput(label, def string) (string, error) {
	return s.popInput(def), nil
}
func (s *StubPrompter) AskPassword(label string) (string, error) {
	return s.popPassword(), nil
}
func (s *StubPrompter) AskConfirm(label string, def bool) (bool, error) {
	return s.popConfirm(def), nil
}
