// Package presets ships starter configs for common bot setups.
package presets

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joelklabo/bangbot/internal/check"
)

//go:embed data/*.yaml
var data embed.FS

var descriptions = map[string]string{
	"mock-echo":   "Offline mock transport for trying commands locally",
	"discord-bot": "Discord bot answering in guild channels and DMs",
	"nostr-dm":    "Encrypted nostr DMs from an allowlist of pubkeys",
	"email-imap":  "Commands by email over IMAP/SMTP",
}

// List returns preset names and descriptions.
func List() map[string]string {
	out := make(map[string]string, len(descriptions))
	for k, v := range descriptions {
		out[k] = v
	}
	return out
}

// Names returns preset names sorted.
func Names() []string {
	names := make([]string, 0, len(descriptions))
	for k := range descriptions {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Get returns the raw YAML for a preset, or an error if unknown.
// User overrides win over the embedded copy.
func Get(name string) ([]byte, error) {
	if b, ok := loadOverride(name); ok {
		return b, nil
	}
	if _, ok := descriptions[name]; !ok {
		return nil, fmt.Errorf("unknown preset %s", name)
	}
	return data.ReadFile("data/" + name + ".yaml")
}

// Deps returns the preflight checks a preset needs before it can run.
func Deps() map[string][]check.DepInput {
	return map[string][]check.DepInput{
		"discord-bot": {
			{Name: "BANGBOT_DISCORD_TOKEN", Type: "env", Optional: true, Hint: "or set transports[].token"},
			{Name: "https://discord.com/api/v10/gateway", Type: "url", Optional: true, Hint: "Discord API reachability"},
		},
		"nostr-dm": {
			{Name: "BANGBOT_NOSTR_PRIVATE_KEY", Type: "env", Optional: true, Hint: "or set transports[].private_key"},
			{Name: "wss://relay.damus.io", Type: "relay", Optional: true, Hint: "default relay"},
		},
		"email-imap": {
			{Name: "imap.example.com:993", Type: "port", Optional: true, Hint: "replace with your IMAP host"},
		},
	}
}

// loadOverride returns user/project preset overrides if present.
func loadOverride(name string) ([]byte, bool) {
	for _, path := range overridePaths(name) {
		if b, err := os.ReadFile(path); err == nil {
			return b, true
		}
	}
	return nil, false
}

func overridePaths(name string) []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "bangbot", "presets", name+".yaml"))
	}
	paths = append(paths, filepath.Join("presets", name+".yaml"))
	return paths
}
