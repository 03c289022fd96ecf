package wizard

import "github.com/joelklabo/bangbot/internal/presets"

// PromptKind enumerates the type of prompt.
type PromptKind string

const (
	PromptInput    PromptKind = "input"
	PromptPassword PromptKind = "password"
	PromptSelect   PromptKind = "select"
	PromptConfirm  PromptKind = "confirm"
)

// PromptSpec describes a question to ask. Key names the transport config
// entry the answer fills.
type PromptSpec struct {
	Kind        PromptKind
	Key         string
	Label       string
	Default     string
	Options     []string
	Required    bool
	Description string
}

type TransportOption struct {
	Name        string
	Description string
	Prompts     []PromptSpec
}

type PresetOption struct {
	Name        string
	Description string
}

// Registry holds available options for the wizard.
type Registry struct {
	Transports []TransportOption
	Presets    []PresetOption
}

var defaultRegistry = Registry{
	Transports: []TransportOption{
		{Name: "discord", Description: "Discord bot (guild channels and DMs)"},
		{Name: "nostr", Description: "Nostr DMs over relays"},
		{Name: "email", Description: "IMAP inbox with SMTP replies", Prompts: []PromptSpec{
			{Kind: PromptInput, Key: "host", Label: "IMAP host", Required: true},
			{Kind: PromptInput, Key: "username", Label: "Mailbox username", Required: true},
			{Kind: PromptPassword, Key: "password", Label: "Mailbox password", Required: true},
			{Kind: PromptInput, Key: "smtp_host", Label: "SMTP host (blank to reuse IMAP host)"},
		}},
		{Name: "mock", Description: "Offline mock transport"},
	},
	Presets: presetOptions(),
}

func presetOptions() []PresetOption {
	list := presets.List()
	out := make([]PresetOption, 0, len(list))
	for _, name := range presets.Names() {
		out = append(out, PresetOption{Name: name, Description: list[name]})
	}
	return out
}

// GetRegistry returns the default registry (copy).
func GetRegistry() Registry {
	return defaultRegistry
}

// SetRegistry overrides the global registry (primarily for tests/extensibility).
// Callers should restore the previous value after use to avoid leaking state across tests.
func SetRegistry(r Registry) {
	defaultRegistry = r
}

func transportOption(reg Registry, name string) (TransportOption, bool) {
	for _, t := range reg.Transports {
		if t.Name == name {
			return t, true
		}
	}
	return TransportOption{}, false
}
