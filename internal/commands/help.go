package commands

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultLookupFormat is used when a help entry does not exist. %s is the
// requested identifier.
const DefaultLookupFormat = "Could not find command with identifier %s."

// Help is a command that replies privately with help text. With no raw
// arguments it lists every entry; otherwise it looks up the first one.
type Help struct {
	cmd *Command
	// LookupFormat phrases the reply for unknown identifiers. Without a %s it
	// is used verbatim.
	LookupFormat string
	entries      map[string]string
}

// NewHelp returns a help command answering to identifier.
func NewHelp(identifier string, entries map[string]string) *Help {
	h := &Help{
		cmd:          New(identifier),
		LookupFormat: DefaultLookupFormat,
		entries:      make(map[string]string, len(entries)),
	}
	for k, v := range entries {
		h.entries[k] = v
	}
	h.cmd.Describe("Shows help for all commands or for one").Usage(identifier + " [command]")
	h.cmd.Do(h.run)
	return h
}

// HelpFromJSON builds a help command from {"commands": {"id": "text"}}.
func HelpFromJSON(identifier string, data []byte) (*Help, error) {
	entries, err := parseHelpJSON(data)
	if err != nil {
		return nil, err
	}
	return NewHelp(identifier, entries), nil
}

// HelpFromFile reads path and calls HelpFromJSON.
func HelpFromFile(identifier, path string) (*Help, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: help file path is empty", ErrConfiguration)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read help file: %w", ErrConfiguration, err)
	}
	return HelpFromJSON(identifier, data)
}

func parseHelpJSON(data []byte) (map[string]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: help data is not valid JSON", ErrConfiguration)
	}
	cmds := gjson.GetBytes(data, "commands")
	if !cmds.IsObject() {
		return nil, fmt.Errorf("%w: help data needs a \"commands\" object", ErrConfiguration)
	}
	entries := make(map[string]string)
	var bad string
	cmds.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.String {
			bad = key.String()
			return false
		}
		entries[key.String()] = value.String()
		return true
	})
	if bad != "" {
		return nil, fmt.Errorf("%w: help entry %q is not a string", ErrConfiguration, bad)
	}
	return entries, nil
}

// Add sets the help text for identifier, replacing any existing entry.
func (h *Help) Add(identifier, text string) *Help {
	h.entries[identifier] = text
	return h
}

// AddFrom adds an entry for every described descriptor that has none yet.
func (h *Help) AddFrom(descs ...Descriptor) *Help {
	for _, d := range descs {
		if d.Description() == "" {
			continue
		}
		if _, ok := h.entries[d.Identifier()]; !ok {
			text := d.Description()
			if u, ok := d.(interface{ UsageText() string }); ok && u.UsageText() != "" {
				text += "\nusage: " + u.UsageText()
			}
			h.entries[d.Identifier()] = text
		}
	}
	return h
}

// Lookup returns the help text for identifier.
func (h *Help) Lookup(identifier string) string {
	if text, ok := h.entries[identifier]; ok {
		return text
	}
	format := h.LookupFormat
	if format == "" {
		format = DefaultLookupFormat
	}
	if !strings.Contains(format, "%s") {
		return format
	}
	return fmt.Sprintf(format, identifier)
}

// Entries returns a copy of the help dictionary.
func (h *Help) Entries() map[string]string {
	out := make(map[string]string, len(h.entries))
	for k, v := range h.entries {
		out[k] = v
	}
	return out
}

// String renders every entry, sorted by identifier.
func (h *Help) String() string {
	keys := make([]string, 0, len(h.entries))
	for k := range h.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Help for **%d** commands:\n", len(keys))
	for _, k := range keys {
		fmt.Fprintf(&sb, "**%s** → ```rb\n%s```\n", k, h.entries[k])
	}
	return sb.String()
}

// Identifier returns the routing key.
func (h *Help) Identifier() string { return h.cmd.Identifier() }

// Description returns the one-line help text.
func (h *Help) Description() string { return h.cmd.Description() }

// UsageText returns the usage line.
func (h *Help) UsageText() string { return h.cmd.UsageText() }

// Err reports builder misuse.
func (h *Help) Err() error {
	if h == nil {
		return invalidf("nil command")
	}
	return h.cmd.Err()
}

// Invoke runs the help command.
func (h *Help) Invoke(c *Context) Outcome { return h.cmd.Invoke(c) }

func (h *Help) run(c *Context) error {
	raw := c.Args().Raw()
	if len(raw) == 0 {
		c.ReplyToUser(h.String())
		return nil
	}
	c.ReplyToUser(h.Lookup(Unquote(raw[0])))
	return nil
}
