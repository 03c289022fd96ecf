package config

import (
	"fmt"
	"strings"
)

// ValidateTransports performs type-specific validation beyond presence checks.
func (c *Config) ValidateTransports() error {
	seenIDs := make(map[string]struct{})
	for i, t := range c.Transports {
		if t.Type == "" {
			return fmt.Errorf("transport %d: type is required", i)
		}
		if _, exists := seenIDs[t.ID]; exists {
			return fmt.Errorf("transport id %q is duplicated", t.ID)
		}
		seenIDs[t.ID] = struct{}{}

		switch t.Type {
		case "discord":
			if t.Token == "" {
				return fmt.Errorf("transport %q: token required (or set BANGBOT_DISCORD_TOKEN)", t.ID)
			}
		case "nostr":
			if len(t.Relays) == 0 {
				return fmt.Errorf("transport %q: relays required", t.ID)
			}
			if _, err := t.NostrPubKey(); err != nil {
				return err
			}
		case "email":
			for _, k := range []string{"host", "username", "password"} {
				if v, _ := t.Config[k].(string); strings.TrimSpace(v) == "" {
					return fmt.Errorf("transport %q: config.%s required", t.ID, k)
				}
			}
		case "mock":
		default:
			return fmt.Errorf("transport %q: unknown type %s", t.ID, t.Type)
		}
	}
	return nil
}
