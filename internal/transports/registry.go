// Package transports keeps the table of transport constructors. Each
// transport package registers itself from init; importing it is enough to
// make its type available to config.
package transports

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/joelklabo/bangbot/internal/config"
	"github.com/joelklabo/bangbot/internal/core"
	"github.com/joelklabo/bangbot/internal/store"
)

// Deps are the shared services a transport may use.
type Deps struct {
	Store  *store.Store
	Logger *slog.Logger
}

// Constructor builds a Transport from its config section.
type Constructor func(cfg config.TransportConfig, deps Deps) (core.Transport, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Constructor)
)

// Register adds a constructor for a transport type.
func Register(kind string, ctor Constructor) error {
	if ctor == nil {
		return fmt.Errorf("transport type %s: nil constructor", kind)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[kind]; exists {
		return fmt.Errorf("transport type %s already registered", kind)
	}
	registry[kind] = ctor
	return nil
}

// MustRegister panics on error; intended for init() in transport packages.
func MustRegister(kind string, ctor Constructor) {
	if err := Register(kind, ctor); err != nil {
		panic(err)
	}
}

// Build constructs the transport described by cfg.
func Build(cfg config.TransportConfig, deps Deps) (core.Transport, error) {
	registryMu.RLock()
	ctor, ok := registry[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown transport type %s", cfg.Type)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Logger = deps.Logger.With(slog.String("transport", cfg.ID))
	return ctor(cfg, deps)
}

// RegisteredTypes returns the registered transport kinds, sorted.
func RegisteredTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// DecodeConfig copies a free-form config map into a typed struct through
// its yaml tags.
func DecodeConfig(m map[string]any, out any) error {
	if len(m) == 0 {
		return nil
	}
	b, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, out)
}
