package strategy

import (
	"sort"
	"sync"

	apperrors "delta-trader/internal/errors"
)

// Factory builds a rule set from its configuration.
type Factory func(cfg Config) (Rules, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a strategy factory under a name. Registration happens from
// init functions; a duplicate name panics early rather than shadowing.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		panic("strategy: duplicate registration of " + name)
	}
	registry[name] = factory
}

// New builds the named rule set, returning ErrUnknownStrategy for names
// never registered.
func New(name string, cfg Config) (Rules, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrUnknownStrategy, "%q", name)
	}
	return factory(cfg)
}

// Names lists every registered strategy, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
