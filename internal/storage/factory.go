// factory.go holds the archive backend registry. Backend packages register a
// constructor from init(), and NewArchive picks one by the
// storage.default_backend config value.
package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/GenAIPHBuilders-org/team-Deansanitzy-2025-sub005/internal/config"
)

// FactoryFunc builds an Archive from application config.
type FactoryFunc func(*config.Config) (Archive, error)

var factories = make(map[string]FactoryFunc)

// Register makes a backend available under the given config name. Called from
// backend package init() functions; not safe for use after startup.
func Register(name string, factory FactoryFunc) {
	factories[name] = factory
}

// NewArchive builds the archive backend named by storage.default_backend.
// The error for an unknown name lists what was compiled in, since the set
// depends on which backend packages main blank-imports.
func NewArchive(cfg *config.Config) (Archive, error) {
	factory, ok := factories[cfg.Storage.DefaultBackend]
	if !ok {
		return nil, fmt.Errorf("unsupported storage backend %q (registered: %s)",
			cfg.Storage.DefaultBackend, strings.Join(registeredBackends(), ", "))
	}
	return factory(cfg)
}

func registeredBackends() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
