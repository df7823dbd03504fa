package registry

import (
	"strings"

	"github.com/keshon/modbot/internal/core"
)

const builtinScheme = "builtin:"

// BuiltinSource serves modules compiled into the binary.
type BuiltinSource struct {
	catalog *core.Catalog
}

func NewBuiltinSource(catalog *core.Catalog) *BuiltinSource {
	if catalog == nil {
		catalog = core.DefaultCatalog
	}
	return &BuiltinSource{catalog: catalog}
}

func (s *BuiltinSource) Kind() string { return "builtin" }

func (s *BuiltinSource) Lookup(name string) (string, bool) {
	if _, ok := s.catalog.Factory(name); !ok {
		return "", false
	}
	return builtinScheme + name, true
}

func (s *BuiltinSource) Instantiate(name, location string) (*core.Module, error) {
	factory, ok := s.catalog.Factory(strings.TrimPrefix(location, builtinScheme))
	if !ok {
		return nil, core.NewModuleNotFoundError(name)
	}
	return factory(), nil
}

// Evict is a no-op: every Instantiate calls the factory again.
func (s *BuiltinSource) Evict(string) {}

func (s *BuiltinSource) List() []string {
	return s.catalog.Names()
}
