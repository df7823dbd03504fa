package core

import (
	"sort"
	"sync"
)

// ModuleFactory builds a fresh module instance. It runs on every load so no
// state survives an unload.
type ModuleFactory func() *Module

// Catalog holds the modules compiled into the binary. Packages register
// their factory from init().
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]ModuleFactory
}

func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]ModuleFactory)}
}

// DefaultCatalog is filled by the builtin module packages.
var DefaultCatalog = NewCatalog()

// RegisterModule registers a builtin module in DefaultCatalog
func RegisterModule(name string, factory ModuleFactory) {
	DefaultCatalog.Register(name, factory)
}

func (c *Catalog) Register(name string, factory ModuleFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
}

// Factory returns the factory registered under name
func (c *Catalog) Factory(name string) (ModuleFactory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.factories[name]
	return f, ok
}

// Names returns registered module names, sorted
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
