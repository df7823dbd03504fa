// Package registry owns the set of loaded modules.
//
// Mutations build a new ordered slice and publish it atomically; readers take
// that slice as a snapshot and never see a half-applied load or unload. A
// dispatch that started before an unload keeps running against the modules it
// captured.
package registry

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/keshon/modbot/internal/core"

	"github.com/rs/zerolog"
)

// Source locates and instantiates module artifacts.
type Source interface {
	// Kind names the source in logs ("builtin", "lua").
	Kind() string
	// Lookup returns the artifact location for name.
	Lookup(name string) (location string, ok bool)
	// Instantiate builds a fresh module from the artifact at location.
	Instantiate(name, location string) (*core.Module, error)
	// Evict drops any cached code for location so the next Instantiate
	// re-reads it.
	Evict(location string)
}

type record struct {
	module *core.Module
	source Source
}

type Registry struct {
	mu       sync.Mutex
	sources  []Source
	modules  map[string]record
	order    []string
	snapshot atomic.Pointer[[]*core.Module]
	log      zerolog.Logger
}

// New searches sources in the given order; the first source with a match wins.
func New(logger zerolog.Logger, sources ...Source) *Registry {
	r := &Registry{
		sources: sources,
		modules: make(map[string]record),
		log:     logger.With().Str("component", "registry").Logger(),
	}
	r.publish()
	return r
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Load finds name in the sources and registers it. Nothing is registered on
// failure.
func (r *Registry) Load(_ context.Context, name string) error {
	name = normalize(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.modules[name]; ok {
		return core.NewModuleAlreadyLoadedError(name)
	}

	var (
		src      Source
		location string
	)
	for _, s := range r.sources {
		if loc, ok := s.Lookup(name); ok {
			src, location = s, loc
			break
		}
	}
	if src == nil {
		return core.NewModuleNotFoundError(name)
	}

	mod, err := instantiate(src, name, location)
	if err != nil {
		src.Evict(location)
		return core.NewModuleLoadError(name, err)
	}

	mod.Name = name
	mod.Source = location
	mod.Aliases = core.DeriveAliases(mod.Commands)
	r.warnCollisions(mod)

	r.modules[name] = record{module: mod, source: src}
	r.order = append(r.order, name)
	r.publish()

	r.log.Info().
		Str("module", name).
		Str("source", src.Kind()).
		Int("commands", len(mod.Commands)).
		Int("middleware", len(mod.Middleware)).
		Msg("module loaded")
	return nil
}

func instantiate(src Source, name, location string) (mod *core.Module, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			mod, err = nil, fmt.Errorf("panic: %v", rec)
		}
	}()

	mod, err = src.Instantiate(name, location)
	if err == nil && mod == nil {
		err = fmt.Errorf("source returned no module")
	}
	return mod, err
}

// warnCollisions logs command names and aliases already provided by an
// earlier module. The earlier module keeps winning resolution.
func (r *Registry) warnCollisions(mod *core.Module) {
	for _, other := range r.order {
		prev := r.modules[other].module
		for _, c := range mod.Commands {
			if prev.Command(c.Name) != nil {
				r.log.Warn().
					Str("module", mod.Name).
					Str("shadowed_by", other).
					Str("command", c.Name).
					Msg("command name already provided by an earlier module")
			}
		}
		for alias := range mod.Aliases {
			if _, ok := prev.Aliases[alias]; ok {
				r.log.Warn().
					Str("module", mod.Name).
					Str("shadowed_by", other).
					Str("alias", alias).
					Msg("alias already declared by an earlier module")
			}
		}
	}
}

// Unload removes name and evicts its cached artifact.
func (r *Registry) Unload(_ context.Context, name string) error {
	name = normalize(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.modules[name]
	if !ok {
		return core.NewModuleNotLoadedError(name)
	}

	rec.source.Evict(rec.module.Source)
	delete(r.modules, name)
	r.order = slices.DeleteFunc(slices.Clone(r.order), func(n string) bool { return n == name })
	r.publish()

	r.log.Info().Str("module", name).Msg("module unloaded")
	return nil
}

// Init runs the module's initializer. Errors and panics come back as
// ModuleInitError.
func (r *Registry) Init(ctx context.Context, name string, host core.Host) (err error) {
	name = normalize(name)

	mod, ok := r.Get(name)
	if !ok {
		return core.NewModuleNotLoadedError(name)
	}
	if mod.Init == nil {
		return nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = core.NewModuleInitError(name, fmt.Errorf("panic: %v", rec))
		}
	}()

	if err := mod.Init(ctx, host); err != nil {
		return core.NewModuleInitError(name, err)
	}
	return nil
}

// Reload runs unload, load and init. A failing step does not stop the next
// one, except that init is skipped when load failed.
func (r *Registry) Reload(ctx context.Context, name string, host core.Host) core.ReloadReport {
	var report core.ReloadReport
	report.Unload = r.Unload(ctx, name)
	report.Load = r.Load(ctx, name)
	if report.Load == nil {
		report.Init = r.Init(ctx, name, host)
	}
	return report
}

// publish must be called with mu held.
func (r *Registry) publish() {
	mods := make([]*core.Module, 0, len(r.order))
	for _, name := range r.order {
		mods = append(mods, r.modules[name].module)
	}
	r.snapshot.Store(&mods)
}

// Snapshot returns loaded modules in load order. The slice is shared and
// must not be modified.
func (r *Registry) Snapshot() []*core.Module {
	return *r.snapshot.Load()
}

// Get returns a loaded module by name.
func (r *Registry) Get(name string) (*core.Module, bool) {
	name = normalize(name)
	for _, m := range r.Snapshot() {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// Names returns loaded module names in load order.
func (r *Registry) Names() []string {
	mods := r.Snapshot()
	names := make([]string, len(mods))
	for i, m := range mods {
		names[i] = m.Name
	}
	return names
}

// Available lists module names the sources can provide, loaded or not.
func (r *Registry) Available() []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range r.sources {
		lister, ok := s.(interface{ List() []string })
		if !ok {
			continue
		}
		for _, n := range lister.List() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	slices.Sort(names)
	return names
}
