package bot

import (
	"context"

	"github.com/keshon/modbot/internal/core"
)

// lifecycle is the registry as modules see it: initializers receive the bot
// as their host.
type lifecycle struct {
	b *Bot
}

var _ core.Modules = lifecycle{}

func (l lifecycle) Load(ctx context.Context, name string) error {
	return l.b.registry.Load(ctx, name)
}

func (l lifecycle) Unload(ctx context.Context, name string) error {
	return l.b.registry.Unload(ctx, name)
}

func (l lifecycle) Init(ctx context.Context, name string) error {
	return l.b.registry.Init(ctx, name, l.b)
}

func (l lifecycle) Reload(ctx context.Context, name string) core.ReloadReport {
	return l.b.registry.Reload(ctx, name, l.b)
}

func (l lifecycle) Loaded() []*core.Module {
	return l.b.registry.Snapshot()
}

func (l lifecycle) Get(name string) (*core.Module, bool) {
	return l.b.registry.Get(name)
}

// Available lists every module the sources can provide.
func (l lifecycle) Available() []string {
	return l.b.registry.Available()
}
