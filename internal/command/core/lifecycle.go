package core

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	api "github.com/keshon/modbot/internal/core"
)

func lifecycleCommands() []*api.Command {
	return []*api.Command{
		{
			Name:        "kill",
			Description: "Shut the bot down.",
			Permission:  api.LevelOwner,
			Aliases:     []string{"shutdown"},
			Execute: func(ctx context.Context, inv *api.Invocation) error {
				if err := inv.Host.Client().React(ctx, inv.Message.ChannelID, inv.Message.ID, "👋"); err != nil {
					log := inv.Host.Logger()
					log.Debug().Err(err).Msg("failed to react")
				}
				inv.Host.Shutdown()
				return nil
			},
		},
		{
			Name:        "restart",
			Description: "Restart the bot.",
			Permission:  api.LevelOwner,
			Execute: func(ctx context.Context, inv *api.Invocation) error {
				if err := inv.Host.Client().React(ctx, inv.Message.ChannelID, inv.Message.ID, "🔄"); err != nil {
					log := inv.Host.Logger()
					log.Debug().Err(err).Msg("failed to react")
				}
				inv.Host.Restart()
				return nil
			},
		},
		{
			Name:        "reload",
			Description: "Reload all loaded modules.",
			Permission:  api.LevelOwner,
			Execute:     runReloadAll,
		},
		{
			Name:        "loadmodule",
			Description: "Load a module and keep it active across restarts.",
			Arguments:   []string{"<module>"},
			Permission:  api.LevelOwner,
			Execute:     runLoadModule,
		},
		{
			Name:        "unloadmodule",
			Description: "Unload a module and drop it from the active list.",
			Arguments:   []string{"<module>"},
			Permission:  api.LevelOwner,
			Execute:     runUnloadModule,
		},
		{
			Name:        "reloadmodule",
			Description: "Reload a module from its source.",
			Arguments:   []string{"<module>"},
			Permission:  api.LevelOwner,
			Execute:     runReloadModule,
		},
	}
}

func elapsed(start time.Time) string {
	return time.Since(start).Round(time.Millisecond).String()
}

// reportReload sends one notice per failed step and reports whether every
// step succeeded.
func reportReload(ctx context.Context, inv *api.Invocation, name string, r api.ReloadReport) bool {
	steps := []struct {
		verb string
		err  error
	}{{"unloading", r.Unload}, {"loading", r.Load}, {"initializing", r.Init}}

	ok := true
	for _, s := range steps {
		if s.err == nil {
			continue
		}
		ok = false
		if err := inv.Notify(ctx, api.NoticeError, fmt.Sprintf("Error %s `%s`", s.verb, name), api.Describe(s.err)); err != nil {
			log := inv.Host.Logger()
			log.Warn().Err(err).Msg("failed to report reload")
		}
	}
	return ok
}

func runReloadAll(ctx context.Context, inv *api.Invocation) error {
	start := time.Now()
	mods := inv.Host.Modules()

	failed := 0
	for _, m := range mods.Loaded() {
		if !reportReload(ctx, inv, m.Name, mods.Reload(ctx, m.Name)) {
			failed++
		}
	}
	if failed > 0 {
		return failure(ctx, inv, fmt.Sprintf("%d module(s) failed to reload.", failed))
	}
	return success(ctx, inv, "Reloaded all modules in "+elapsed(start))
}

func runLoadModule(ctx context.Context, inv *api.Invocation) error {
	start := time.Now()
	name := strings.ToLower(inv.Args[0])
	mods := inv.Host.Modules()

	if err := mods.Load(ctx, name); err != nil {
		return err
	}
	if err := mods.Init(ctx, name); err != nil {
		return err
	}

	cfg := inv.Host.Config()
	active := cfg.Strings("activeModules")
	if !slices.Contains(active, name) {
		if err := set(cfg, "activeModules", append(active, name)); err != nil {
			return err
		}
	}
	return success(ctx, inv, fmt.Sprintf("Module `%s` loaded in %s", name, elapsed(start)))
}

func runUnloadModule(ctx context.Context, inv *api.Invocation) error {
	start := time.Now()
	name := strings.ToLower(inv.Args[0])
	if name == Name {
		return api.NewModuleProtectedError(name)
	}
	if err := inv.Host.Modules().Unload(ctx, name); err != nil {
		return err
	}

	cfg := inv.Host.Config()
	active := cfg.Strings("activeModules")
	if i := slices.Index(active, name); i >= 0 {
		if err := set(cfg, "activeModules", slices.Delete(active, i, i+1)); err != nil {
			return err
		}
	}
	return success(ctx, inv, fmt.Sprintf("Module `%s` unloaded in %s", name, elapsed(start)))
}

func runReloadModule(ctx context.Context, inv *api.Invocation) error {
	start := time.Now()
	name := strings.ToLower(inv.Args[0])
	if !reportReload(ctx, inv, name, inv.Host.Modules().Reload(ctx, name)) {
		return nil
	}
	return success(ctx, inv, fmt.Sprintf("Module `%s` reloaded in %s", name, elapsed(start)))
}
