// Package bot holds the host: the value that owns the config store, the
// module registry, the cooldown tracker and the chat client, and runs every
// inbound message through the pipeline.
package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/keshon/modbot/internal/cooldown"
	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/middleware"
	"github.com/keshon/modbot/internal/registry"
	"github.com/keshon/modbot/internal/storage"

	"github.com/rs/zerolog"
)

// ProtectedModule is always loaded first and cannot be unloaded by command.
const ProtectedModule = "core"

type Signal int

const (
	SignalRestart Signal = iota + 1
	SignalShutdown
)

func (s Signal) String() string {
	switch s {
	case SignalRestart:
		return "restart"
	case SignalShutdown:
		return "shutdown"
	default:
		return "none"
	}
}

// Conn is a connected transport session.
type Conn interface {
	core.Client
	Close() error
}

// Dialer connects the transport and delivers inbound messages to handle.
type Dialer func(ctx context.Context, handle func(*core.Message)) (Conn, error)

type Bot struct {
	store    *storage.Storage
	registry *registry.Registry
	tracker  *cooldown.Tracker
	log      zerolog.Logger

	mu     sync.RWMutex
	client core.Client

	started time.Time
	signals chan Signal
}

var _ core.Host = (*Bot)(nil)

func New(store *storage.Storage, reg *registry.Registry, logger zerolog.Logger) *Bot {
	b := &Bot{
		store:    store,
		registry: reg,
		tracker:  cooldown.New(cooldown.Limits{}),
		log:      logger.With().Str("component", "bot").Logger(),
		client:   noClient{},
		started:  time.Now(),
		signals:  make(chan Signal, 1),
	}
	b.RefreshLimits()
	return b
}

func (b *Bot) Config() core.Config    { return b.store }
func (b *Bot) Modules() core.Modules  { return lifecycle{b} }
func (b *Bot) Logger() zerolog.Logger { return b.log }
func (b *Bot) Uptime() time.Duration  { return time.Since(b.started) }

func (b *Bot) Tracker() *cooldown.Tracker { return b.tracker }

func (b *Bot) Client() core.Client {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.client
}

// SetClient swaps the transport, used on connect and reconnect.
func (b *Bot) SetClient(c core.Client) {
	if c == nil {
		c = noClient{}
	}
	b.mu.Lock()
	b.client = c
	b.mu.Unlock()
}

func (b *Bot) Resolve(name string) (*core.Command, *core.Module) {
	return core.ResolveCommand(name, b.store.StringMap("commandAliases"), b.registry.Snapshot())
}

func (b *Bot) Prefix(guildID string) string {
	global := b.store.String("prefix", "$")
	if guildID == "" {
		return global
	}
	return b.store.String(storage.Keys("settings", guildID, "prefix"), global)
}

func (b *Bot) Notify(ctx context.Context, channelID string, kind core.NoticeKind, title, description string) error {
	return b.Client().Send(ctx, channelID, core.Payload{Embed: &core.Embed{
		Title:       title,
		Description: description,
		Color:       core.NoticeColor(b.store, kind),
	}})
}

// Restart asks Run to reconnect. Pending requests are not queued twice.
func (b *Bot) Restart() { b.signal(SignalRestart) }

// Shutdown asks Run to return.
func (b *Bot) Shutdown() { b.signal(SignalShutdown) }

func (b *Bot) signal(s Signal) {
	select {
	case b.signals <- s:
	default:
	}
}

// RefreshLimits copies the cooldown settings from the config into the tracker.
func (b *Bot) RefreshLimits() {
	ms := func(key string) time.Duration {
		return time.Duration(b.store.Int(storage.Keys("defaultUserCooldown", key), 0)) * time.Millisecond
	}
	b.tracker.SetLimits(cooldown.Limits{
		Window:    ms("intervalMs"),
		Threshold: b.store.Int("defaultUserCooldown.messageCount", 0),
		Block:     ms("blockDurationMs"),
	})
}

// Dispatch runs one inbound message through a pipeline built from the
// modules loaded right now. Later loads and unloads do not affect it.
func (b *Bot) Dispatch(ctx context.Context, msg *core.Message) core.Outcome {
	mods := b.registry.Snapshot()

	stages := []core.Stage{middleware.SenderFilter()}
	for _, mod := range mods {
		for _, stage := range mod.Middleware {
			stages = append(stages, b.guard(mod.Name, stage))
		}
	}
	stages = append(stages,
		middleware.Cooldown(b.tracker),
		middleware.CommandDetector(),
		middleware.CommandDispatcher(b.log, middleware.WithCommandLogger(b.log)),
	)

	mc := &core.MessageContext{Message: msg, Host: b, Modules: mods}
	return core.RunPipeline(ctx, mc, stages)
}

// guard keeps a panicking module stage from taking the handler down.
func (b *Bot) guard(module string, stage core.Stage) core.Stage {
	return func(ctx context.Context, mc *core.MessageContext) (out core.Outcome) {
		defer func() {
			if r := recover(); r != nil {
				b.log.Error().Str("module", module).Interface("panic", r).Msg("middleware panicked")
				out = core.Proceed
			}
		}()
		return stage(ctx, mc)
	}
}

// OnConnect primes the per-server config subtrees for every server the
// client sees and sets the presence.
func (b *Bot) OnConnect(ctx context.Context) error {
	client := b.Client()
	for _, guildID := range client.Guilds() {
		for _, root := range []string{"settings", "serverPermissions"} {
			if _, err := b.store.SetDefault(storage.Keys(root, guildID), map[string]any{}); err != nil {
				return err
			}
		}
	}
	if err := b.store.Save(); err != nil {
		return err
	}

	if game := b.store.String("defaultGame", ""); game != "" {
		if err := client.SetStatus(game); err != nil {
			b.log.Warn().Err(err).Msg("failed to set presence")
		}
	}
	return nil
}

// LoadActive loads and initializes every module named in activeModules,
// core first. A failing module is logged and skipped.
func (b *Bot) LoadActive(ctx context.Context) error {
	names := b.store.Strings("activeModules")
	names = slices.DeleteFunc(names, func(n string) bool { return strings.EqualFold(n, ProtectedModule) })
	names = append([]string{ProtectedModule}, names...)

	var errs []error
	mods := b.Modules()
	for _, name := range names {
		if _, ok := mods.Get(name); ok {
			continue
		}
		err := mods.Load(ctx, name)
		if err == nil {
			err = mods.Init(ctx, name)
		}
		if err != nil {
			b.log.Error().Err(err).Str("module", name).Msg("failed to activate module")
			errs = append(errs, err)
		}
	}
	b.log.Info().Strs("modules", b.registry.Names()).Msg("modules active")
	return errors.Join(errs...)
}

// UnloadAll unloads every module in reverse load order.
func (b *Bot) UnloadAll(ctx context.Context) {
	names := b.registry.Names()
	for i := len(names) - 1; i >= 0; i-- {
		if err := b.registry.Unload(ctx, names[i]); err != nil {
			b.log.Warn().Err(err).Str("module", names[i]).Msg("failed to unload module")
		}
	}
}

// Run connects, activates modules and serves until Shutdown or ctx ends. On
// Restart it unloads everything, disconnects, re-reads the config and starts
// over.
func (b *Bot) Run(ctx context.Context, dial Dialer) error {
	for {
		conn, err := dial(ctx, func(msg *core.Message) { b.Dispatch(ctx, msg) })
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		b.SetClient(conn)

		if err := b.OnConnect(ctx); err != nil {
			b.log.Warn().Err(err).Msg("failed to prime server settings")
		}
		if err := b.LoadActive(ctx); err != nil {
			b.log.Warn().Err(err).Msg("some modules failed to activate")
		}

		sig := b.wait(ctx)
		b.log.Info().Stringer("signal", sig).Msg("stopping")

		b.UnloadAll(ctx)
		b.tracker.Reset()
		if err := conn.Close(); err != nil {
			b.log.Warn().Err(err).Msg("failed to close connection")
		}
		b.SetClient(nil)

		if sig != SignalRestart {
			return b.store.Save()
		}

		if err := b.store.Load(); err != nil {
			b.log.Warn().Err(err).Msg("config reloaded with errors")
		}
		b.RefreshLimits()
	}
}

func (b *Bot) wait(ctx context.Context) Signal {
	select {
	case <-ctx.Done():
		return SignalShutdown
	case sig := <-b.signals:
		return sig
	}
}

// noClient stands in while disconnected.
type noClient struct{}

var errDisconnected = errors.New("not connected")

func (noClient) SelfID() string   { return "" }
func (noClient) Guilds() []string { return nil }
func (noClient) Send(context.Context, string, core.Payload) error {
	return errDisconnected
}
func (noClient) React(context.Context, string, string, string) error { return errDisconnected }
func (noClient) SetNickname(context.Context, string, string, string) error {
	return errDisconnected
}
func (noClient) SetStatus(string) error { return errDisconnected }
func (noClient) Guild(context.Context, string) (*core.Guild, error) {
	return nil, errDisconnected
}
func (noClient) UserInfo(context.Context, string, string) (*core.UserInfo, error) {
	return nil, errDisconnected
}
