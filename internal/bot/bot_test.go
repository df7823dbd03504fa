package bot

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/coretest"
	"github.com/keshon/modbot/internal/registry"
	"github.com/keshon/modbot/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	mu sync.Mutex
	n  map[string]int
}

func (c *counter) inc(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n[name]++
}

func (c *counter) get(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n[name]
}

func testCatalog(calls *counter) *core.Catalog {
	cat := core.NewCatalog()
	cat.Register("core", func() *core.Module {
		return &core.Module{
			Commands: []*core.Command{{
				Name:       "ping",
				Permission: core.LevelAll,
				Aliases:    []string{"p"},
				Execute: func(ctx context.Context, inv *core.Invocation) error {
					calls.inc("ping")
					return inv.Reply(ctx, "pong")
				},
			}},
		}
	})
	cat.Register("echo", func() *core.Module {
		return &core.Module{
			Commands: []*core.Command{{
				Name:       "say",
				Permission: core.LevelAll,
				Arguments:  []string{"<text>"},
				Execute: func(ctx context.Context, inv *core.Invocation) error {
					calls.inc("say")
					return inv.Reply(ctx, inv.Args[0])
				},
			}},
			Init: func(_ context.Context, host core.Host) error {
				calls.inc("echo.init")
				_, err := host.Config().SetDefault("modules.echo.greeting", "hi")
				return err
			},
		}
	})
	cat.Register("hush", func() *core.Module {
		return &core.Module{
			Middleware: []core.Stage{func(_ context.Context, mc *core.MessageContext) core.Outcome {
				if mc.Message.Content == "secret" {
					calls.inc("hush")
					return core.Halt
				}
				return core.Proceed
			}},
		}
	})
	cat.Register("boom", func() *core.Module {
		return &core.Module{
			Middleware: []core.Stage{func(context.Context, *core.MessageContext) core.Outcome { panic("stage") }},
		}
	})
	cat.Register("badinit", func() *core.Module {
		return &core.Module{Init: func(context.Context, core.Host) error { return errors.New("nope") }}
	})
	return cat
}

func newBot(t *testing.T) (*Bot, *coretest.Client, *counter) {
	t.Helper()
	calls := &counter{n: map[string]int{}}
	store, err := storage.Open(filepath.Join(t.TempDir(), "config.json"), 0, zerolog.Nop())
	require.NoError(t, err)

	reg := registry.New(zerolog.Nop(), registry.NewBuiltinSource(testCatalog(calls)))
	b := New(store, reg, zerolog.Nop())
	t.Cleanup(b.Tracker().Reset)

	client := coretest.NewClient("bot")
	client.GuildIDs = []string{"g1", "g2"}
	b.SetClient(client)
	return b, client, calls
}

func TestDispatchPing(t *testing.T) {
	b, client, calls := newBot(t)
	require.NoError(t, b.Modules().Load(context.Background(), "core"))

	b.Dispatch(context.Background(), coretest.Message("u1", "$ping"))
	b.Dispatch(context.Background(), coretest.Message("u1", "$p"))

	assert.Equal(t, 2, calls.get("ping"))
	assert.Equal(t, []string{"pong", "pong"}, client.Texts())
}

func TestModuleMiddlewareRunsBeforeCommands(t *testing.T) {
	b, client, calls := newBot(t)
	ctx := context.Background()
	require.NoError(t, b.Modules().Load(ctx, "core"))
	require.NoError(t, b.Modules().Load(ctx, "hush"))
	require.NoError(t, b.Modules().Load(ctx, "boom"))

	assert.Equal(t, core.Halt, b.Dispatch(ctx, coretest.Message("u1", "secret")))
	assert.Equal(t, 1, calls.get("hush"))

	assert.NotPanics(t, func() { b.Dispatch(ctx, coretest.Message("u1", "$ping")) })
	assert.Equal(t, 1, calls.get("ping"), "a panicking stage does not stop the pipeline")

	require.NoError(t, b.Modules().Unload(ctx, "hush"))
	b.Dispatch(ctx, coretest.Message("u1", "secret"))
	assert.Equal(t, 1, calls.get("hush"))
	assert.Len(t, client.Texts(), 1)
}

func TestDispatchCooldown(t *testing.T) {
	b, client, calls := newBot(t)
	ctx := context.Background()
	require.NoError(t, b.Modules().Load(ctx, "core"))
	require.NoError(t, b.Config().Set("defaultUserCooldown.messageCount", 2))
	b.RefreshLimits()

	for range 4 {
		b.Dispatch(ctx, coretest.Message("u1", "$ping"))
	}
	assert.Equal(t, 1, calls.get("ping"))

	texts := client.Texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "pong", texts[0])
	assert.Contains(t, texts[1], "User user-u1 blocked for")
	assert.Equal(t, 0xc63737, client.Sent()[1].Payload.Embed.Color)
	assert.Equal(t, "Rate limit exceeded", client.Sent()[1].Payload.Embed.Title)
}

func TestPrefixOverride(t *testing.T) {
	b, _, _ := newBot(t)
	require.NoError(t, b.Config().Set(storage.Keys("settings", "g2", "prefix"), "!"))

	assert.Equal(t, "$", b.Prefix(""))
	assert.Equal(t, "$", b.Prefix("g1"))
	assert.Equal(t, "!", b.Prefix("g2"))
}

func TestOnConnectPrimesServers(t *testing.T) {
	b, client, _ := newBot(t)
	require.NoError(t, b.Config().Set(storage.Keys("settings", "g1", "prefix"), "!"))

	require.NoError(t, b.OnConnect(context.Background()))

	for _, g := range []string{"g1", "g2"} {
		assert.True(t, b.Config().Has(storage.Keys("settings", g)))
		assert.True(t, b.Config().Has(storage.Keys("serverPermissions", g)))
	}
	assert.Equal(t, "!", b.Prefix("g1"), "existing settings are kept")
	assert.Equal(t, "$help for help", client.Status())
}

func TestLoadActive(t *testing.T) {
	b, _, calls := newBot(t)
	require.NoError(t, b.Config().Set("activeModules", []string{"echo", "missing", "badinit", "core"}))

	err := b.LoadActive(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsCode(err, core.ErrCodeModuleNotFound))
	assert.True(t, core.IsCode(err, core.ErrCodeModuleInit))

	assert.Equal(t, []string{"core", "echo", "badinit"}, b.registry.Names())
	assert.Equal(t, 1, calls.get("echo.init"))
	assert.Equal(t, "hi", b.Config().String("modules.echo.greeting", ""))

	require.NoError(t, b.Config().Set("activeModules", []string{"echo"}))
	require.NoError(t, b.LoadActive(context.Background()), "loaded modules are skipped")
	assert.Equal(t, 1, calls.get("echo.init"))
}

func TestReloadThroughHost(t *testing.T) {
	b, _, calls := newBot(t)
	ctx := context.Background()
	require.NoError(t, b.Modules().Load(ctx, "echo"))

	report := b.Modules().Reload(ctx, "echo")
	require.NoError(t, report.Err())
	assert.Equal(t, 1, calls.get("echo.init"))

	report = b.Modules().Reload(ctx, "missing")
	assert.True(t, core.IsCode(report.Unload, core.ErrCodeModuleNotLoaded))
	assert.True(t, core.IsCode(report.Load, core.ErrCodeModuleNotFound))
	assert.NoError(t, report.Init)
}

func TestNotifyColors(t *testing.T) {
	b, client, _ := newBot(t)
	ctx := context.Background()

	require.NoError(t, b.Notify(ctx, "c1", core.NoticeInfo, "t", "d"))
	require.NoError(t, b.Notify(ctx, "c1", core.NoticeSuccess, "t", "d"))
	require.NoError(t, b.Config().Set("defaultColors.error", "not a color"))
	require.NoError(t, b.Notify(ctx, "c1", core.NoticeError, "t", "d"))

	sent := client.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, 0x287db4, sent[0].Payload.Embed.Color)
	assert.Equal(t, 0x41b95f, sent[1].Payload.Embed.Color)
	assert.Zero(t, sent[2].Payload.Embed.Color)
}

type fakeConn struct {
	*coretest.Client
	closed bool
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestRunRestartAndShutdown(t *testing.T) {
	b, _, calls := newBot(t)
	require.NoError(t, b.Config().Set("activeModules", []string{"echo"}))

	var conns []*fakeConn
	dial := func(_ context.Context, handle func(*core.Message)) (Conn, error) {
		conn := &fakeConn{Client: coretest.NewClient("bot")}
		conns = append(conns, conn)
		if len(conns) == 1 {
			b.Restart()
		} else {
			b.Shutdown()
		}
		return conn, nil
	}

	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background(), dial) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	require.Len(t, conns, 2)
	assert.True(t, conns[0].closed)
	assert.True(t, conns[1].closed)
	assert.Equal(t, 2, calls.get("echo.init"), "modules are activated again after restart")
	assert.Empty(t, b.registry.Names())
	assert.Equal(t, "$help for help", conns[1].Status())
}

func TestRunStopsWithContext(t *testing.T) {
	b, _, _ := newBot(t)
	ctx, cancel := context.WithCancel(context.Background())

	dial := func(context.Context, func(*core.Message)) (Conn, error) {
		cancel()
		return &fakeConn{Client: coretest.NewClient("bot")}, nil
	}
	assert.NoError(t, b.Run(ctx, dial))
}

func TestRunDialError(t *testing.T) {
	b, _, _ := newBot(t)
	dial := func(context.Context, func(*core.Message)) (Conn, error) {
		return nil, errors.New("bad token")
	}
	assert.ErrorContains(t, b.Run(context.Background(), dial), "bad token")
}
