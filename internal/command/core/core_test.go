package core

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"

	api "github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/coretest"
	"github.com/keshon/modbot/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// modules is an in-memory module lifecycle over a fixed set of factories.
type modules struct {
	factories map[string]api.ModuleFactory
	loaded    []*api.Module
	inits     map[string]int
}

func newModules() *modules {
	return &modules{
		factories: map[string]api.ModuleFactory{
			Name: New,
			"extra": func() *api.Module {
				return &api.Module{Commands: []*api.Command{{Name: "greet", Aliases: []string{"hi"}, Permission: api.LevelAll}}}
			},
		},
		inits: map[string]int{},
	}
}

func (m *modules) Load(_ context.Context, name string) error {
	if _, ok := m.Get(name); ok {
		return api.NewModuleAlreadyLoadedError(name)
	}
	f, ok := m.factories[name]
	if !ok {
		return api.NewModuleNotFoundError(name)
	}
	mod := f()
	mod.Name = name
	mod.Aliases = api.DeriveAliases(mod.Commands)
	m.loaded = append(m.loaded, mod)
	return nil
}

func (m *modules) Unload(_ context.Context, name string) error {
	i := slices.IndexFunc(m.loaded, func(mod *api.Module) bool { return mod.Name == name })
	if i < 0 {
		return api.NewModuleNotLoadedError(name)
	}
	m.loaded = slices.Delete(m.loaded, i, i+1)
	return nil
}

func (m *modules) Init(_ context.Context, name string) error {
	if _, ok := m.Get(name); !ok {
		return api.NewModuleNotLoadedError(name)
	}
	m.inits[name]++
	return nil
}

func (m *modules) Reload(ctx context.Context, name string) api.ReloadReport {
	var r api.ReloadReport
	r.Unload = m.Unload(ctx, name)
	if r.Load = m.Load(ctx, name); r.Load == nil {
		r.Init = m.Init(ctx, name)
	}
	return r
}

func (m *modules) Loaded() []*api.Module { return slices.Clone(m.loaded) }

func (m *modules) Get(name string) (*api.Module, bool) {
	i := slices.IndexFunc(m.loaded, func(mod *api.Module) bool { return mod.Name == name })
	if i < 0 {
		return nil, false
	}
	return m.loaded[i], true
}

func newHost(t *testing.T) (*coretest.Host, *modules) {
	t.Helper()
	host := coretest.NewHost(t)
	mods := newModules()
	require.NoError(t, mods.Load(context.Background(), Name))
	host.Mods = mods
	require.NoError(t, host.Cfg.Set("owner", "boss"))
	return host, mods
}

func run(t *testing.T, host *coretest.Host, msg *api.Message, name string, args ...string) error {
	t.Helper()
	mod := New()
	cmd := mod.Command(name)
	require.NotNil(t, cmd, name)
	return cmd.Execute(context.Background(), &api.Invocation{
		Message: msg,
		Args:    args,
		Host:    host,
		Command: cmd,
		Module:  mod,
		Prefix:  "$",
	})
}

func last(host *coretest.Host) string {
	texts := host.Cl.Texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func TestOwn(t *testing.T) {
	host := coretest.NewHost(t)

	require.NoError(t, run(t, host, coretest.Message("u1", ""), "own"))
	assert.Equal(t, "u1", host.Cfg.String("owner", ""))
	assert.Len(t, host.Cl.Reactions(), 1)

	require.NoError(t, run(t, host, coretest.Message("u2", ""), "own"))
	assert.Equal(t, "u1", host.Cfg.String("owner", ""))
	assert.Equal(t, "The bot already has an owner.", last(host))
}

func TestSetConfig(t *testing.T) {
	host, _ := newHost(t)
	msg := coretest.Message("boss", "")

	require.NoError(t, run(t, host, msg, "setconfig", "modules.test.limit", "5"))
	assert.Equal(t, 5, host.Cfg.Int("modules.test.limit", 0))

	require.NoError(t, run(t, host, msg, "setconfig", "modules.test.motd", "hello", "there"))
	assert.Equal(t, "hello there", host.Cfg.String("modules.test.motd", ""))

	require.NoError(t, run(t, host, msg, "setconfig", "$GSET.prefix", "!"))
	assert.Equal(t, "!", host.Cfg.String(storage.Keys("settings", "g1", "prefix"), ""))

	require.NoError(t, run(t, host, msg, "setconfig", "groups.manager", `["u9"]`))
	assert.Equal(t, "This configuration item cannot be edited.", last(host))
	assert.Empty(t, host.Cfg.Strings("groups.manager"))

	require.NoError(t, run(t, host, msg, "setconfig", "defaultGame", "chess"))
	assert.Equal(t, "chess", host.Cl.Status())
}

func TestSetConfigFollowsSchemaKinds(t *testing.T) {
	host, _ := newHost(t)
	msg := coretest.Message("boss", "")

	require.NoError(t, run(t, host, msg, "setconfig", "prefix", "7"))
	assert.Equal(t, "7", host.Cfg.String("prefix", ""))
	assert.Equal(t, "7", host.Prefix("g1"))

	require.NoError(t, run(t, host, msg, "setconfig", "defaultGame", "2024"))
	assert.Equal(t, "2024", host.Cfg.String("defaultGame", ""))
	assert.Equal(t, "2024", host.Cl.Status())

	require.NoError(t, run(t, host, msg, "setconfig", "defaultUserCooldown.intervalMs", "abc"))
	assert.Equal(t, "Value for `defaultUserCooldown.intervalMs` must be of type number.", last(host))
	assert.Equal(t, 10000, host.Cfg.Int("defaultUserCooldown.intervalMs", 0))

	require.NoError(t, run(t, host, msg, "setconfig", "defaultUserCooldown", `{"intervalMs":"soon"}`))
	assert.Equal(t, "Value for `defaultUserCooldown` must be of type object.", last(host))

	require.NoError(t, run(t, host, msg, "setconfig", "defaultUserCooldown.intervalMs", "2500"))
	assert.Equal(t, 2500, host.Cfg.Int("defaultUserCooldown.intervalMs", 0))
}

func TestSetConfigLogsPresenceFailure(t *testing.T) {
	host, _ := newHost(t)
	var buf bytes.Buffer
	host.Log = zerolog.New(&buf)
	host.Cl.StatusErr = errors.New("gateway closed")

	require.NoError(t, run(t, host, coretest.Message("boss", ""), "setconfig", "defaultGame", "chess"))
	assert.Equal(t, "chess", host.Cfg.String("defaultGame", ""))
	assert.Contains(t, buf.String(), "failed to set presence")
	assert.Contains(t, buf.String(), "gateway closed")
}

func TestGetConfig(t *testing.T) {
	host, _ := newHost(t)
	msg := coretest.Message("boss", "")

	require.NoError(t, run(t, host, msg, "getconfig", "owner"))
	assert.Equal(t, "```json\n\"boss\"\n```", last(host))

	require.NoError(t, run(t, host, msg, "getconfig", "nothing.here"))
	assert.Equal(t, "undefined", last(host))

	dm := coretest.Message("boss", "")
	dm.GuildID = ""
	assert.Error(t, run(t, host, dm, "getconfig", "$GSET.prefix"))
}

func TestSetPrefix(t *testing.T) {
	host, _ := newHost(t)
	msg := coretest.Message("boss", "")

	require.NoError(t, run(t, host, msg, "setprefix", "!"))
	assert.Equal(t, "!", host.Prefix("g1"))
	assert.Equal(t, "Prefix is now `!`.", last(host))

	require.NoError(t, run(t, host, msg, "setprefix"))
	assert.Equal(t, "$", host.Prefix("g1"))
	assert.Equal(t, "Prefix reset to `$`.", last(host))
}

func TestPermissionGroups(t *testing.T) {
	host, _ := newHost(t)
	msg := coretest.Message("boss", "")

	require.NoError(t, run(t, host, msg, "permgroups"))
	assert.Equal(t, "No groups configured.", last(host))

	require.NoError(t, run(t, host, msg, "permadd", "<@!123456789>", "manager"))
	require.NoError(t, run(t, host, msg, "permadd", "987654321", "manager"))
	assert.Equal(t, []string{"123456789", "987654321"}, host.Cfg.Strings("groups.manager"))
	assert.Equal(t, "Added user `987654321` to group manager.", last(host))

	require.NoError(t, run(t, host, msg, "permadd", "nobody", "manager"))
	assert.Equal(t, "User string does not appear to be a valid user id.", last(host))

	require.NoError(t, run(t, host, msg, "permlist", "manager"))
	assert.Equal(t, "`123456789`, `987654321`", last(host))

	require.NoError(t, run(t, host, msg, "permremove", "<@123456789>", "manager"))
	assert.Equal(t, []string{"987654321"}, host.Cfg.Strings("groups.manager"))

	require.NoError(t, run(t, host, msg, "permremove", "123456789", "mods"))
	assert.Equal(t, "Group does not exist.", last(host))

	require.NoError(t, run(t, host, msg, "permlist", "mods"))
	assert.Equal(t, "Group does not exist or is empty.", last(host))
}

func TestGroupOverrides(t *testing.T) {
	host, _ := newHost(t)
	msg := coretest.Message("boss", "")

	require.NoError(t, run(t, host, msg, "addgroupoverride", "shutdown", "manager"))
	assert.Equal(t, "manager", host.Cfg.String("commandPermissions.kill", ""), "stored under the canonical name")

	require.NoError(t, run(t, host, msg, "addgroupoverride", "nope", "manager"))
	assert.Equal(t, "Command `nope` not found.", last(host))

	require.NoError(t, run(t, host, msg, "removegroupoverride", "kill"))
	assert.False(t, host.Cfg.Has("commandPermissions.kill"))

	require.NoError(t, run(t, host, msg, "removegroupoverride", "kill"))
	assert.Equal(t, "No override set for this command.", last(host))
}

func TestRoleOverrides(t *testing.T) {
	host, _ := newHost(t)
	msg := coretest.Message("boss", "")

	require.NoError(t, run(t, host, msg, "addroleoverride", "setprefix", "<@&55555>"))
	assert.Equal(t, "55555", host.Cfg.String(storage.Keys("serverPermissions", "g1", "setprefix"), ""))

	require.NoError(t, run(t, host, msg, "listoverrides"))
	sent := host.Cl.Sent()
	e := sent[len(sent)-1].Payload.Embed
	require.NotNil(t, e)
	require.Len(t, e.Fields, 2)
	assert.Equal(t, "none", e.Fields[0].Value)
	assert.Contains(t, e.Fields[1].Value, `"setprefix": "55555"`)

	require.NoError(t, run(t, host, msg, "removeroleoverride", "setprefix"))
	require.NoError(t, run(t, host, msg, "removeroleoverride", "setprefix"))
	assert.Equal(t, "No role override set for this command on this server.", last(host))

	dm := coretest.Message("boss", "")
	dm.GuildID = ""
	assert.Error(t, run(t, host, dm, "addroleoverride", "setprefix", "55555"))
}

func TestAliases(t *testing.T) {
	host, mods := newHost(t)
	msg := coretest.Message("boss", "")
	require.NoError(t, mods.Load(context.Background(), "extra"))

	require.NoError(t, run(t, host, msg, "alias", "Bye", "shutdown"))
	assert.Equal(t, "kill", host.Cfg.String("commandAliases.bye", ""))

	cmd, _ := host.Resolve("bye")
	require.NotNil(t, cmd)
	assert.Equal(t, "kill", cmd.Name)

	require.NoError(t, run(t, host, msg, "aliases"))
	assert.Contains(t, last(host), "**`bye`**: `kill`")
	assert.Contains(t, last(host), "**`hi`**: `greet`")

	require.NoError(t, run(t, host, msg, "removealias", "bye"))
	require.NoError(t, run(t, host, msg, "removealias", "bye"))
	assert.Equal(t, "Alias does not exist.", last(host))
}

func TestModuleLifecycle(t *testing.T) {
	host, mods := newHost(t)
	msg := coretest.Message("boss", "")

	require.NoError(t, run(t, host, msg, "loadmodule", "Extra"))
	_, ok := mods.Get("extra")
	assert.True(t, ok)
	assert.Equal(t, 1, mods.inits["extra"])
	assert.Contains(t, host.Cfg.Strings("activeModules"), "extra")

	err := run(t, host, msg, "loadmodule", "ghost")
	assert.True(t, api.IsCode(err, api.ErrCodeModuleNotFound))

	require.NoError(t, run(t, host, msg, "reloadmodule", "extra"))
	assert.Equal(t, 2, mods.inits["extra"])

	require.NoError(t, run(t, host, msg, "reloadmodule", "ghost"))
	sent := host.Cl.Sent()
	require.GreaterOrEqual(t, len(sent), 2)
	assert.Equal(t, "Error unloading `ghost`", sent[len(sent)-2].Payload.Embed.Title)
	assert.Equal(t, "Error loading `ghost`", sent[len(sent)-1].Payload.Embed.Title)

	require.NoError(t, run(t, host, msg, "unloadmodule", "extra"))
	assert.NotContains(t, host.Cfg.Strings("activeModules"), "extra")

	err = run(t, host, msg, "unloadmodule", Name)
	assert.True(t, api.IsCode(err, api.ErrCodeModuleProtected))
	_, ok = mods.Get(Name)
	assert.True(t, ok)
}

func TestKillAndRestart(t *testing.T) {
	host, _ := newHost(t)
	msg := coretest.Message("boss", "")

	require.NoError(t, run(t, host, msg, "restart"))
	require.NoError(t, run(t, host, msg, "kill"))
	assert.Equal(t, 1, host.Restarts())
	assert.Equal(t, 1, host.Shutdowns())
}

func TestHelpAndList(t *testing.T) {
	host, _ := newHost(t)
	msg := coretest.Message("u1", "")

	require.NoError(t, run(t, host, msg, "help", "shutdown"))
	e := host.Cl.Sent()[0].Payload.Embed
	require.NotNil(t, e)
	assert.Equal(t, "Command Help: `kill`", e.Title)
	assert.Equal(t, "Aliases: `shutdown`", e.Description)

	require.NoError(t, run(t, host, msg, "help", "nope"))
	assert.Equal(t, "Command `nope` not found.", last(host))

	require.NoError(t, run(t, host, msg, "list", "ghost"))
	assert.Equal(t, "Module `ghost` not found.", last(host))

	before := len(host.Cl.Sent())
	require.NoError(t, run(t, host, msg, "list", "core"))
	sent := host.Cl.Sent()[before:]
	assert.Len(t, sent, (len(New().Commands)+maxFields-1)/maxFields)
	assert.Equal(t, "Commands in module `core`", sent[0].Payload.Embed.Title)
}

func TestServerCommands(t *testing.T) {
	host, _ := newHost(t)
	msg := coretest.Message("boss", "")

	require.NoError(t, run(t, host, msg, "setnick", "Modbot", "Prime"))
	assert.Equal(t, "Modbot Prime", host.Cl.Nick("g1", "bot"))

	require.NoError(t, run(t, host, msg, "serverinfo"))
	e := host.Cl.Sent()[len(host.Cl.Sent())-1].Payload.Embed
	require.NotNil(t, e)
	assert.Equal(t, "Server info for guild-g1", e.Title)

	require.NoError(t, run(t, host, msg, "userinfo", "<@424242424>"))
	e = host.Cl.Sent()[len(host.Cl.Sent())-1].Payload.Embed
	require.NotNil(t, e)
	assert.Equal(t, "User info for user-424242424", e.Title)
	assert.Equal(t, "`424242424`", e.Fields[0].Value)

	require.NoError(t, run(t, host, msg, "userinfo", "someone"))
	assert.Equal(t, "User not found.", last(host))
}
