package middleware

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/keshon/modbot/internal/cooldown"
	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/coretest"
	"github.com/keshon/modbot/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	host    *coretest.Host
	modules []*core.Module
	calls   map[string]int
	log     zerolog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{host: coretest.NewHost(t), calls: map[string]int{}, log: zerolog.Nop()}

	record := func(name string) func(context.Context, *core.Invocation) error {
		return func(context.Context, *core.Invocation) error {
			f.calls[name]++
			return nil
		}
	}
	cmds := []*core.Command{
		{Name: "ping", Permission: core.LevelAll, Execute: record("ping")},
		{Name: "kill", Permission: core.LevelOwner, Execute: record("kill")},
		{Name: "pair", Permission: core.LevelAll, Arguments: []string{"<a>", "<b>?"}, Description: "pairs things", Execute: record("pair")},
		{Name: "manage", Permission: "manager", Execute: record("manage")},
		{Name: "broken", Permission: core.LevelAll, Execute: func(context.Context, *core.Invocation) error { return errors.New("disk full") }},
		{Name: "panics", Permission: core.LevelAll, Execute: func(context.Context, *core.Invocation) error { panic("oh no") }},
	}
	f.modules = []*core.Module{{Name: "test", Commands: cmds, Aliases: core.DeriveAliases(cmds)}}
	return f
}

func (f *fixture) dispatch(msg *core.Message) core.Outcome {
	mc := &core.MessageContext{Message: msg, Host: f.host, Modules: f.modules}
	return core.RunPipeline(context.Background(), mc, []core.Stage{
		SenderFilter(),
		CommandDetector(),
		CommandDispatcher(f.log),
	})
}

func TestPingReachesAction(t *testing.T) {
	f := newFixture(t)
	f.dispatch(coretest.Message("u1", "$ping"))

	assert.Equal(t, 1, f.calls["ping"])
	assert.Empty(t, f.host.Cl.Texts(), "no denial or usage notice")
}

func TestKillDeniedForNonOwner(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.host.Cfg.Set("owner", "boss"))

	f.dispatch(coretest.Message("u1", "$kill"))
	assert.Zero(t, f.calls["kill"])
	assert.Equal(t, []string{"You do not have permission to use this command."}, f.host.Cl.Texts())

	f.dispatch(coretest.Message("boss", "$kill"))
	assert.Equal(t, 1, f.calls["kill"])
}

func TestArgumentCount(t *testing.T) {
	f := newFixture(t)

	f.dispatch(coretest.Message("u1", "$pair"))
	assert.Zero(t, f.calls["pair"])
	assert.Equal(t, []string{"Not enough arguments. Use `$pair <a> <b>?`: pairs things"}, f.host.Cl.Texts())

	f.dispatch(coretest.Message("u1", "$pair one"))
	assert.Equal(t, 1, f.calls["pair"])
}

func TestOverrides(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.host.Cfg.Set("groups.manager", []string{"u2"}))
	f.dispatch(coretest.Message("u2", "$manage"))
	assert.Equal(t, 1, f.calls["manage"])

	require.NoError(t, f.host.Cfg.Set("commandPermissions.kill", "manager"))
	f.dispatch(coretest.Message("u2", "$kill"))
	assert.Equal(t, 1, f.calls["kill"], "global override replaces declared level")

	require.NoError(t, f.host.Cfg.Set(storage.Keys("serverPermissions", "g1", "manage"), "mods"))
	msg := coretest.Message("u3", "$manage")
	msg.Member.Roles = []string{"mods"}
	f.dispatch(msg)
	assert.Equal(t, 2, f.calls["manage"], "role override on this server")
}

func TestMalformedGroupKeepsOtherGroups(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	f.log = zerolog.New(&buf)

	require.NoError(t, f.host.Cfg.Set("groups.manager", "u2"))
	require.NoError(t, f.host.Cfg.Set("groups.mods", []any{"u3", 42}))
	require.NoError(t, f.host.Cfg.Set("commandPermissions.kill", "mods"))

	f.dispatch(coretest.Message("u3", "$kill"))
	assert.Equal(t, 1, f.calls["kill"])

	f.dispatch(coretest.Message("u2", "$manage"))
	assert.Zero(t, f.calls["manage"])

	logs := buf.String()
	assert.Contains(t, logs, "groups table is malformed")
	assert.Contains(t, logs, "skipping group that is not a list of user ids")
	assert.Contains(t, logs, "skipping member id that is not a string")
}

func TestExecutionErrorsAreReported(t *testing.T) {
	f := newFixture(t)

	assert.NotPanics(t, func() {
		f.dispatch(coretest.Message("u1", "$broken"))
		f.dispatch(coretest.Message("u1", "$panics"))
	})

	texts := f.host.Cl.Texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "Error executing command `broken`: disk full", texts[0])
	assert.Contains(t, texts[1], "Error executing command `panics`")
}

func TestCommandDetector(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.host.Cfg.Set(storage.Keys("settings", "g2", "prefix"), "!"))

	tests := []struct {
		name    string
		guild   string
		content string
		want    core.Outcome
		command string
		args    []string
	}{
		{"global prefix", "g1", "$Ping  a   b", core.Proceed, "ping", []string{"a", "b"}},
		{"no prefix", "g1", "ping", core.Halt, "", nil},
		{"prefix only", "g1", "$   ", core.Halt, "", nil},
		{"server prefix", "g2", "!ping", core.Proceed, "ping", []string{}},
		{"global prefix ignored where overridden", "g2", "$ping", core.Halt, "", nil},
		{"direct message", "", "$ping", core.Proceed, "ping", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := coretest.Message("u1", tt.content)
			msg.GuildID = tt.guild
			mc := &core.MessageContext{Message: msg, Host: f.host}

			assert.Equal(t, tt.want, CommandDetector()(context.Background(), mc))
			assert.Equal(t, tt.command, mc.CommandName)
			if tt.want == core.Proceed {
				assert.Equal(t, tt.args, mc.Args)
			}
		})
	}
}

func TestSenderFilter(t *testing.T) {
	f := newFixture(t)

	bot := coretest.Message("other-bot", "$ping")
	bot.Author.Bot = true
	assert.Equal(t, core.Halt, f.dispatch(bot))

	assert.Equal(t, core.Halt, f.dispatch(coretest.Message(f.host.Cl.SelfID(), "$ping")))
	assert.Zero(t, f.calls["ping"])
}

func TestCooldownNoticeOnce(t *testing.T) {
	f := newFixture(t)
	tracker := cooldown.New(cooldown.Limits{Window: time.Minute, Threshold: 2})
	defer tracker.Reset()
	stage := Cooldown(tracker)

	run := func() core.Outcome {
		return stage(context.Background(), &core.MessageContext{Message: coretest.Message("u1", "hi"), Host: f.host})
	}

	assert.Equal(t, core.Proceed, run())
	assert.Equal(t, core.Halt, run())
	assert.Equal(t, core.Halt, run())

	texts := f.host.Cl.Texts()
	require.Len(t, texts, 1)
	assert.Equal(t, "User user-u1 blocked for 1 minute", texts[0])
}

func TestCooldownNoticeFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	f.host.Log = zerolog.New(&buf)
	f.host.Cl.SendErr = errors.New("channel gone")

	tracker := cooldown.New(cooldown.Limits{Window: time.Minute, Threshold: 1, Block: time.Hour})
	defer tracker.Reset()

	outcome := Cooldown(tracker)(context.Background(), &core.MessageContext{Message: coretest.Message("u1", "hi"), Host: f.host})
	assert.Equal(t, core.Halt, outcome)
	assert.Contains(t, buf.String(), "failed to send rate limit notice")
	assert.Contains(t, buf.String(), "channel gone")
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Wrapper {
		return func(next Executor) Executor {
			return func(ctx context.Context, inv *core.Invocation) error {
				order = append(order, name)
				return next(ctx, inv)
			}
		}
	}
	exec := Chain(func(context.Context, *core.Invocation) error {
		order = append(order, "cmd")
		return nil
	}, mark("outer"), mark("inner"))

	require.NoError(t, exec(context.Background(), &core.Invocation{}))
	assert.Equal(t, []string{"outer", "inner", "cmd"}, order)
}

func TestGuildOnly(t *testing.T) {
	cmd := WrapCommand(&core.Command{Name: "x", Execute: func(context.Context, *core.Invocation) error { return nil }}, WithGuildOnly())

	dm := coretest.Message("u1", "$x")
	dm.GuildID = ""
	assert.Error(t, cmd.Execute(context.Background(), &core.Invocation{Message: dm}))
	assert.NoError(t, cmd.Execute(context.Background(), &core.Invocation{Message: coretest.Message("u1", "$x")}))
}
