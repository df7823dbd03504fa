package registry

import (
	"fmt"
	"sort"

	"github.com/keshon/modbot/internal/core"

	lua "github.com/yuin/gopher-lua"
)

// installAPI exposes the host to scripts as the global table `bot`. The
// functions only work while a command, middleware or init call is running.
func (m *luaModule) installAPI() {
	api := m.L.SetFuncs(m.L.NewTable(), map[string]lua.LGFunction{
		"send": func(L *lua.LState) int {
			host := m.requireHost(L)
			err := host.Client().Send(m.ctx, L.CheckString(1), core.Payload{Content: L.CheckString(2)})
			return pushErr(L, err)
		},
		"react": func(L *lua.LState) int {
			host := m.requireHost(L)
			err := host.Client().React(m.ctx, L.CheckString(1), L.CheckString(2), L.CheckString(3))
			return pushErr(L, err)
		},
		"notify": func(L *lua.LState) int {
			host := m.requireHost(L)
			kind := core.NoticeInfo
			switch L.CheckString(2) {
			case "success":
				kind = core.NoticeSuccess
			case "error":
				kind = core.NoticeError
			}
			err := host.Notify(m.ctx, L.CheckString(1), kind, L.CheckString(3), L.OptString(4, ""))
			return pushErr(L, err)
		},
		"prefix": func(L *lua.LState) int {
			host := m.requireHost(L)
			L.Push(lua.LString(host.Prefix(L.OptString(1, ""))))
			return 1
		},
		"config_get": func(L *lua.LState) int {
			host := m.requireHost(L)
			L.Push(toLua(L, host.Config().Get(L.CheckString(1), nil)))
			return 1
		},
		"config_has": func(L *lua.LState) int {
			host := m.requireHost(L)
			L.Push(lua.LBool(host.Config().Has(L.CheckString(1))))
			return 1
		},
		"config_set": func(L *lua.LState) int {
			host := m.requireHost(L)
			err := host.Config().Set(L.CheckString(1), fromLua(L.CheckAny(2)))
			return pushErr(L, err)
		},
		"config_default": func(L *lua.LState) int {
			host := m.requireHost(L)
			set, err := host.Config().SetDefault(L.CheckString(1), fromLua(L.CheckAny(2)))
			if err != nil {
				L.RaiseError("%s", core.Describe(err))
			}
			L.Push(lua.LBool(set))
			return 1
		},
		"save": func(L *lua.LState) int {
			host := m.requireHost(L)
			return pushErr(L, host.Config().Save())
		},
		"log": func(L *lua.LState) int {
			level, msg := L.CheckString(1), L.CheckString(2)
			switch level {
			case "debug":
				m.log.Debug().Msg(msg)
			case "warn":
				m.log.Warn().Msg(msg)
			case "error":
				m.log.Error().Msg(msg)
			default:
				m.log.Info().Msg(msg)
			}
			return 0
		},
	})
	m.L.SetGlobal("bot", api)
}

func (m *luaModule) requireHost(L *lua.LState) core.Host {
	if m.host == nil {
		L.RaiseError("bot API is not available while the module is loading")
	}
	return m.host
}

// pushErr returns nothing on success and raises a Lua error otherwise.
func pushErr(L *lua.LState, err error) int {
	if err != nil {
		L.RaiseError("%s", core.Describe(err))
	}
	return 0
}

func messageTable(L *lua.LState, msg *core.Message) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("id", lua.LString(msg.ID))
	t.RawSetString("channel", lua.LString(msg.ChannelID))
	t.RawSetString("guild", lua.LString(msg.GuildID))
	t.RawSetString("content", lua.LString(msg.Content))

	author := L.NewTable()
	author.RawSetString("id", lua.LString(msg.Author.ID))
	author.RawSetString("name", lua.LString(msg.Author.Name))
	author.RawSetString("bot", lua.LBool(msg.Author.Bot))
	t.RawSetString("author", author)
	t.RawSetString("roles", toLua(L, msg.Roles()))
	return t
}

// toLua converts plain Go values (as produced by encoding/json or the config
// store) into Lua values.
func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case []string:
		t := L.NewTable()
		for _, s := range val {
			t.Append(lua.LString(s))
		}
		return t
	case []any:
		t := L.NewTable()
		for _, item := range val {
			t.Append(toLua(L, item))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t.RawSetString(k, toLua(L, val[k]))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(val))
	}
}

// fromLua converts a Lua value into something the config store can marshal.
// Tables with keys 1..n become slices, other tables become maps.
func fromLua(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		f := float64(val)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(val)
	case *lua.LTable:
		n := val.Len()
		count := 0
		val.ForEach(func(_, _ lua.LValue) { count++ })
		if n > 0 && n == count {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, fromLua(val.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]any, count)
		val.ForEach(func(k, item lua.LValue) {
			out[lua.LVAsString(k)] = fromLua(item)
		})
		return out
	default:
		return nil
	}
}
