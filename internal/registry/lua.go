package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/keshon/modbot/internal/core"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
	"gopkg.in/yaml.v3"
)

var moduleNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Manifest is the optional module.yaml next to a directory module's init.lua.
type Manifest struct {
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
	// Aliases adds aliases per command name on top of what the script declares.
	Aliases map[string][]string `yaml:"aliases"`
}

// LuaSource loads modules written in Lua from a list of directories. A module
// named "x" is either <dir>/x.lua or <dir>/x/init.lua; the first directory
// containing either wins.
type LuaSource struct {
	paths []string
	log   zerolog.Logger

	mu    sync.Mutex
	cache map[string]*lua.FunctionProto
}

func NewLuaSource(logger zerolog.Logger, paths ...string) *LuaSource {
	return &LuaSource{
		paths: paths,
		log:   logger.With().Str("component", "lua").Logger(),
		cache: make(map[string]*lua.FunctionProto),
	}
}

func (s *LuaSource) Kind() string { return "lua" }

func (s *LuaSource) Lookup(name string) (string, bool) {
	if !moduleNamePattern.MatchString(name) {
		return "", false
	}
	for _, dir := range s.paths {
		for _, candidate := range []string{
			filepath.Join(dir, name+".lua"),
			filepath.Join(dir, name, "init.lua"),
		} {
			if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
				return candidate, true
			}
		}
	}
	return "", false
}

// List returns every module name found in the search paths.
func (s *LuaSource) List() []string {
	seen := make(map[string]bool)
	for _, dir := range s.paths {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if !e.IsDir() && filepath.Ext(name) == ".lua" {
				name = strings.TrimSuffix(name, ".lua")
			}
			if _, ok := s.Lookup(name); ok {
				seen[name] = true
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *LuaSource) Evict(location string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, location)
}

func (s *LuaSource) compile(location string) (*lua.FunctionProto, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if proto, ok := s.cache[location]; ok {
		return proto, nil
	}

	f, err := os.Open(location)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	chunk, err := parse.Parse(f, location)
	if err != nil {
		return nil, err
	}
	proto, err := lua.Compile(chunk, location)
	if err != nil {
		return nil, err
	}
	s.cache[location] = proto
	return proto, nil
}

// Instantiate runs the script in a fresh state and converts the table it
// returns into a module. The state is not closed on unload; it is dropped with
// the last reference so in-flight calls can finish.
func (s *LuaSource) Instantiate(name, location string) (*core.Module, error) {
	proto, err := s.compile(location)
	if err != nil {
		return nil, err
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	lm := &luaModule{L: L, name: name, log: s.log.With().Str("module", name).Logger()}
	lm.installAPI()

	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, 1, nil); err != nil {
		L.Close()
		return nil, err
	}
	ret := L.Get(-1)
	L.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		L.Close()
		return nil, fmt.Errorf("module script must return a table, got %s", ret.Type())
	}

	mod, err := lm.build(tbl)
	if err != nil {
		L.Close()
		return nil, err
	}

	if filepath.Base(location) == "init.lua" {
		if err := applyManifest(mod, filepath.Join(filepath.Dir(location), "module.yaml")); err != nil {
			L.Close()
			return nil, err
		}
	}
	return mod, nil
}

func applyManifest(mod *core.Module, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("module.yaml: %w", err)
	}
	if m.Description != "" {
		mod.Description = m.Description
	}
	for cmdName, aliases := range m.Aliases {
		cmd := mod.Command(cmdName)
		if cmd == nil {
			return fmt.Errorf("module.yaml: aliases for unknown command %q", cmdName)
		}
		cmd.Aliases = append(cmd.Aliases, aliases...)
	}
	return nil
}

// luaModule serialises every call into its state. host and ctx are set for
// the duration of a call so the bot API can reach them.
type luaModule struct {
	mu   sync.Mutex
	L    *lua.LState
	name string
	log  zerolog.Logger

	host core.Host
	ctx  context.Context
}

func (m *luaModule) build(tbl *lua.LTable) (*core.Module, error) {
	mod := &core.Module{}
	if d, ok := tbl.RawGetString("description").(lua.LString); ok {
		mod.Description = string(d)
	}

	if cmds, ok := tbl.RawGetString("commands").(*lua.LTable); ok {
		for i := 1; i <= cmds.Len(); i++ {
			def, ok := cmds.RawGetInt(i).(*lua.LTable)
			if !ok {
				return nil, fmt.Errorf("commands[%d] is not a table", i)
			}
			cmd, err := m.command(def)
			if err != nil {
				return nil, fmt.Errorf("commands[%d]: %w", i, err)
			}
			mod.Commands = append(mod.Commands, cmd)
		}
	}

	if mws, ok := tbl.RawGetString("middleware").(*lua.LTable); ok {
		for i := 1; i <= mws.Len(); i++ {
			fn, ok := mws.RawGetInt(i).(*lua.LFunction)
			if !ok {
				return nil, fmt.Errorf("middleware[%d] is not a function", i)
			}
			mod.Middleware = append(mod.Middleware, m.stage(fn))
		}
	}

	if fn, ok := tbl.RawGetString("init").(*lua.LFunction); ok {
		mod.Init = func(ctx context.Context, host core.Host) error {
			_, err := m.call(ctx, host, fn, 0, nil)
			return err
		}
	}
	return mod, nil
}

func (m *luaModule) command(def *lua.LTable) (*core.Command, error) {
	name, ok := def.RawGetString("name").(lua.LString)
	if !ok || name == "" {
		return nil, fmt.Errorf("missing name")
	}
	fn, ok := def.RawGetString("execute").(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("command %q has no execute function", name)
	}

	cmd := &core.Command{
		Name:       string(name),
		Arguments:  stringList(def.RawGetString("arguments")),
		Aliases:    stringList(def.RawGetString("aliases")),
		Permission: core.LevelAll,
	}
	if d, ok := def.RawGetString("description").(lua.LString); ok {
		cmd.Description = string(d)
	}
	if p, ok := def.RawGetString("permission").(lua.LString); ok && p != "" {
		cmd.Permission = string(p)
	}

	cmd.Execute = func(ctx context.Context, inv *core.Invocation) error {
		ret, err := m.call(ctx, inv.Host, fn, 2, func(L *lua.LState) []lua.LValue {
			return []lua.LValue{toLua(L, inv.Args), messageTable(L, inv.Message)}
		})
		if err != nil {
			return err
		}
		// execute may return false, "reason"
		if ret[0] == lua.LFalse {
			reason := "command failed"
			if s, ok := ret[1].(lua.LString); ok && s != "" {
				reason = string(s)
			}
			return fmt.Errorf("%s", reason)
		}
		return nil
	}
	return cmd, nil
}

func (m *luaModule) stage(fn *lua.LFunction) core.Stage {
	return func(ctx context.Context, mc *core.MessageContext) core.Outcome {
		ret, err := m.call(ctx, mc.Host, fn, 1, func(L *lua.LState) []lua.LValue {
			return []lua.LValue{messageTable(L, mc.Message)}
		})
		if err != nil {
			m.log.Error().Err(err).Msg("middleware failed")
			return core.Proceed
		}
		if ret[0] == lua.LTrue {
			return core.Halt
		}
		return core.Proceed
	}
}

func (m *luaModule) call(ctx context.Context, host core.Host, fn *lua.LFunction, nret int, args func(*lua.LState) []lua.LValue) ([]lua.LValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.host, m.ctx = host, ctx
	defer func() { m.host, m.ctx = nil, nil }()

	m.L.SetContext(ctx)
	defer m.L.RemoveContext()

	var in []lua.LValue
	if args != nil {
		in = args(m.L)
	}

	top := m.L.GetTop()
	if err := m.L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, in...); err != nil {
		return nil, err
	}

	out := make([]lua.LValue, nret)
	for i := 0; i < nret; i++ {
		out[i] = m.L.Get(top + i + 1)
	}
	m.L.Pop(nret)
	return out, nil
}

func stringList(v lua.LValue) []string {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}
	var out []string
	for i := 1; i <= tbl.Len(); i++ {
		out = append(out, lua.LVAsString(tbl.RawGetInt(i)))
	}
	return out
}
