package core

import (
	"context"
	"fmt"
	"strings"
)

// Permission levels every command understands. Any other value names a group.
const (
	LevelAll   = "all"
	LevelOwner = "owner"
)

// Command is a named, permissioned action invocable by chat message.
type Command struct {
	Name        string
	Description string
	// Arguments are usage specifiers such as "<user>" or "<reason>?".
	// A trailing "?" marks the argument optional.
	Arguments  []string
	Permission string
	Aliases    []string
	Execute    func(ctx context.Context, inv *Invocation) error
}

// RequiredArgs counts the argument specifiers not marked optional.
func (c *Command) RequiredArgs() int {
	n := 0
	for _, a := range c.Arguments {
		if !strings.HasSuffix(a, "?") {
			n++
		}
	}
	return n
}

// Level returns the declared permission level, defaulting to owner-only.
func (c *Command) Level() string {
	if c.Permission == "" {
		return LevelOwner
	}
	return c.Permission
}

// Usage renders "prefix+name args".
func (c *Command) Usage(prefix string) string {
	if len(c.Arguments) == 0 {
		return prefix + c.Name
	}
	return fmt.Sprintf("%s%s %s", prefix, c.Name, strings.Join(c.Arguments, " "))
}

// Module is a loadable unit contributing commands and optional middleware.
type Module struct {
	Name        string
	Description string
	// Source describes where the module was loaded from.
	Source     string
	Commands   []*Command
	Middleware []Stage
	// Init primes module state. It may run more than once for the same
	// module, so it must tolerate existing state.
	Init func(ctx context.Context, host Host) error

	// Aliases maps alias -> command name, derived from Commands on load.
	Aliases map[string]string
}

// Command looks up a command by case-insensitive name.
func (m *Module) Command(name string) *Command {
	name = strings.ToLower(name)
	for _, c := range m.Commands {
		if strings.ToLower(c.Name) == name {
			return c
		}
	}
	return nil
}

// DeriveAliases flattens each command's alias list into alias -> command name.
// When two commands declare the same alias the first one keeps it.
func DeriveAliases(cmds []*Command) map[string]string {
	aliases := make(map[string]string)
	for _, c := range cmds {
		for _, a := range c.Aliases {
			a = strings.ToLower(a)
			if _, taken := aliases[a]; !taken {
				aliases[a] = strings.ToLower(c.Name)
			}
		}
	}
	return aliases
}
