package middleware

import (
	"context"

	"github.com/keshon/modbot/internal/core"
)

// Executor runs a command.
type Executor func(ctx context.Context, inv *core.Invocation) error

// Wrapper decorates command execution. Wrappers compose around a command's
// Execute inside the dispatch stage.
type Wrapper func(next Executor) Executor

// Chain applies wrappers so that the first one is outermost.
func Chain(exec Executor, wrappers ...Wrapper) Executor {
	for i := len(wrappers) - 1; i >= 0; i-- {
		exec = wrappers[i](exec)
	}
	return exec
}

// WrapCommand returns a copy of cmd whose Execute runs through wrappers.
// Modules use it to attach per-command checks such as WithGuildOnly.
func WrapCommand(cmd *core.Command, wrappers ...Wrapper) *core.Command {
	wrapped := *cmd
	wrapped.Execute = Chain(cmd.Execute, wrappers...)
	return &wrapped
}
