package middleware

import (
	"context"
	"fmt"

	"github.com/keshon/modbot/internal/core"
)

// WithGuildOnly rejects invocations outside a server
func WithGuildOnly() Wrapper {
	return func(next Executor) Executor {
		return func(ctx context.Context, inv *core.Invocation) error {
			if inv.Message.GuildID == "" {
				return fmt.Errorf("this command can only be used in a server")
			}
			return next(ctx, inv)
		}
	}
}

// WithRecover turns a panic in a command into an error
func WithRecover() Wrapper {
	return func(next Executor) Executor {
		return func(ctx context.Context, inv *core.Invocation) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, inv)
		}
	}
}
