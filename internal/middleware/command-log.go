package middleware

import (
	"context"
	"time"

	"github.com/keshon/modbot/internal/core"

	"github.com/rs/zerolog"
)

// WithCommandLogger logs every command execution with its outcome
func WithCommandLogger(logger zerolog.Logger) Wrapper {
	return func(next Executor) Executor {
		return func(ctx context.Context, inv *core.Invocation) error {
			start := time.Now()
			err := next(ctx, inv)

			ev := logger.Info()
			if err != nil {
				ev = logger.Warn().Err(err)
			}
			ev = ev.Str("command", inv.Command.Name).
				Str("user_id", inv.Message.Author.ID).
				Str("user", inv.Message.Author.Name).
				Str("channel_id", inv.Message.ChannelID).
				Dur("took", time.Since(start))
			if inv.Module != nil {
				ev = ev.Str("module", inv.Module.Name)
			}
			if inv.Message.GuildID != "" {
				ev = ev.Str("guild_id", inv.Message.GuildID)
			}
			ev.Msg("command executed")
			return err
		}
	}
}
