package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/keshon/modbot/internal/cooldown"
	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/storage"

	"github.com/rs/zerolog"
)

// SenderFilter halts on messages from the bot itself or any other bot.
func SenderFilter() core.Stage {
	return func(_ context.Context, mc *core.MessageContext) core.Outcome {
		author := mc.Message.Author
		if author.Bot || author.ID == mc.Host.Client().SelfID() {
			return core.Halt
		}
		return core.Proceed
	}
}

// Cooldown halts senders that exceed the message rate. Only the message that
// crosses the threshold gets a notice.
func Cooldown(tracker *cooldown.Tracker) core.Stage {
	return func(ctx context.Context, mc *core.MessageContext) core.Outcome {
		switch tracker.Admit(mc.Message.Author.ID) {
		case cooldown.Allow:
			return core.Proceed
		case cooldown.WarnBlocked:
			limits := tracker.Limits()
			block := limits.Window
			if limits.Block > block {
				block = limits.Block
			}
			desc := fmt.Sprintf("User %s blocked for %s", mc.Message.Author.Name, core.HumanDuration(block))
			if err := mc.Host.Notify(ctx, mc.Message.ChannelID, core.NoticeError, "Rate limit exceeded", desc); err != nil {
				log := mc.Host.Logger()
				log.Warn().Err(err).Msg("failed to send rate limit notice")
			}
		}
		return core.Halt
	}
}

// CommandDetector halts unless the message starts with the effective prefix,
// then splits the rest into a lowercased command token and arguments.
func CommandDetector() core.Stage {
	return func(_ context.Context, mc *core.MessageContext) core.Outcome {
		prefix := mc.Host.Prefix(mc.Message.GuildID)
		if prefix == "" || !strings.HasPrefix(mc.Message.Content, prefix) {
			return core.Halt
		}

		fields := strings.Fields(mc.Message.Content[len(prefix):])
		if len(fields) == 0 {
			return core.Halt
		}

		mc.Prefix = prefix
		mc.CommandName = strings.ToLower(fields[0])
		mc.Args = fields[1:]
		return core.Proceed
	}
}

// CommandDispatcher is the terminal stage. It resolves the detected command,
// checks argument count and permission, and runs it. Every failure is
// reported to the channel; none escapes the stage.
func CommandDispatcher(logger zerolog.Logger, wrappers ...Wrapper) core.Stage {
	chain := append(append([]Wrapper(nil), wrappers...), WithRecover())
	return func(ctx context.Context, mc *core.MessageContext) core.Outcome {
		host, msg := mc.Host, mc.Message
		cfg := host.Config()

		cmd, mod := core.ResolveCommand(mc.CommandName, cfg.StringMap("commandAliases"), mc.Modules)
		if cmd == nil {
			logger.Debug().Str("command", mc.CommandName).Msg("no such command")
			return core.Halt
		}

		if len(mc.Args) < cmd.RequiredArgs() {
			notify(ctx, logger, mc, core.NewInsufficientArgumentsError(cmd, mc.Prefix))
			return core.Halt
		}

		if !core.Authorize(PermissionRequest(cfg, msg, cmd, logger)) {
			logger.Debug().Str("command", cmd.Name).Str("user_id", msg.Author.ID).Msg("permission denied")
			notify(ctx, logger, mc, core.NewPermissionDeniedError(cmd.Name))
			return core.Halt
		}

		exec := Executor(cmd.Execute)
		if exec == nil {
			exec = func(context.Context, *core.Invocation) error {
				return fmt.Errorf("command has no action")
			}
		}
		exec = Chain(exec, chain...)

		inv := &core.Invocation{
			Message: msg,
			Args:    mc.Args,
			Host:    host,
			Command: cmd,
			Module:  mod,
			Prefix:  mc.Prefix,
		}
		if err := exec(ctx, inv); err != nil {
			notify(ctx, logger, mc, core.NewCommandExecutionError(cmd.Name, err))
		}
		return core.Proceed
	}
}

// PermissionRequest assembles the permission inputs for msg invoking cmd.
// Overrides are looked up by the command's canonical name.
func PermissionRequest(cfg core.Config, msg *core.Message, cmd *core.Command, logger zerolog.Logger) core.PermissionRequest {
	req := core.PermissionRequest{
		SenderID:       msg.Author.ID,
		OwnerID:        cfg.String("owner", ""),
		Roles:          msg.Roles(),
		Groups:         core.Groups(cfg, logger),
		Level:          cmd.Level(),
		GlobalOverride: cfg.String(storage.Keys("commandPermissions", cmd.Name), ""),
	}
	if msg.GuildID != "" {
		req.RoleOverride = cfg.String(storage.Keys("serverPermissions", msg.GuildID, cmd.Name), "")
	}
	return req
}

func notify(ctx context.Context, logger zerolog.Logger, mc *core.MessageContext, err error) {
	if sendErr := mc.Host.Notify(ctx, mc.Message.ChannelID, core.NoticeError, "", core.Describe(err)); sendErr != nil {
		logger.Warn().Err(sendErr).Msg("failed to report command outcome")
	}
}
