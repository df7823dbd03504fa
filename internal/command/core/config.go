package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	api "github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/middleware"
	"github.com/keshon/modbot/internal/storage"
)

func configCommands() []*api.Command {
	return []*api.Command{
		{
			Name:        "own",
			Description: "Become the bot owner. This command can only be used once.",
			Permission:  api.LevelAll,
			Execute:     runOwn,
		},
		{
			Name:        "getconfig",
			Description: "Get a configuration item. $GSET expands to this server's settings, $GID to its id.",
			Arguments:   []string{"<path>"},
			Permission:  api.LevelOwner,
			Aliases:     []string{"cget"},
			Execute:     runGetConfig,
		},
		{
			Name:        "setconfig",
			Description: "Set a configuration item. The value is parsed as JSON when it can be. $GSET expands to this server's settings, $GID to its id.",
			Arguments:   []string{"<path>", "<value>"},
			Permission:  api.LevelOwner,
			Aliases:     []string{"cset"},
			Execute:     runSetConfig,
		},
		middleware.WrapCommand(&api.Command{
			Name:        "setprefix",
			Description: "Set the command prefix for this server. Without a prefix the global one applies again.",
			Arguments:   []string{"<prefix>?"},
			Permission:  manager,
			Execute:     runSetPrefix,
		}, middleware.WithGuildOnly()),
	}
}

func runOwn(ctx context.Context, inv *api.Invocation) error {
	cfg := inv.Host.Config()
	if cfg.String("owner", "") != "" {
		return failure(ctx, inv, "The bot already has an owner.")
	}
	if err := set(cfg, "owner", inv.Message.Author.ID); err != nil {
		return err
	}
	return done(ctx, inv)
}

// expandPath substitutes $GSET and $GID for the invoking server.
func expandPath(path, guildID string) (string, error) {
	if !strings.Contains(path, "$G") {
		return path, nil
	}
	if guildID == "" {
		return "", fmt.Errorf("$GSET and $GID only work in a server")
	}
	path = strings.ReplaceAll(path, "$GSET", storage.Keys("settings", guildID))
	return strings.ReplaceAll(path, "$GID", guildID), nil
}

func runGetConfig(ctx context.Context, inv *api.Invocation) error {
	path, err := expandPath(inv.Args[0], inv.Message.GuildID)
	if err != nil {
		return err
	}

	value := "undefined"
	if v := inv.Host.Config().Get(path, nil); v != nil {
		data, err := json.MarshalIndent(v, "", "    ")
		if err != nil {
			return err
		}
		value = "```json\n" + string(data) + "\n```"
	}
	return inv.Notify(ctx, api.NoticeInfo, "Value for key "+path, value)
}

func root(path string) string {
	p, err := storage.ParsePath(path)
	if err != nil || len(p) == 0 {
		return ""
	}
	return p[0]
}

// protected reports config roots that only permission commands may change.
func protected(path string) bool {
	r := root(path)
	return r == "owner" || r == "groups" || strings.HasSuffix(r, "Permissions")
}

func runSetConfig(ctx context.Context, inv *api.Invocation) error {
	path, err := expandPath(inv.Args[0], inv.Message.GuildID)
	if err != nil {
		return err
	}
	if protected(path) {
		return failure(ctx, inv, "This configuration item cannot be edited.")
	}

	raw := strings.Join(inv.Args[1:], " ")
	var value any = raw
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}

	if f, ok := storage.DefaultSchema.Field(path); ok {
		if _, isString := value.(string); f.Kind == storage.KindString && !isString {
			value = raw
		}
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		if !f.Accepts(data) {
			return failure(ctx, inv, fmt.Sprintf("Value for `%s` must be of type %s.", path, f.Kind))
		}
	}

	cfg := inv.Host.Config()
	if err := set(cfg, path, value); err != nil {
		return err
	}

	switch root(path) {
	case "defaultGame":
		if err := inv.Host.Client().SetStatus(cfg.String("defaultGame", "")); err != nil {
			log := inv.Host.Logger()
			log.Warn().Err(err).Msg("failed to set presence")
		}
	case "defaultUserCooldown":
		if r, ok := inv.Host.(interface{ RefreshLimits() }); ok {
			r.RefreshLimits()
		}
	}
	return done(ctx, inv)
}

func runSetPrefix(ctx context.Context, inv *api.Invocation) error {
	cfg := inv.Host.Config()
	path := storage.Keys("settings", inv.Message.GuildID, "prefix")

	if len(inv.Args) == 0 {
		if _, err := unset(cfg, path); err != nil {
			return err
		}
		return success(ctx, inv, fmt.Sprintf("Prefix reset to `%s`.", inv.Host.Prefix(inv.Message.GuildID)))
	}

	if err := set(cfg, path, inv.Args[0]); err != nil {
		return err
	}
	return success(ctx, inv, fmt.Sprintf("Prefix is now `%s`.", inv.Args[0]))
}
