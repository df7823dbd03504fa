package core

import (
	"context"
	"regexp"
	"strings"

	api "github.com/keshon/modbot/internal/core"
)

var (
	userMention = regexp.MustCompile(`^<@!?(\d+)>$`)
	roleMention = regexp.MustCompile(`^<@&(\d+)>$`)
	snowflake   = regexp.MustCompile(`^\d{5,20}$`)
)

// parseID accepts a mention matching re or a bare id.
func parseID(s string, re *regexp.Regexp) (string, bool) {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1], true
	}
	if snowflake.MatchString(s) {
		return s, true
	}
	return "", false
}

func done(ctx context.Context, inv *api.Invocation) error {
	return inv.Host.Client().React(ctx, inv.Message.ChannelID, inv.Message.ID, "✅")
}

func failure(ctx context.Context, inv *api.Invocation, desc string) error {
	return inv.Notify(ctx, api.NoticeError, "", desc)
}

func success(ctx context.Context, inv *api.Invocation, desc string) error {
	return inv.Notify(ctx, api.NoticeSuccess, "", desc)
}

func sendEmbed(ctx context.Context, inv *api.Invocation, kind api.NoticeKind, e *api.Embed) error {
	e.Color = api.NoticeColor(inv.Host.Config(), kind)
	return inv.Host.Client().Send(ctx, inv.Message.ChannelID, api.Payload{Embed: e})
}

func code(items []string) string {
	return "`" + strings.Join(items, "`, `") + "`"
}

// set writes value and persists the tree.
func set(cfg api.Config, path string, value any) error {
	if err := cfg.Set(path, value); err != nil {
		return err
	}
	return cfg.Save()
}

// unset reports false when path was not set.
func unset(cfg api.Config, path string) (bool, error) {
	if !cfg.Has(path) {
		return false, nil
	}
	if err := cfg.Unset(path); err != nil {
		return false, err
	}
	return true, cfg.Save()
}
