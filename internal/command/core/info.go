package core

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	api "github.com/keshon/modbot/internal/core"
)

// maxFields is the most fields one embed can carry.
const maxFields = 25

func infoCommands() []*api.Command {
	return []*api.Command{
		{
			Name:        "info",
			Description: "Get info on the bot.",
			Permission:  api.LevelAll,
			Execute:     runInfo,
		},
		{
			Name:        "help",
			Description: "Get help on a command.",
			Arguments:   []string{"<command>?"},
			Permission:  api.LevelAll,
			Execute:     runHelp,
		},
		{
			Name:        "list",
			Description: "List commands, for every module or one.",
			Arguments:   []string{"<module>?"},
			Permission:  api.LevelAll,
			Execute:     runList,
		},
		{
			Name:        "ping",
			Description: "Ping.",
			Permission:  api.LevelAll,
			Execute: func(ctx context.Context, inv *api.Invocation) error {
				latency := time.Since(inv.Message.Timestamp).Round(time.Millisecond)
				return inv.Notify(ctx, api.NoticeInfo, "Pong! 🏓", fmt.Sprintf("Message latency is %s.", latency))
			},
		},
	}
}

func runInfo(ctx context.Context, inv *api.Invocation) error {
	cfg := inv.Host.Config()
	var names []string
	for _, m := range inv.Host.Modules().Loaded() {
		names = append(names, m.Name)
	}
	owner := cfg.String("owner", "")
	if owner == "" {
		owner = "none"
	}

	return sendEmbed(ctx, inv, api.NoticeInfo, &api.Embed{
		Title:       "modbot",
		Description: fmt.Sprintf("Use `%slist` to list commands.", inv.Prefix),
		Fields: []api.EmbedField{
			{Name: "Bot ID", Value: inv.Host.Client().SelfID(), Inline: true},
			{Name: "Owner ID", Value: owner, Inline: true},
			{Name: "Uptime", Value: api.HumanDuration(inv.Host.Uptime()), Inline: true},
			{Name: "Modules", Value: code(names)},
		},
	})
}

func runHelp(ctx context.Context, inv *api.Invocation) error {
	p := inv.Prefix
	if len(inv.Args) == 0 {
		return inv.Notify(ctx, api.NoticeInfo, "Help", fmt.Sprintf(
			"Use `%sinfo` to view bot status. Use `%slist` to list commands. Use `%shelp <command>` to view help for a command.", p, p, p))
	}

	cmd, _ := inv.Host.Resolve(strings.ToLower(inv.Args[0]))
	if cmd == nil {
		return notFound(ctx, inv, inv.Args[0])
	}

	aliases := slices.Clone(cmd.Aliases)
	for alias, target := range inv.Host.Config().StringMap("commandAliases") {
		if strings.EqualFold(target, cmd.Name) {
			aliases = append(aliases, alias)
		}
	}
	slices.Sort(aliases)
	desc := "Aliases: none"
	if len(aliases) > 0 {
		desc = "Aliases: " + code(aliases)
	}

	return sendEmbed(ctx, inv, api.NoticeInfo, &api.Embed{
		Title:       fmt.Sprintf("Command Help: `%s`", cmd.Name),
		Description: desc,
		Fields: []api.EmbedField{
			{Name: "`" + cmd.Usage(p) + "`", Value: cmd.Description},
			{Name: "Permission", Value: cmd.Level(), Inline: true},
		},
	})
}

func runList(ctx context.Context, inv *api.Invocation) error {
	mods := inv.Host.Modules().Loaded()

	if len(inv.Args) == 0 {
		e := &api.Embed{
			Title:       "Active modules:",
			Description: fmt.Sprintf("Use `%slist <module>` to view command usage and description for a module.", inv.Prefix),
		}
		for _, m := range mods {
			var names []string
			for _, c := range m.Commands {
				names = append(names, c.Name)
			}
			value := "no commands"
			if len(names) > 0 {
				value = code(names)
			}
			e.Fields = append(e.Fields, api.EmbedField{Name: "`" + m.Name + "`", Value: value})
		}
		return sendEmbed(ctx, inv, api.NoticeInfo, e)
	}

	name := strings.ToLower(inv.Args[0])
	idx := slices.IndexFunc(mods, func(m *api.Module) bool { return m.Name == name })
	if idx < 0 {
		return failure(ctx, inv, fmt.Sprintf("Module `%s` not found.", inv.Args[0]))
	}

	cmds := mods[idx].Commands
	if len(cmds) == 0 {
		return inv.Notify(ctx, api.NoticeInfo, fmt.Sprintf("Commands in module `%s`", name), "This module has no commands.")
	}
	for i, chunk := 0, cmds; len(chunk) > 0; i++ {
		n := min(maxFields, len(chunk))
		e := &api.Embed{}
		if i == 0 {
			e.Title = fmt.Sprintf("Commands in module `%s`", name)
		}
		for _, c := range chunk[:n] {
			e.Fields = append(e.Fields, api.EmbedField{Name: "`" + c.Usage(inv.Prefix) + "`", Value: c.Description})
		}
		if err := sendEmbed(ctx, inv, api.NoticeInfo, e); err != nil {
			return err
		}
		chunk = chunk[n:]
	}
	return nil
}
