package core

import (
	"context"
	"fmt"
	"slices"
	"strings"

	api "github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/storage"
)

func aliasCommands() []*api.Command {
	return []*api.Command{
		{
			Name:        "alias",
			Description: "Define an alias for a command.",
			Arguments:   []string{"<alias>", "<command>"},
			Permission:  manager,
			Execute:     runAlias,
		},
		{
			Name:        "removealias",
			Description: "Remove an alias.",
			Arguments:   []string{"<alias>"},
			Permission:  manager,
			Execute:     runRemoveAlias,
		},
		{
			Name:        "aliases",
			Description: "List aliases.",
			Permission:  api.LevelAll,
			Execute:     runAliases,
		},
	}
}

func runAlias(ctx context.Context, inv *api.Invocation) error {
	alias := strings.ToLower(inv.Args[0])
	name, ok := canonical(inv, inv.Args[1])
	if !ok {
		return notFound(ctx, inv, inv.Args[1])
	}
	if alias == name {
		return failure(ctx, inv, "An alias cannot point to itself.")
	}
	if err := set(inv.Host.Config(), storage.Keys("commandAliases", alias), name); err != nil {
		return err
	}
	return done(ctx, inv)
}

func runRemoveAlias(ctx context.Context, inv *api.Invocation) error {
	removed, err := unset(inv.Host.Config(), storage.Keys("commandAliases", strings.ToLower(inv.Args[0])))
	if err != nil {
		return err
	}
	if !removed {
		return failure(ctx, inv, "Alias does not exist.")
	}
	return done(ctx, inv)
}

func runAliases(ctx context.Context, inv *api.Invocation) error {
	var sb strings.Builder
	write := func(aliases map[string]string) {
		keys := make([]string, 0, len(aliases))
		for k := range aliases {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("**`%s`**: `%s`\n", k, aliases[k]))
		}
	}

	write(inv.Host.Config().StringMap("commandAliases"))
	for _, m := range inv.Host.Modules().Loaded() {
		write(m.Aliases)
	}

	desc := sb.String()
	if desc == "" {
		desc = "No aliases defined."
	}
	return inv.Notify(ctx, api.NoticeInfo, "Aliases", desc)
}
