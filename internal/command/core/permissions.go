package core

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	api "github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/middleware"
	"github.com/keshon/modbot/internal/storage"
)

func permissionCommands() []*api.Command {
	return []*api.Command{
		{
			Name:        "permadd",
			Description: "Add a user (mention or id) to a permission group.",
			Arguments:   []string{"<user>", "<group>"},
			Permission:  api.LevelOwner,
			Execute:     runPermAdd,
		},
		{
			Name:        "permremove",
			Description: "Remove a user (mention or id) from a permission group.",
			Arguments:   []string{"<user>", "<group>"},
			Permission:  api.LevelOwner,
			Execute:     runPermRemove,
		},
		{
			Name:        "permgroups",
			Description: "List permission groups.",
			Permission:  api.LevelOwner,
			Execute:     runPermGroups,
		},
		{
			Name:        "permlist",
			Description: "List users in a permission group.",
			Arguments:   []string{"<group>"},
			Permission:  api.LevelOwner,
			Execute:     runPermList,
		},
		{
			Name:        "addgroupoverride",
			Description: "Require a different level or group for a command everywhere.",
			Arguments:   []string{"<command>", "<group>"},
			Permission:  api.LevelOwner,
			Execute:     runAddGroupOverride,
		},
		{
			Name:        "removegroupoverride",
			Description: "Remove a group override for a command.",
			Arguments:   []string{"<command>"},
			Permission:  api.LevelOwner,
			Execute:     runRemoveGroupOverride,
		},
		middleware.WrapCommand(&api.Command{
			Name:        "addroleoverride",
			Description: "Let a role (mention or id) use a command on this server.",
			Arguments:   []string{"<command>", "<role>"},
			Permission:  manager,
			Execute:     runAddRoleOverride,
		}, middleware.WithGuildOnly()),
		middleware.WrapCommand(&api.Command{
			Name:        "removeroleoverride",
			Description: "Remove the role override for a command on this server.",
			Arguments:   []string{"<command>"},
			Permission:  manager,
			Execute:     runRemoveRoleOverride,
		}, middleware.WithGuildOnly()),
		{
			Name:        "listoverrides",
			Description: "List permission overrides.",
			Permission:  api.LevelAll,
			Execute:     runListOverrides,
		},
	}
}

func groups(inv *api.Invocation) map[string][]string {
	return api.Groups(inv.Host.Config(), inv.Host.Logger())
}

func runPermAdd(ctx context.Context, inv *api.Invocation) error {
	if len(inv.Args) > 2 {
		return failure(ctx, inv, "Spaces are not allowed in user ids or group names.")
	}
	id, ok := parseID(inv.Args[0], userMention)
	if !ok {
		return failure(ctx, inv, "User string does not appear to be a valid user id.")
	}
	group := inv.Args[1]

	cfg := inv.Host.Config()
	members := groups(inv)[group]
	if slices.Contains(members, id) {
		return failure(ctx, inv, fmt.Sprintf("User `%s` is already in group %s.", id, group))
	}
	if err := set(cfg, storage.Keys("groups", group), append(members, id)); err != nil {
		return err
	}
	return success(ctx, inv, fmt.Sprintf("Added user `%s` to group %s.", id, group))
}

func runPermRemove(ctx context.Context, inv *api.Invocation) error {
	if len(inv.Args) > 2 {
		return failure(ctx, inv, "Spaces are not allowed in user ids or group names.")
	}
	id, ok := parseID(inv.Args[0], userMention)
	if !ok {
		return failure(ctx, inv, "User string does not appear to be a valid user id.")
	}
	group := inv.Args[1]

	cfg := inv.Host.Config()
	members, exists := groups(inv)[group]
	if !exists {
		return failure(ctx, inv, "Group does not exist.")
	}
	members = slices.DeleteFunc(members, func(m string) bool { return m == id })
	if err := set(cfg, storage.Keys("groups", group), members); err != nil {
		return err
	}
	return success(ctx, inv, fmt.Sprintf("Removed user `%s` from group %s.", id, group))
}

func runPermGroups(ctx context.Context, inv *api.Invocation) error {
	var names []string
	for name := range groups(inv) {
		names = append(names, name)
	}
	if len(names) == 0 {
		return failure(ctx, inv, "No groups configured.")
	}
	slices.Sort(names)
	return inv.Notify(ctx, api.NoticeInfo, "Groups", code(names))
}

func runPermList(ctx context.Context, inv *api.Invocation) error {
	members := groups(inv)[inv.Args[0]]
	if len(members) == 0 {
		return failure(ctx, inv, "Group does not exist or is empty.")
	}
	return inv.Notify(ctx, api.NoticeInfo, "Users", code(members))
}

// canonical resolves a typed command name, alias or not, to the name
// overrides are stored under.
func canonical(inv *api.Invocation, typed string) (string, bool) {
	cmd, _ := inv.Host.Resolve(strings.ToLower(typed))
	if cmd == nil {
		return strings.ToLower(typed), false
	}
	return cmd.Name, true
}

func notFound(ctx context.Context, inv *api.Invocation, typed string) error {
	return failure(ctx, inv, fmt.Sprintf("Command `%s` not found.", typed))
}

func runAddGroupOverride(ctx context.Context, inv *api.Invocation) error {
	name, ok := canonical(inv, inv.Args[0])
	if !ok {
		return notFound(ctx, inv, inv.Args[0])
	}
	if err := set(inv.Host.Config(), storage.Keys("commandPermissions", name), inv.Args[1]); err != nil {
		return err
	}
	return done(ctx, inv)
}

func runRemoveGroupOverride(ctx context.Context, inv *api.Invocation) error {
	name, _ := canonical(inv, inv.Args[0])
	removed, err := unset(inv.Host.Config(), storage.Keys("commandPermissions", name))
	if err != nil {
		return err
	}
	if !removed {
		return failure(ctx, inv, "No override set for this command.")
	}
	return done(ctx, inv)
}

func runAddRoleOverride(ctx context.Context, inv *api.Invocation) error {
	if len(inv.Args) > 2 {
		return failure(ctx, inv, "Spaces are not allowed in role ids or command names.")
	}
	name, ok := canonical(inv, inv.Args[0])
	if !ok {
		return notFound(ctx, inv, inv.Args[0])
	}
	roleID, ok := parseID(inv.Args[1], roleMention)
	if !ok {
		return failure(ctx, inv, "Role string does not appear to be a valid role id.")
	}
	if err := set(inv.Host.Config(), storage.Keys("serverPermissions", inv.Message.GuildID, name), roleID); err != nil {
		return err
	}
	return done(ctx, inv)
}

func runRemoveRoleOverride(ctx context.Context, inv *api.Invocation) error {
	name, _ := canonical(inv, inv.Args[0])
	removed, err := unset(inv.Host.Config(), storage.Keys("serverPermissions", inv.Message.GuildID, name))
	if err != nil {
		return err
	}
	if !removed {
		return failure(ctx, inv, "No role override set for this command on this server.")
	}
	return done(ctx, inv)
}

func runListOverrides(ctx context.Context, inv *api.Invocation) error {
	cfg := inv.Host.Config()
	render := func(path string) string {
		v := map[string]string{}
		if err := cfg.Decode(path, &v); err != nil {
			log := inv.Host.Logger()
			log.Warn().Err(err).Str("path", path).Msg("overrides are malformed")
		}
		if len(v) == 0 {
			return "none"
		}
		data, _ := json.MarshalIndent(v, "", "    ")
		return "```json\n" + string(data) + "\n```"
	}

	e := &api.Embed{
		Title:  "Overrides",
		Fields: []api.EmbedField{{Name: "Group overrides", Value: render("commandPermissions")}},
	}
	if guildID := inv.Message.GuildID; guildID != "" {
		e.Fields = append(e.Fields, api.EmbedField{
			Name:  "Role overrides on this server",
			Value: render(storage.Keys("serverPermissions", guildID)),
		})
	}
	return sendEmbed(ctx, inv, api.NoticeInfo, e)
}
