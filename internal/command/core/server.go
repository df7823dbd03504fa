package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	api "github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/middleware"

	"github.com/dustin/go-humanize"
)

func serverCommands() []*api.Command {
	guildOnly := middleware.WithGuildOnly()
	return []*api.Command{
		middleware.WrapCommand(&api.Command{
			Name:        "setnick",
			Description: "Set the bot's nickname on this server. Without a name the nickname is cleared.",
			Arguments:   []string{"<nickname>?"},
			Permission:  manager,
			Execute:     runSetNick,
		}, guildOnly),
		middleware.WrapCommand(&api.Command{
			Name:        "serverinfo",
			Description: "Get info for the current server.",
			Permission:  api.LevelAll,
			Execute:     runServerInfo,
		}, guildOnly),
		{
			Name:        "userinfo",
			Description: "Get info for a user mention or id, or for yourself.",
			Arguments:   []string{"<user>?"},
			Permission:  api.LevelAll,
			Aliases:     []string{"userid"},
			Execute:     runUserInfo,
		},
	}
}

func runSetNick(ctx context.Context, inv *api.Invocation) error {
	client := inv.Host.Client()
	nick := strings.Join(inv.Args, " ")
	if err := client.SetNickname(ctx, inv.Message.GuildID, client.SelfID(), nick); err != nil {
		return err
	}
	return done(ctx, inv)
}

func dated(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return fmt.Sprintf("%s (%s)", t.UTC().Format(time.DateOnly), humanize.Time(t))
}

func runServerInfo(ctx context.Context, inv *api.Invocation) error {
	g, err := inv.Host.Client().Guild(ctx, inv.Message.GuildID)
	if err != nil {
		return err
	}
	return sendEmbed(ctx, inv, api.NoticeInfo, &api.Embed{
		Title: "Server info for " + g.Name,
		Fields: []api.EmbedField{
			{Name: "ID", Value: "`" + g.ID + "`", Inline: true},
			{Name: "Owner", Value: "<@" + g.OwnerID + ">", Inline: true},
			{Name: "Members", Value: humanize.Comma(int64(g.MemberCount)), Inline: true},
			{Name: "Channels", Value: strconv.Itoa(g.Channels), Inline: true},
			{Name: "Roles", Value: strconv.Itoa(g.Roles), Inline: true},
			{Name: "Created", Value: dated(g.CreatedAt)},
		},
	})
}

func runUserInfo(ctx context.Context, inv *api.Invocation) error {
	userID := inv.Message.Author.ID
	if len(inv.Args) > 0 {
		id, ok := parseID(inv.Args[0], userMention)
		if !ok {
			return failure(ctx, inv, "User not found.")
		}
		userID = id
	}

	info, err := inv.Host.Client().UserInfo(ctx, inv.Message.GuildID, userID)
	if err != nil {
		return err
	}

	nick := info.Nick
	if nick == "" {
		nick = "None"
	}
	fields := []api.EmbedField{
		{Name: "ID", Value: "`" + info.User.ID + "`", Inline: true},
		{Name: "Nickname", Value: nick, Inline: true},
		{Name: "Bot", Value: strconv.FormatBool(info.User.Bot), Inline: true},
		{Name: "Created", Value: dated(info.CreatedAt)},
	}
	if inv.Message.GuildID != "" {
		roles := "none"
		if len(info.Roles) > 0 {
			roles = "<@&" + strings.Join(info.Roles, "> <@&") + ">"
		}
		fields = append(fields,
			api.EmbedField{Name: "Roles", Value: roles},
			api.EmbedField{Name: "Joined", Value: dated(info.JoinedAt)},
		)
	}

	return sendEmbed(ctx, inv, api.NoticeSuccess, &api.Embed{
		Title:  "User info for " + info.User.Name,
		Fields: fields,
	})
}
