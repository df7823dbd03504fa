package discord

import (
	"github.com/keshon/modbot/internal/core"

	"github.com/bwmarrin/discordgo"
)

func toUser(u *discordgo.User) core.User {
	if u == nil {
		return core.User{}
	}
	name := u.GlobalName
	if name == "" {
		name = u.Username
	}
	return core.User{ID: u.ID, Name: name, Bot: u.Bot}
}

// toMessage returns nil for messages without an author, such as system
// notices.
func toMessage(m *discordgo.Message) *core.Message {
	if m == nil || m.Author == nil {
		return nil
	}
	msg := &core.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		GuildID:   m.GuildID,
		Content:   m.Content,
		Author:    toUser(m.Author),
		Timestamp: m.Timestamp,
	}
	if m.Member != nil {
		msg.Member = &core.Member{
			Nick:     m.Member.Nick,
			Roles:    m.Member.Roles,
			JoinedAt: m.Member.JoinedAt,
		}
	}
	for _, u := range m.Mentions {
		msg.Mentions = append(msg.Mentions, toUser(u))
	}
	return msg
}

func toEmbed(e *core.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	return out
}

func toGuild(g *discordgo.Guild) *core.Guild {
	return &core.Guild{
		ID:          g.ID,
		Name:        g.Name,
		OwnerID:     g.OwnerID,
		MemberCount: g.MemberCount,
		Channels:    len(g.Channels),
		Roles:       len(g.Roles),
		CreatedAt:   created(g.ID),
	}
}

func toUserInfo(u *discordgo.User, m *discordgo.Member) *core.UserInfo {
	info := &core.UserInfo{User: toUser(u)}
	if u != nil {
		info.CreatedAt = created(u.ID)
	}
	if m != nil {
		info.Nick = m.Nick
		info.Roles = m.Roles
		info.JoinedAt = m.JoinedAt
	}
	return info
}
