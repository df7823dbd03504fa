package core

import (
	"context"
	"time"
)

type User struct {
	ID   string
	Name string
	Bot  bool
}

// Member is the server-scoped view of the sender.
type Member struct {
	Nick     string
	Roles    []string
	JoinedAt time.Time
}

// Message is an inbound chat message as the transport delivers it.
type Message struct {
	ID        string
	ChannelID string
	// GuildID is empty for direct messages.
	GuildID   string
	Content   string
	Author    User
	Member    *Member
	Mentions  []User
	Timestamp time.Time
}

// Roles returns the sender's role ids, empty outside a server.
func (m *Message) Roles() []string {
	if m.Member == nil {
		return nil
	}
	return m.Member.Roles
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	Footer      string
}

// Payload is an outbound message. Either part may be empty.
type Payload struct {
	Content string
	Embed   *Embed
}

type Guild struct {
	ID          string
	Name        string
	OwnerID     string
	MemberCount int
	Channels    int
	Roles       int
	CreatedAt   time.Time
}

type UserInfo struct {
	User      User
	Nick      string
	Roles     []string
	JoinedAt  time.Time
	CreatedAt time.Time
}

// Client is the chat transport as the core consumes it.
type Client interface {
	SelfID() string
	Guilds() []string
	Send(ctx context.Context, channelID string, payload Payload) error
	React(ctx context.Context, channelID, messageID, emoji string) error
	SetNickname(ctx context.Context, guildID, userID, nick string) error
	SetStatus(status string) error
	Guild(ctx context.Context, guildID string) (*Guild, error)
	UserInfo(ctx context.Context, guildID, userID string) (*UserInfo, error)
}
