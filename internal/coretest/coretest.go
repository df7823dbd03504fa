// Package coretest provides in-memory stand-ins for the chat transport and
// the host, for use in tests.
package coretest

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type Sent struct {
	ChannelID string
	Payload   core.Payload
}

type Reaction struct {
	ChannelID string
	MessageID string
	Emoji     string
}

// Client records everything sent through it.
type Client struct {
	mu        sync.Mutex
	Self      string
	GuildIDs  []string
	sent      []Sent
	reactions []Reaction
	nicks     map[string]string
	status    string
	SendErr   error
	StatusErr error
}

var _ core.Client = (*Client)(nil)

func NewClient(self string) *Client {
	return &Client{Self: self, nicks: make(map[string]string)}
}

func (c *Client) SelfID() string   { return c.Self }
func (c *Client) Guilds() []string { return c.GuildIDs }

func (c *Client) Send(_ context.Context, channelID string, payload core.Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return c.SendErr
	}
	c.sent = append(c.sent, Sent{ChannelID: channelID, Payload: payload})
	return nil
}

func (c *Client) React(_ context.Context, channelID, messageID, emoji string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reactions = append(c.reactions, Reaction{channelID, messageID, emoji})
	return nil
}

func (c *Client) SetNickname(_ context.Context, guildID, userID, nick string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nicks[guildID+"/"+userID] = nick
	return nil
}

func (c *Client) SetStatus(status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.StatusErr != nil {
		return c.StatusErr
	}
	c.status = status
	return nil
}

func (c *Client) Guild(_ context.Context, guildID string) (*core.Guild, error) {
	return &core.Guild{ID: guildID, Name: "guild-" + guildID, MemberCount: 3, CreatedAt: time.Unix(1500000000, 0)}, nil
}

func (c *Client) UserInfo(_ context.Context, guildID, userID string) (*core.UserInfo, error) {
	return &core.UserInfo{User: core.User{ID: userID, Name: "user-" + userID}, CreatedAt: time.Unix(1500000000, 0)}, nil
}

// Sent returns a copy of every payload sent so far.
func (c *Client) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sent(nil), c.sent...)
}

// Texts flattens sent payloads to their content and embed descriptions.
func (c *Client) Texts() []string {
	var out []string
	for _, s := range c.Sent() {
		switch {
		case s.Payload.Embed != nil:
			out = append(out, s.Payload.Embed.Description)
		default:
			out = append(out, s.Payload.Content)
		}
	}
	return out
}

func (c *Client) Reactions() []Reaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Reaction(nil), c.reactions...)
}

func (c *Client) Nick(guildID, userID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nicks[guildID+"/"+userID]
}

func (c *Client) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Host is a minimal core.Host over a real config store.
type Host struct {
	Cfg  *storage.Storage
	Cl   *Client
	Mods core.Modules
	Log  zerolog.Logger

	mu        sync.Mutex
	restarts  int
	shutdowns int
}

var _ core.Host = (*Host)(nil)

// NewHost opens a fresh config store in a temp dir.
func NewHost(t *testing.T) *Host {
	t.Helper()
	cfg, err := storage.Open(filepath.Join(t.TempDir(), "config.json"), 0, zerolog.Nop())
	require.NoError(t, err)
	return &Host{Cfg: cfg, Cl: NewClient("bot"), Log: zerolog.Nop()}
}

func (h *Host) Config() core.Config    { return h.Cfg }
func (h *Host) Modules() core.Modules  { return h.Mods }
func (h *Host) Client() core.Client    { return h.Cl }
func (h *Host) Logger() zerolog.Logger { return h.Log }
func (h *Host) Uptime() time.Duration  { return time.Minute }

func (h *Host) Resolve(name string) (*core.Command, *core.Module) {
	var mods []*core.Module
	if h.Mods != nil {
		mods = h.Mods.Loaded()
	}
	return core.ResolveCommand(name, h.Cfg.StringMap("commandAliases"), mods)
}

func (h *Host) Prefix(guildID string) string {
	global := h.Cfg.String("prefix", "$")
	if guildID == "" {
		return global
	}
	return h.Cfg.String(storage.Keys("settings", guildID, "prefix"), global)
}

func (h *Host) Notify(ctx context.Context, channelID string, kind core.NoticeKind, title, description string) error {
	return h.Cl.Send(ctx, channelID, core.Payload{Embed: &core.Embed{Title: title, Description: description}})
}

func (h *Host) Restart() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.restarts++
}

func (h *Host) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shutdowns++
}

func (h *Host) Restarts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.restarts
}

func (h *Host) Shutdowns() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shutdowns
}

// Message builds a guild message from sender.
func Message(sender, content string) *core.Message {
	return &core.Message{
		ID:        "m1",
		ChannelID: "c1",
		GuildID:   "g1",
		Content:   content,
		Author:    core.User{ID: sender, Name: "user-" + sender},
		Member:    &core.Member{},
		Timestamp: time.Now(),
	}
}
