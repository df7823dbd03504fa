// Package discord connects the bot to Discord through discordgo.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/keshon/modbot/internal/bot"
	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/pkg/ratelimit"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// Client is an open Discord session.
type Client struct {
	s     *discordgo.Session
	lim   *ratelimit.AdaptiveLimiter
	retry ratelimit.RetryConfig
	log   zerolog.Logger
}

var _ bot.Conn = (*Client)(nil)

// Dialer opens a new session per call, so restarts get a fresh gateway
// connection.
func Dialer(token string, logger zerolog.Logger) bot.Dialer {
	log := logger.With().Str("component", "discord").Logger()

	return func(ctx context.Context, handle func(*core.Message)) (bot.Conn, error) {
		if token == "" {
			return nil, errors.New("discord token is empty")
		}
		s, err := discordgo.New("Bot " + token)
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		s.Identify.Intents = intents

		retry := ratelimit.DefaultRetryConfig()
		retry.Retryable = retryable
		retry.Logger = log

		c := &Client{
			s:     s,
			lim:   ratelimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5),
			retry: retry,
			log:   log,
		}

		s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
			log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("connected")
		})
		s.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
			if msg := toMessage(m.Message); msg != nil {
				handle(msg)
			}
		})

		if err := s.Open(); err != nil {
			return nil, fmt.Errorf("failed to open Discord session: %w", err)
		}
		return c, nil
	}
}

func (c *Client) Close() error {
	return c.s.Close()
}

func (c *Client) do(ctx context.Context, fn func() error) error {
	return ratelimit.Do(ctx, c.lim, c.retry, fn)
}

func (c *Client) SelfID() string {
	if c.s.State == nil || c.s.State.User == nil {
		return ""
	}
	return c.s.State.User.ID
}

func (c *Client) Guilds() []string {
	c.s.State.RLock()
	defer c.s.State.RUnlock()

	ids := make([]string, 0, len(c.s.State.Guilds))
	for _, g := range c.s.State.Guilds {
		ids = append(ids, g.ID)
	}
	return ids
}

func (c *Client) Send(ctx context.Context, channelID string, payload core.Payload) error {
	send := &discordgo.MessageSend{Content: payload.Content}
	if payload.Embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{toEmbed(payload.Embed)}
	}
	return c.do(ctx, func() error {
		_, err := c.s.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
		return err
	})
}

func (c *Client) React(ctx context.Context, channelID, messageID, emoji string) error {
	return c.do(ctx, func() error {
		return c.s.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx))
	})
}

// SetNickname renames userID in the server; the bot's own id renames the bot.
func (c *Client) SetNickname(ctx context.Context, guildID, userID, nick string) error {
	if userID == c.SelfID() {
		userID = "@me"
	}
	return c.do(ctx, func() error {
		return c.s.GuildMemberNickname(guildID, userID, nick, discordgo.WithContext(ctx))
	})
}

func (c *Client) SetStatus(status string) error {
	return c.s.UpdateGameStatus(0, status)
}

func (c *Client) Guild(ctx context.Context, guildID string) (*core.Guild, error) {
	g, err := c.s.State.Guild(guildID)
	if err != nil {
		if g, err = c.s.Guild(guildID, discordgo.WithContext(ctx)); err != nil {
			return nil, err
		}
	}
	return toGuild(g), nil
}

func (c *Client) UserInfo(ctx context.Context, guildID, userID string) (*core.UserInfo, error) {
	if guildID != "" {
		m, err := c.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
		if err == nil {
			return toUserInfo(m.User, m), nil
		}
		c.log.Debug().Err(err).Str("user_id", userID).Msg("member lookup failed")
	}

	u, err := c.s.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return toUserInfo(u, nil), nil
}

// retryable treats throttling and server errors from the REST API as
// transient.
func retryable(err error) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) || rest.Response == nil {
		return false
	}
	code := rest.Response.StatusCode
	return code == http.StatusTooManyRequests || code >= 500
}

func created(id string) time.Time {
	t, err := discordgo.SnowflakeTimestamp(id)
	if err != nil {
		return time.Time{}
	}
	return t
}
