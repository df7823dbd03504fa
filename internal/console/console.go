// Package console is a line-based chat transport over a reader and a writer.
// Every input line is delivered as a message in a single local server.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keshon/modbot/internal/bot"
	"github.com/keshon/modbot/internal/core"
)

const (
	GuildID   = "local"
	ChannelID = "console"
	SelfID    = "modbot"
)

type Console struct {
	lines  chan string
	out    io.Writer
	outMu  sync.Mutex
	user   core.User
	nextID atomic.Int64
	nick   atomic.Value
}

// New starts reading in. The sender of every line is userID.
func New(in io.Reader, out io.Writer, userID string) *Console {
	c := &Console{
		lines: make(chan string),
		out:   out,
		user:  core.User{ID: userID, Name: userID},
	}
	go func() {
		defer close(c.lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			c.lines <- sc.Text()
		}
	}()
	return c
}

// Dialer attaches a session to the console. onEOF runs once the input is
// exhausted.
func (c *Console) Dialer(onEOF func()) bot.Dialer {
	return func(ctx context.Context, handle func(*core.Message)) (bot.Conn, error) {
		s := &session{Console: c, done: make(chan struct{})}
		go s.serve(ctx, handle, onEOF)
		return s, nil
	}
}

func (c *Console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) message(content string) *core.Message {
	return &core.Message{
		ID:        strconv.FormatInt(c.nextID.Add(1), 10),
		ChannelID: ChannelID,
		GuildID:   GuildID,
		Content:   content,
		Author:    c.user,
		Member:    &core.Member{},
		Timestamp: time.Now(),
	}
}

type session struct {
	*Console
	done      chan struct{}
	closeOnce sync.Once
}

var _ bot.Conn = (*session)(nil)

func (s *session) serve(ctx context.Context, handle func(*core.Message), onEOF func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case line, ok := <-s.lines:
			if !ok {
				if onEOF != nil {
					onEOF()
				}
				return
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			handle(s.message(line))
		}
	}
}

func (s *session) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *session) SelfID() string   { return SelfID }
func (s *session) Guilds() []string { return []string{GuildID} }

func (s *session) Send(_ context.Context, _ string, payload core.Payload) error {
	s.printf("%s", Render(payload))
	return nil
}

func (s *session) React(_ context.Context, _, messageID, emoji string) error {
	s.printf("[%s reacted to #%s]\n", emoji, messageID)
	return nil
}

func (s *session) SetNickname(_ context.Context, _, _, nick string) error {
	s.nick.Store(nick)
	s.printf("[nickname is now %q]\n", nick)
	return nil
}

func (s *session) SetStatus(status string) error {
	s.printf("[playing %s]\n", status)
	return nil
}

func (s *session) Guild(_ context.Context, guildID string) (*core.Guild, error) {
	return &core.Guild{ID: guildID, Name: "Console", OwnerID: s.user.ID, MemberCount: 2}, nil
}

func (s *session) UserInfo(_ context.Context, _, userID string) (*core.UserInfo, error) {
	info := &core.UserInfo{User: core.User{ID: userID, Name: userID}}
	if userID == SelfID {
		info.User.Bot = true
		if nick, ok := s.nick.Load().(string); ok {
			info.Nick = nick
		}
	}
	return info, nil
}

// Render formats a payload as plain text lines.
func Render(p core.Payload) string {
	var sb strings.Builder
	if p.Content != "" {
		sb.WriteString(p.Content)
		sb.WriteByte('\n')
	}
	if e := p.Embed; e != nil {
		if e.Title != "" {
			fmt.Fprintf(&sb, "== %s ==\n", e.Title)
		}
		if e.Description != "" {
			sb.WriteString(e.Description)
			sb.WriteByte('\n')
		}
		for _, f := range e.Fields {
			fmt.Fprintf(&sb, "  %s: %s\n", f.Name, f.Value)
		}
		if e.Footer != "" {
			fmt.Fprintf(&sb, "-- %s\n", e.Footer)
		}
	}
	return sb.String()
}
