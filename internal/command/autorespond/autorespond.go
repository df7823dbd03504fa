// Package autorespond is the builtin module that answers messages matching
// configured patterns before command handling.
package autorespond

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/storage"

	cmap "github.com/orcaman/concurrent-map/v2"
)

const globalFlag = "--global"

func init() {
	core.RegisterModule("autorespond", New)
}

// Responses maps a pattern to the replies one is picked from.
type Responses map[string][]string

type responder struct {
	// Invalid patterns are cached as nil so they are logged once.
	patterns cmap.ConcurrentMap[string, *regexp.Regexp]
	intn     func(int) int
}

func New() *core.Module {
	r := &responder{patterns: cmap.New[*regexp.Regexp](), intn: rand.IntN}
	return r.module()
}

func (r *responder) module() *core.Module {
	return &core.Module{
		Description: "Automatic replies to matching messages",
		Init:        r.prime,
		Middleware:  []core.Stage{r.respond},
		Commands: []*core.Command{
			{
				Name:        "addresponse",
				Description: "Add a reply for a regular expression. Several replies for one pattern are picked at random. Use in a direct message or with --global for every server.",
				Arguments:   []string{"<pattern>", "<response>"},
				Permission:  "manager",
				Execute:     r.add,
			},
			{
				Name:        "removeresponse",
				Description: "Remove one reply by index, or every reply for the pattern.",
				Arguments:   []string{"<pattern>", "<index>?"},
				Permission:  "manager",
				Execute:     r.remove,
			},
			{
				Name:        "listresponses",
				Description: "List replies for this server, or global ones with --global.",
				Arguments:   []string{"<--global>?"},
				Permission:  "manager",
				Execute:     r.list,
			},
		},
	}
}

func (r *responder) prime(_ context.Context, host core.Host) error {
	cfg := host.Config()
	if _, err := cfg.SetDefault("modules.autorespond.global", map[string]any{}); err != nil {
		return err
	}
	for _, guildID := range host.Client().Guilds() {
		if _, err := cfg.SetDefault(storage.Keys("modules", "autorespond", "servers", guildID), map[string]any{}); err != nil {
			return err
		}
	}
	return cfg.Save()
}

// scopePath addresses the replies of one server, or the global ones when
// guildID is empty. Extra keys descend further.
func scopePath(guildID string, keys ...string) string {
	base := []string{"modules", "autorespond", "global"}
	if guildID != "" {
		base = []string{"modules", "autorespond", "servers", guildID}
	}
	return storage.Keys(append(base, keys...)...)
}

// responses merges global replies with the server's; the server wins on a
// shared pattern.
func responses(host core.Host, guildID string) Responses {
	merged, _ := load(host, scopePath(""))
	if guildID != "" {
		server, _ := load(host, scopePath(guildID))
		for k, v := range server {
			merged[k] = v
		}
	}
	return merged
}

// load decodes the replies at path. A malformed table is logged and returned
// with whatever entries did decode.
func load(host core.Host, path string) (Responses, error) {
	r := Responses{}
	if err := host.Config().Decode(path, &r); err != nil {
		log := host.Logger()
		log.Warn().Err(err).Str("module", "autorespond").Str("path", path).Msg("responses are malformed")
		return r, err
	}
	return r, nil
}

func (r *responder) compile(host core.Host, pattern string) *regexp.Regexp {
	if re, ok := r.patterns.Get(pattern); ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		log := host.Logger()
		log.Warn().Err(err).Str("module", "autorespond").Str("pattern", pattern).Msg("skipping invalid pattern")
		re = nil
	}
	r.patterns.Set(pattern, re)
	return re
}

// respond replies once per matching pattern and halts if anything matched.
func (r *responder) respond(ctx context.Context, mc *core.MessageContext) core.Outcome {
	all := responses(mc.Host, mc.Message.GuildID)
	patterns := make([]string, 0, len(all))
	for p := range all {
		patterns = append(patterns, p)
	}
	slices.Sort(patterns)

	matched := false
	for _, p := range patterns {
		replies := all[p]
		re := r.compile(mc.Host, p)
		if re == nil || len(replies) == 0 || !re.MatchString(mc.Message.Content) {
			continue
		}
		matched = true
		reply := replies[r.intn(len(replies))]
		if err := mc.Host.Client().Send(ctx, mc.Message.ChannelID, core.Payload{Content: reply}); err != nil {
			log := mc.Host.Logger()
			log.Warn().Err(err).Str("module", "autorespond").Msg("failed to send reply")
		}
	}
	if matched {
		return core.Halt
	}
	return core.Proceed
}

// scope resolves which server a command acts on, empty for global.
// --global requires the owner.
func scope(inv *core.Invocation, args []string) (guildID string, rest []string, err error) {
	if len(args) > 0 && args[0] == globalFlag {
		if inv.Message.Author.ID != inv.Host.Config().String("owner", "") {
			return "", nil, fmt.Errorf("only the owner can change global responses")
		}
		return "", args[1:], nil
	}
	return inv.Message.GuildID, args, nil
}

func (r *responder) add(ctx context.Context, inv *core.Invocation) error {
	guildID, args, err := scope(inv, inv.Args)
	if err != nil {
		return err
	}
	if len(args) < 2 {
		return fmt.Errorf("a pattern and a response are required")
	}
	pattern := args[0]
	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}

	cfg := inv.Host.Config()
	path := scopePath(guildID, pattern)
	list := append(cfg.Strings(path), strings.Join(args[1:], " "))
	if err := cfg.Set(path, list); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return err
	}
	return inv.Host.Client().React(ctx, inv.Message.ChannelID, inv.Message.ID, "✅")
}

func (r *responder) remove(ctx context.Context, inv *core.Invocation) error {
	guildID, args, err := scope(inv, inv.Args)
	if err != nil {
		return err
	}
	base := scopePath(guildID)
	if len(args) == 0 {
		return fmt.Errorf("a pattern is required")
	}

	cfg := inv.Host.Config()
	current, err := load(inv.Host, base)
	if err != nil {
		return err
	}
	replies, ok := current[args[0]]
	if !ok {
		return inv.Notify(ctx, core.NoticeError, "", "Response not found.")
	}

	if len(args) > 1 {
		i, err := strconv.Atoi(args[1])
		if err != nil || i < 0 || i >= len(replies) {
			return inv.Notify(ctx, core.NoticeError, "", "Response not found.")
		}
		current[args[0]] = slices.Delete(replies, i, i+1)
		if len(current[args[0]]) == 0 {
			delete(current, args[0])
		}
	} else {
		delete(current, args[0])
	}

	if err := cfg.Set(base, current); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return err
	}
	return inv.Host.Client().React(ctx, inv.Message.ChannelID, inv.Message.ID, "✅")
}

func (r *responder) list(ctx context.Context, inv *core.Invocation) error {
	guildID, _, err := scope(inv, inv.Args)
	if err != nil {
		return err
	}
	current, err := load(inv.Host, scopePath(guildID))
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(current, "", "    ")
	if err != nil {
		return err
	}
	return inv.Reply(ctx, "```json\n"+string(data)+"\n```")
}
