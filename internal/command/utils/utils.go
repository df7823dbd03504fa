// Package utils is the builtin module with small everyday commands.
package utils

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/keshon/modbot/internal/core"
)

const separatorPath = "modules.utils.separator"

func init() {
	core.RegisterModule("utils", New)
}

func New() *core.Module {
	return &core.Module{
		Description: "Small everyday commands",
		Init: func(_ context.Context, host core.Host) error {
			_, err := host.Config().SetDefault(separatorPath, "|")
			return err
		},
		Commands: []*core.Command{
			{
				Name:        "choose",
				Description: "Pick one of several options.",
				Arguments:   []string{"<a|b|...>"},
				Permission:  core.LevelAll,
				Aliases:     []string{"pick"},
				Execute:     choose(rand.IntN),
			},
			{
				Name:        "roll",
				Description: "Roll dice like `2d20+1d6-2`.",
				Arguments:   []string{"<formula>?"},
				Permission:  core.LevelAll,
				Aliases:     []string{"dice"},
				Execute:     roll(rand.IntN),
			},
			{
				Name:        "echo",
				Description: "Repeat the text back.",
				Arguments:   []string{"<text>"},
				Permission:  core.LevelAll,
				Execute: func(ctx context.Context, inv *core.Invocation) error {
					return inv.Reply(ctx, strings.Join(inv.Args, " "))
				},
			},
			{
				Name:        "uptime",
				Description: "Show how long the bot has been running.",
				Permission:  core.LevelAll,
				Execute: func(ctx context.Context, inv *core.Invocation) error {
					return inv.Notify(ctx, core.NoticeInfo, "Uptime", "Up for "+core.HumanDuration(inv.Host.Uptime()))
				},
			},
		},
	}
}

func choose(intn func(int) int) func(context.Context, *core.Invocation) error {
	return func(ctx context.Context, inv *core.Invocation) error {
		sep := inv.Host.Config().String(separatorPath, "|")
		if sep == "" {
			sep = "|"
		}

		var options []string
		for _, o := range strings.Split(strings.Join(inv.Args, " "), sep) {
			if o = strings.TrimSpace(o); o != "" {
				options = append(options, o)
			}
		}
		if len(options) == 0 {
			return fmt.Errorf("nothing to choose from")
		}
		return inv.Notify(ctx, core.NoticeSuccess, "", fmt.Sprintf("I choose **%s**", options[intn(len(options))]))
	}
}

func roll(intn func(int) int) func(context.Context, *core.Invocation) error {
	return func(ctx context.Context, inv *core.Invocation) error {
		r, err := Evaluate(inv.Arg(0, "1d6")+strings.Join(inv.Args[min(1, len(inv.Args)):], ""), intn)
		if err != nil {
			return err
		}
		desc := fmt.Sprintf("**Formula**: `%s`\n**Calculation**: %s\n**Result**: **%d**", r.Formula, r.Detail, r.Total)
		return inv.Notify(ctx, core.NoticeInfo, "🎲 Dice Roll", desc)
	}
}
