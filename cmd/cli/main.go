// cmd/cli/main.go runs the bot against the terminal instead of Discord.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/keshon/modbot/internal/command/autorespond"
	_ "github.com/keshon/modbot/internal/command/core"
	_ "github.com/keshon/modbot/internal/command/utils"

	"github.com/keshon/modbot/internal/bot"
	"github.com/keshon/modbot/internal/config"
	"github.com/keshon/modbot/internal/console"
	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/logger"
	"github.com/keshon/modbot/internal/registry"
	"github.com/keshon/modbot/internal/storage"

	"github.com/rs/zerolog"
)

func main() {
	cfg, _, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("invalid environment")
	}

	log, closer := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.ConfigFile(), cfg.ConfigBackups, log)
	if err != nil {
		if store == nil {
			log.Fatal().Err(err).Msg("failed to open config")
		}
		log.Warn().Err(err).Msg("config loaded with errors, continuing with defaults")
	}
	defer store.Close()

	reg := registry.New(log,
		registry.NewBuiltinSource(core.DefaultCatalog),
		registry.NewLuaSource(log, cfg.ModulePaths...),
	)
	b := bot.New(store, reg, log)

	user := os.Getenv("USER")
	if user == "" {
		user = "console"
	}
	term := console.New(os.Stdin, os.Stdout, user)

	if err := b.Run(ctx, term.Dialer(b.Shutdown)); err != nil {
		log.Error().Err(err).Msg("bot stopped with error")
	}
}
