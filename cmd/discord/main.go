// cmd/discord/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/keshon/modbot/internal/command/autorespond"
	_ "github.com/keshon/modbot/internal/command/core"
	_ "github.com/keshon/modbot/internal/command/utils"

	"github.com/keshon/modbot/internal/bot"
	"github.com/keshon/modbot/internal/config"
	"github.com/keshon/modbot/internal/core"
	"github.com/keshon/modbot/internal/discord"
	"github.com/keshon/modbot/internal/logger"
	"github.com/keshon/modbot/internal/registry"
	"github.com/keshon/modbot/internal/storage"

	"github.com/rs/zerolog"
)

const appName = "modbot"

func main() {
	cfg, dotenv, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("invalid environment")
	}

	log, closer := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer closer.Close()

	log.Info().Bool("dotenv", dotenv).Msgf("Starting %s bot...", appName)

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("bot stopped with error")
		closer.Close()
		os.Exit(1)
	}
	log.Info().Msg("bot exited cleanly")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.ConfigFile(), cfg.ConfigBackups, log)
	if err != nil {
		if store == nil {
			return err
		}
		log.Warn().Err(err).Msg("config loaded with errors, continuing with defaults")
	}
	defer store.Close()

	reg := registry.New(log,
		registry.NewBuiltinSource(core.DefaultCatalog),
		registry.NewLuaSource(log, cfg.ModulePaths...),
	)
	b := bot.New(store, reg, log)

	if cfg.ConfigWatch {
		w, err := storage.NewWatcher(store, cfg.ConfigWatchInterval, log, b.RefreshLimits)
		if err != nil {
			log.Warn().Err(err).Msg("config watcher unavailable")
		} else if err := w.Start(); err != nil {
			log.Warn().Err(err).Msg("config watcher failed to start")
		} else {
			defer w.Stop()
		}
	}

	token := cfg.DiscordToken
	if token == "" {
		token = store.String("discordToken", "")
	}
	if token == "" || token == storage.TokenPlaceholder {
		return errors.New("no Discord token: set DISCORD_TOKEN or discordToken in " + store.Path())
	}

	return b.Run(ctx, discord.Dialer(token, log))
}
