package storage

import (
	"time"

	"github.com/agilira/argus"
	"github.com/rs/zerolog"
)

// Watcher reloads the tree when the config file is edited by hand while the
// bot runs. Writes made by the store itself are recognised by checksum and
// ignored.
type Watcher struct {
	store    *Storage
	watcher  *argus.Watcher
	log      zerolog.Logger
	onReload func()
}

func NewWatcher(store *Storage, interval time.Duration, logger zerolog.Logger, onReload func()) (*Watcher, error) {
	log := logger.With().Str("component", "config-watcher").Logger()

	w := &Watcher{
		store:    store,
		log:      log,
		onReload: onReload,
	}
	w.watcher = argus.New(argus.Config{
		PollInterval: interval,
		ErrorHandler: func(err error, path string) {
			log.Warn().Err(err).Str("file", path).Msg("config watch error")
		},
	})

	if err := w.watcher.Watch(store.Path(), w.handleChange); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Watcher) Start() error {
	w.log.Info().Str("file", w.store.Path()).Msg("watching config for external edits")
	return w.watcher.Start()
}

func (w *Watcher) Stop() error {
	return w.watcher.Stop()
}

func (w *Watcher) handleChange(event argus.ChangeEvent) {
	if event.IsDelete {
		w.log.Warn().Str("file", event.Path).Msg("config file removed, keeping in-memory tree")
		return
	}

	reloaded, err := w.store.Reload()
	if err != nil {
		w.log.Error().Err(err).Msg("failed to reload config")
		return
	}
	if reloaded {
		w.log.Info().Str("file", event.Path).Msg("config reloaded after external edit")
		if w.onReload != nil {
			w.onReload()
		}
	}
}
