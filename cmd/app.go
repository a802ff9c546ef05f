package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/philtim/timearchitect/alarm"
	"github.com/philtim/timearchitect/audio"
	"github.com/philtim/timearchitect/config"
	"github.com/philtim/timearchitect/events"
	"github.com/philtim/timearchitect/logger"
	"github.com/philtim/timearchitect/prefs"
	"github.com/philtim/timearchitect/session"
)

// app is what every command that drives the alarm needs.
type app struct {
	cfg     *config.Config
	store   *prefs.Store
	bus     *events.Bus
	session *session.Session
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newApp starts logging, opens the preference store and builds the
// session. console also sends log lines to stderr.
func newApp(ctx context.Context, cfg *config.Config, console bool) (*app, error) {
	if err := logger.Init(cfg.LogPath(), console); err != nil {
		return nil, err
	}
	logger.SetLevel(cfg.LogLevel)

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := prefs.Open(ctx, backend)
	if err != nil {
		return nil, fmt.Errorf("open preferences: %w", err)
	}

	reg, err := cfg.Registry()
	if err != nil {
		store.Close()
		return nil, err
	}

	bus := events.NewBus()
	return &app{
		cfg:     cfg,
		store:   store,
		bus:     bus,
		session: session.New(reg, store, newPlayer(cfg), bus, nil),
	}, nil
}

func (a *app) Close() error {
	err := a.store.Close()
	logger.Close()
	return err
}

func openBackend(ctx context.Context, cfg *config.Config) (prefs.Backend, error) {
	switch cfg.Preferences.Backend {
	case "sqlite":
		db, err := prefs.OpenSQLite(ctx, cfg.PreferencesPath())
		if err != nil {
			return nil, fmt.Errorf("open preferences database: %w", err)
		}
		return db, nil
	case "memory":
		return prefs.NewMemory(nil), nil
	default:
		return prefs.NewFile(cfg.PreferencesPath()), nil
	}
}

func newPlayer(cfg *config.Config) alarm.Player {
	switch cfg.Audio.Player {
	case "command":
		return audio.NewCommand(cfg.Audio.Command, cfg.SoundsPath())
	case "none":
		return audio.Silent{}
	default:
		return audio.NewBell(os.Stdout)
	}
}
