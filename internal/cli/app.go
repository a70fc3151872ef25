package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/clawinfra/reviewsync/internal/client"
	"github.com/clawinfra/reviewsync/internal/config"
	"github.com/clawinfra/reviewsync/internal/connectivity"
	"github.com/clawinfra/reviewsync/internal/notify"
	"github.com/clawinfra/reviewsync/internal/queue"
	"github.com/clawinfra/reviewsync/internal/session"
	"github.com/clawinfra/reviewsync/internal/store"
	"github.com/clawinfra/reviewsync/internal/submit"
	"github.com/clawinfra/reviewsync/internal/syncer"
)

// App holds all the runtime components
type App struct {
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger
	Level      *slog.LevelVar

	Queue    *queue.Manager
	Archive  *queue.Archive
	Sessions *session.FileProvider
	Client   *client.Client
	Monitor  *connectivity.Monitor
	Engine   *syncer.Engine
	Service  *submit.Service
	Notices  *notify.Recorder

	closers    []io.Closer
	reloadOnce sync.Once
	reloadReq  chan struct{}
}

// OpenApp loads the config (creating a default one if missing) and wires
// the queue, sync engine and submission service. Logs go to logOut as text.
func OpenApp(configPath string, logOut io.Writer, extra ...notify.Notifier) (*App, error) {
	return OpenAppWithHandler(configPath, func(opts *slog.HandlerOptions) slog.Handler {
		return slog.NewTextHandler(logOut, opts)
	}, extra...)
}

// OpenAppWithHandler is OpenApp with a caller-chosen log handler. The
// options carry the level, which follows the config's logLevel.
func OpenAppWithHandler(configPath string, newHandler func(*slog.HandlerOptions) slog.Handler, extra ...notify.Notifier) (*App, error) {
	level := new(slog.LevelVar)
	logger := slog.New(newHandler(&slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	lvl, _ := config.ParseLevel(cfg.LogLevel)
	level.Set(lvl)

	app := &App{
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     logger,
		Level:      level,
		Notices:    &notify.Recorder{},
	}

	slot, err := app.openSlot()
	if err != nil {
		return nil, err
	}
	app.Queue = queue.NewManager(store.New(slot, store.QueueKey, logger), logger)
	app.Archive = queue.NewArchive(store.New(slot, store.DeadLetterKey, logger))

	app.Sessions, err = session.NewFileProvider(cfg.SessionPath(), logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Client = client.New(cfg.API.BaseURL, cfg.Timeout(), logger)

	notifier := notify.Multi(append([]notify.Notifier{notify.LogNotifier{Logger: logger}, app.Notices}, extra...)...)

	app.Monitor = connectivity.NewMonitor(cfg.Connectivity.AssumeOnline, func() { app.Engine.Kick() }, logger)
	app.Engine = syncer.New(app.Queue, app.Client, app.Sessions, app.Monitor, syncer.Config{
		MaxAttempts: cfg.Sync.MaxAttempts,
		Notifier:    notifier,
		Archive:     app.Archive,
		Logger:      logger,
	})
	app.Service = submit.New(app.Queue, app.Client, app.Sessions, app.Monitor, notifier, logger)
	return app, nil
}

func (a *App) openSlot() (store.Slot, error) {
	switch a.Config.Storage.Backend {
	case config.BackendSQLite:
		slot, err := store.OpenSQLite(a.Config.SQLitePath())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, slot)
		return slot, nil
	case config.BackendMemory:
		return store.NewMemorySlot(), nil
	default:
		return store.NewFileSlot(a.Config.Storage.DataDir)
	}
}

// Sources builds the connectivity sources enabled in the config.
func (a *App) Sources() []connectivity.Source {
	var sources []connectivity.Source
	c := a.Config.Connectivity
	if c.MQTT.Enabled {
		sources = append(sources, connectivity.NewMQTTSource(connectivity.MQTTConfig{
			Broker:   c.MQTT.Host,
			Port:     c.MQTT.Port,
			Username: c.MQTT.Username,
			Password: c.MQTT.Password,
			Retry:    time.Duration(c.MQTT.RetrySeconds) * time.Second,
		}))
	}
	if c.WebSocket.Enabled {
		sources = append(sources, connectivity.NewWSSource(c.WebSocket.URL, time.Duration(c.WebSocket.RetrySeconds)*time.Second))
	}
	return sources
}

// Close releases the storage backend.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.Logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

// loadConfig loads configuration from file or creates default
func loadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("no config found, creating default", "path", path)
			cfg = config.DefaultConfig()
			if err := cfg.Save(path); err != nil {
				return nil, fmt.Errorf("save default config: %w", err)
			}
			if err := os.MkdirAll(cfg.Storage.DataDir, 0750); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}
