package config

import (
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls a config file and hot-reloads it into a live Config. After
// a reload that applied anything, onApply receives the result so the caller
// can reschedule jobs or change the log level.
type Watcher struct {
	cfg      *Config
	path     string
	interval time.Duration
	logger   *slog.Logger
	onApply  func(*ReloadResult)
	stop     chan struct{}
	once     sync.Once
	lastMod  time.Time
	badMod   time.Time
}

// NewWatcher creates a watcher for cfg, which was loaded from path.
func NewWatcher(cfg *Config, path string, interval time.Duration, logger *slog.Logger, onApply func(*ReloadResult)) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watcher{
		cfg:      cfg,
		path:     path,
		interval: interval,
		logger:   logger.With("component", "config-watcher"),
		onApply:  onApply,
		stop:     make(chan struct{}),
	}
}

// Start begins polling in a goroutine.
func (w *Watcher) Start() {
	if info, err := os.Stat(w.path); err == nil {
		w.lastMod = info.ModTime()
	}
	go w.poll()
	w.logger.Info("config watcher started", "path", w.path, "interval", w.interval)
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
	})
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		w.logger.Warn("cannot stat config file", "path", w.path, "error", err)
		return
	}
	if !info.ModTime().After(w.lastMod) {
		return
	}

	// lastMod only advances on success so a half-written file is retried.
	// A file that stays broken is reported once per modification.
	result, err := w.cfg.Reload(w.path)
	if err != nil {
		if info.ModTime().Equal(w.badMod) {
			w.logger.Debug("config still invalid", "error", err)
			return
		}
		w.badMod = info.ModTime()
		w.logger.Error("config reload failed", "error", err)
		return
	}
	w.lastMod = info.ModTime()
	w.badMod = time.Time{}
	result.LogResult(w.logger)
	if len(result.Applied) > 0 && w.onApply != nil {
		w.onApply(result)
	}
}
