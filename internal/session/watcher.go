package session

import (
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls the session file and reloads the provider when it changes.
// A login by another process therefore triggers the new owner's sync.
type Watcher struct {
	provider *FileProvider
	interval time.Duration
	logger   *slog.Logger
	onChange func(Session, bool)
	stop     chan struct{}
	once     sync.Once
	lastMod  time.Time
	present  bool
}

// NewWatcher creates a watcher. onChange receives the reloaded session.
func NewWatcher(provider *FileProvider, interval time.Duration, logger *slog.Logger, onChange func(Session, bool)) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		provider: provider,
		interval: interval,
		logger:   logger.With("component", "session-watcher"),
		onChange: onChange,
		stop:     make(chan struct{}),
	}
}

// Start begins polling in a goroutine.
func (w *Watcher) Start() {
	if info, err := os.Stat(w.provider.Path()); err == nil {
		w.lastMod = info.ModTime()
		w.present = true
	}
	go w.poll()
	w.logger.Debug("session watcher started", "path", w.provider.Path(), "interval", w.interval)
}

// Stop stops the watcher. It is safe to call more than once.
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
	info, err := os.Stat(w.provider.Path())
	present := err == nil

	changed := present != w.present
	if present && info.ModTime().After(w.lastMod) {
		changed = true
		w.lastMod = info.ModTime()
	}
	w.present = present
	if !changed {
		return
	}

	if err := w.provider.Reload(); err != nil {
		w.logger.Warn("session reload failed", "error", err)
		return
	}
	sess, ok := w.provider.Current()
	w.logger.Info("session changed", "user", Fingerprint(sess.Username), "authenticated", ok)
	if w.onChange != nil {
		w.onChange(sess, ok)
	}
}
