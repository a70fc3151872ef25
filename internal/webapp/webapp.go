// Package webapp wires the review queue for the browser build: the queue
// lives in localStorage, connectivity comes from window events and the
// session is handed in by the host page.
//
// # Building for WASM
//
//	GOOS=js GOARCH=wasm go build -o dist/reviewsync.wasm ./cmd/reviewsync-wasm
//	cp $(go env GOROOT)/misc/wasm/wasm_exec.js dist/
//
// # JavaScript API
//
// After the module starts, a global reviewsync object is available:
//
//	reviewsync.start(configJSON)               → status JSON
//	reviewsync.login(token, username?)         → status JSON
//	reviewsync.logout()                        → status JSON
//	reviewsync.submitReview(lessonId, score)   → Promise<"delivered"|"queued">
//	reviewsync.isPending(lessonId)             → boolean
//	reviewsync.clear()                         → number of discarded reviews
//	reviewsync.sync()                          → Promise<result JSON>
//	reviewsync.status()                        → status JSON
//
// Notifications are delivered to window.reviewsyncNotify(kind, message, count)
// when the page defines it.
package webapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clawinfra/reviewsync/internal/client"
	"github.com/clawinfra/reviewsync/internal/connectivity"
	"github.com/clawinfra/reviewsync/internal/notify"
	"github.com/clawinfra/reviewsync/internal/queue"
	"github.com/clawinfra/reviewsync/internal/session"
	"github.com/clawinfra/reviewsync/internal/store"
	"github.com/clawinfra/reviewsync/internal/submit"
	"github.com/clawinfra/reviewsync/internal/syncer"
)

// Config is what the host page passes to reviewsync.start.
type Config struct {
	BaseURL        string `json:"baseUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
	Token          string `json:"token,omitempty"`
	Username       string `json:"username,omitempty"`
	MaxAttempts    int    `json:"maxAttempts,omitempty"`
	LogLevel       string `json:"logLevel,omitempty"`
}

// App is the browser-side runtime.
type App struct {
	cfg     Config
	logger  *slog.Logger
	session *session.Memory
	queue   *queue.Manager
	archive *queue.Archive
	monitor *connectivity.Monitor
	engine  *syncer.Engine
	service *submit.Service

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// New wires an app over slot. online is the platform-reported initial state.
func New(cfg Config, slot store.Slot, online bool, notifier notify.Notifier, logger *slog.Logger) (*App, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("webapp: baseUrl is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	notifier = notify.Multi(notify.LogNotifier{Logger: logger}, notifier)

	a := &App{
		cfg:     cfg,
		logger:  logger.With("platform", "wasm"),
		session: &session.Memory{},
	}
	if cfg.Token != "" {
		if err := a.session.Set(session.Session{Username: cfg.Username, Token: cfg.Token}); err != nil {
			return nil, err
		}
	}

	timeout := client.DefaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	api := client.New(cfg.BaseURL, timeout, a.logger)

	a.queue = queue.NewManager(store.New(slot, store.QueueKey, a.logger), a.logger)
	a.archive = queue.NewArchive(store.New(slot, store.DeadLetterKey, a.logger))
	a.monitor = connectivity.NewMonitor(online, func() { a.engine.Kick() }, a.logger)
	a.engine = syncer.New(a.queue, api, a.session, a.monitor, syncer.Config{
		MaxAttempts: cfg.MaxAttempts,
		Notifier:    notifier,
		Archive:     a.archive,
		Logger:      a.logger,
	})
	a.service = submit.New(a.queue, api, a.session, a.monitor, notifier, a.logger)
	return a, nil
}

// Start runs the sync loop and the given connectivity sources, then performs
// the startup check. Calling Start twice is a no-op.
func (a *App) Start(ctx context.Context, sources ...connectivity.Source) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return
	}
	ctx, a.cancel = context.WithCancel(ctx)
	a.running = true

	go a.engine.Run(ctx)
	if len(sources) > 0 {
		go func() {
			if err := a.monitor.Run(ctx, sources...); err != nil {
				a.logger.Warn("connectivity source failed", "error", err)
			}
		}()
	}
	a.monitor.Start()
	a.logger.Info("reviewsync started", "pending", a.queue.Len())
}

// Stop ends the sync loop and removes event listeners.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.running = false
}

// Login sets the session and triggers a sync for the new user.
func (a *App) Login(token, username string) error {
	if err := a.session.Set(session.Session{Username: username, Token: token}); err != nil {
		return err
	}
	a.engine.Kick()
	return nil
}

// Logout clears the session. Pending reviews stay queued.
func (a *App) Logout() {
	a.session.Clear()
}

// SubmitReview records a review, returning "delivered" or "queued".
func (a *App) SubmitReview(ctx context.Context, lessonID string, score float64) (string, error) {
	out, err := a.service.SubmitReview(ctx, lessonID, score)
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

// IsPending reports whether the current user has lessonID queued.
func (a *App) IsPending(lessonID string) bool {
	return a.service.IsPending(lessonID)
}

// Clear discards every queued review.
func (a *App) Clear() (int, error) {
	return a.service.ClearQueue()
}

// Sync runs one pass now.
func (a *App) Sync(ctx context.Context) syncer.Result {
	return a.engine.Sync(ctx)
}

// Status is the JSON shape returned to the page.
type Status struct {
	Running  bool   `json:"running"`
	Online   bool   `json:"online"`
	Username string `json:"username,omitempty"`
	Pending  int    `json:"pending"`
	Total    int    `json:"total"`
	Dead     int    `json:"dead"`
}

// Status returns the current state.
func (a *App) Status() Status {
	a.mu.Lock()
	running := a.running
	a.mu.Unlock()

	st := Status{
		Running: running,
		Online:  a.monitor.Online(),
		Pending: len(a.service.Pending()),
		Total:   a.queue.Len(),
		Dead:    len(a.archive.List()),
	}
	if sess, ok := a.session.Current(); ok {
		st.Username = sess.Username
	}
	return st
}

// StatusJSON is Status encoded for JavaScript.
func (a *App) StatusJSON() string {
	data, _ := json.Marshal(a.Status())
	return string(data)
}

func jsonError(msg string) string {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return string(data)
}
