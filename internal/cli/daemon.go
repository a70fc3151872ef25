package cli

import (
	"context"
	"sync"

	"github.com/clawinfra/reviewsync/internal/config"
	"github.com/clawinfra/reviewsync/internal/scheduler"
	"github.com/clawinfra/reviewsync/internal/session"
)

// Run keeps the queue draining until ctx is done: connectivity sources and
// the session file drive syncs, backed by a periodic schedule. Config edits
// to the log level, schedule and retry ceiling apply without a restart.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Engine.Run(ctx)
	}()

	sched := scheduler.New(a.Logger)
	if a.Config.Sync.Schedule != "" {
		if err := sched.AddSync(a.Config.Sync.Schedule, a.Engine.Kick); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	sw := session.NewWatcher(a.Sessions, a.Config.WatchInterval(), a.Logger, func(_ session.Session, ok bool) {
		if ok {
			a.Engine.Kick()
		}
	})
	sw.Start()
	defer sw.Stop()

	cw := config.NewWatcher(a.Config, a.ConfigPath, 0, a.Logger, func(r *config.ReloadResult) {
		a.applyReload(r, sched)
	})
	cw.Start()
	defer cw.Stop()

	if sources := a.Sources(); len(sources) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.Monitor.Run(ctx, sources...); err != nil {
				a.Logger.Warn("connectivity monitor stopped", "error", err)
			}
		}()
	}
	a.Monitor.Start()

	a.Logger.Info("reviewsync running",
		"api", a.Config.API.BaseURL,
		"storage", a.Config.Storage.Backend,
		"pending", a.Queue.Len(),
		"schedule", a.Config.Sync.Schedule)

loop:
	for {
		select {
		case <-a.reloadCh():
			if err := a.reload(sched); err != nil {
				a.Logger.Error("config reload failed", "error", err)
			}
		case <-ctx.Done():
			break loop
		}
	}
	cancel()
	wg.Wait()
	a.Logger.Info("reviewsync stopped")
	return nil
}

// RequestReload asks a running daemon to re-read its config file now.
func (a *App) RequestReload() {
	select {
	case a.reloadCh() <- struct{}{}:
	default:
	}
}

func (a *App) reloadCh() chan struct{} {
	a.reloadOnce.Do(func() { a.reloadReq = make(chan struct{}, 1) })
	return a.reloadReq
}

func (a *App) reload(sched *scheduler.Scheduler) error {
	result, err := a.Config.Reload(a.ConfigPath)
	if err != nil {
		return err
	}
	result.LogResult(a.Logger)
	a.applyReload(result, sched)
	return nil
}

func (a *App) applyReload(r *config.ReloadResult, sched *scheduler.Scheduler) {
	config.RLock()
	defer config.RUnlock()

	if r.Has("LogLevel") {
		if lvl, err := config.ParseLevel(a.Config.LogLevel); err == nil {
			a.Level.Set(lvl)
		}
	}
	if r.Has("Sync.MaxAttempts") {
		a.Engine.SetMaxAttempts(a.Config.Sync.MaxAttempts)
	}
	if r.Has("Sync.Schedule") && sched != nil {
		if a.Config.Sync.Schedule == "" {
			sched.Remove(scheduler.SyncJob)
			return
		}
		if err := sched.AddSync(a.Config.Sync.Schedule, a.Engine.Kick); err != nil {
			a.Logger.Error("reschedule sync failed", "error", err)
		}
	}
}
