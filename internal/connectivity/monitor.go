// Package connectivity tracks whether the network is reachable and fires a
// sync whenever the app comes (back) online or regains focus.
package connectivity

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Signal is a raw connectivity event from the environment.
type Signal int

const (
	SignalOnline Signal = iota
	SignalOffline
	SignalVisible
	SignalFocus
)

func (s Signal) String() string {
	switch s {
	case SignalOnline:
		return "online"
	case SignalOffline:
		return "offline"
	case SignalVisible:
		return "visible"
	case SignalFocus:
		return "focus"
	default:
		return "unknown"
	}
}

// Event carries a signal plus what the environment currently reports for
// reachability. ReportedOnline only matters for Visible and Focus.
type Event struct {
	Signal         Signal
	ReportedOnline bool
}

// Source produces events until ctx is done.
type Source interface {
	Name() string
	Run(ctx context.Context, emit func(Event)) error
}

// Monitor holds the online flag. It is the only writer of that flag.
type Monitor struct {
	mu          sync.RWMutex
	online      bool
	onReconnect func()
	listeners   []func(bool)
	logger      *slog.Logger
}

// NewMonitor creates a monitor. onReconnect is called each time the app
// becomes or is confirmed online; it must not block.
func NewMonitor(initialOnline bool, onReconnect func(), logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		online:      initialOnline,
		onReconnect: onReconnect,
		logger:      logger.With("component", "connectivity"),
	}
}

// Online reports the current flag.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Subscribe registers fn to be called with the new value whenever the flag
// flips.
func (m *Monitor) Subscribe(fn func(online bool)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Start performs the startup check: if already online, trigger a sync.
func (m *Monitor) Start() {
	if m.Online() {
		m.logger.Debug("online at startup")
		m.reconnected()
	}
}

// Handle applies one event.
func (m *Monitor) Handle(ev Event) {
	switch ev.Signal {
	case SignalOnline:
		m.set(true)
		m.reconnected()
	case SignalOffline:
		m.set(false)
	case SignalVisible, SignalFocus:
		if ev.ReportedOnline {
			m.set(true)
			m.reconnected()
		}
	}
}

// Run drives every source concurrently until ctx is done. A failing source
// does not stop the others; the first error is returned once all exit.
func (m *Monitor) Run(ctx context.Context, sources ...Source) error {
	var g errgroup.Group
	for _, src := range sources {
		g.Go(func() error {
			m.logger.Info("connectivity source started", "source", src.Name())
			err := src.Run(ctx, m.Handle)
			if err != nil && ctx.Err() == nil {
				m.logger.Warn("connectivity source stopped", "source", src.Name(), "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func (m *Monitor) set(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	listeners := append([]func(bool){}, m.listeners...)
	m.mu.Unlock()

	if !changed {
		return
	}
	m.logger.Info("connectivity changed", "online", online)
	for _, fn := range listeners {
		fn(online)
	}
}

func (m *Monitor) reconnected() {
	if m.onReconnect != nil {
		m.onReconnect()
	}
}
