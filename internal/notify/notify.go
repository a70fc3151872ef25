// Package notify carries user-visible sync feedback out of the core. The UI
// decides how a notification looks; the core only says what happened.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Kind identifies a notification.
type Kind string

const (
	// KindSynced reports how many queued reviews were delivered.
	KindSynced Kind = "synced"
	// KindAuthRequired asks the user to log in again.
	KindAuthRequired Kind = "auth_required"
	// KindSavedOffline confirms a review was queued for later delivery.
	KindSavedOffline Kind = "saved_offline"
	// KindCleared confirms the user emptied the queue.
	KindCleared Kind = "cleared"
	// KindDropped reports reviews moved to the dead-letter archive.
	KindDropped Kind = "dropped"
)

// Notification is one piece of feedback.
type Notification struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}

// Notifier receives notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier.
type Func func(Notification)

// Notify implements Notifier.
func (f Func) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {})

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (l LogNotifier) Notify(n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Kind == KindAuthRequired || n.Kind == KindDropped {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, n.Message, "kind", string(n.Kind), "count", n.Count)
}

// Multi fans a notification out to several notifiers in order.
func Multi(notifiers ...Notifier) Notifier {
	return Func(func(n Notification) {
		for _, nt := range notifiers {
			if nt != nil {
				nt.Notify(n)
			}
		}
	})
}

// Recorder keeps every notification it receives. Useful for status views
// and tests.
type Recorder struct {
	mu   sync.Mutex
	seen []Notification
}

// Notify implements Notifier.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.seen = append(r.seen, n)
	r.mu.Unlock()
}

// All returns a copy of what was recorded.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.seen))
	copy(out, r.seen)
	return out
}

// Of returns the recorded notifications of one kind.
func (r *Recorder) Of(kind Kind) []Notification {
	var out []Notification
	for _, n := range r.All() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}
