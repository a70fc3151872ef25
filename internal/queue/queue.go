// Package queue holds the list of pending reviews and keeps it in step with
// the persisted store on every read and mutation.
package queue

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clawinfra/reviewsync/internal/review"
)

// Persister is the durable side of the queue. *store.Store satisfies it.
type Persister interface {
	Load() []review.Record
	Save(records []review.Record) error
	Clear() error
}

// Snapshot is a point-in-time copy of the queue handed to a sync pass.
type Snapshot struct {
	Records []review.Record
	epoch   uint64
}

// Manager owns the pending list. It is safe for concurrent use.
//
// The persisted slot is authoritative: every operation re-reads it, so
// records written by another process sharing the slot (the CLI next to a
// running daemon) are seen and never overwritten with a stale list.
type Manager struct {
	mu      sync.Mutex
	records []review.Record
	epoch   uint64 // bumped by Clear
	store   Persister
	logger  *slog.Logger
}

// NewManager loads the persisted list and returns a manager over it.
func NewManager(store Persister, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:  store,
		logger: logger.With("component", "queue"),
	}
	m.refresh()
	if len(m.records) > 0 {
		m.logger.Info("restored pending reviews", "count", len(m.records))
	}
	return m
}

// Add inserts r, replacing any pending record with the same lesson and user.
// If the write fails the queue is left as it was.
func (m *Manager) Add(r review.Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.refresh()
	if err := m.install(upsert(m.records, r)); err != nil {
		return err
	}
	m.logger.Debug("review queued", "lesson_id", r.LessonID, "pending", len(m.records))
	return nil
}

// IsPending reports whether a record exists for the lesson and user. It is
// always false for an empty username.
func (m *Manager) IsPending(lessonID, username string) bool {
	if username == "" {
		return false
	}
	key := review.Key{LessonID: lessonID, Username: username}
	for _, r := range m.Records() {
		if r.Key() == key {
			return true
		}
	}
	return false
}

// Clear drops every pending record and removes the persisted value. It
// returns how many records were discarded.
func (m *Manager) Clear() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refresh()
	n := len(m.records)
	if err := m.store.Clear(); err != nil {
		return 0, fmt.Errorf("queue: clear: %w", err)
	}
	m.records = nil
	m.epoch++
	m.logger.Info("queue cleared", "discarded", n)
	return n, nil
}

// Snapshot returns a copy of the current list. Sync passes must read the
// queue through this at the moment of use.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh()
	return Snapshot{Records: clone(m.records), epoch: m.epoch}
}

// Records returns a copy of the current list.
func (m *Manager) Records() []review.Record {
	return m.Snapshot().Records
}

// ForUser returns a copy of the records owned by username, in queue order.
func (m *Manager) ForUser(username string) []review.Record {
	owned, _ := review.Partition(m.Records(), username)
	return owned
}

// Len returns the number of pending records.
func (m *Manager) Len() int {
	return len(m.Records())
}

// ReplaceAfterSync installs others followed by failed as the new list and
// persists it. Only records still present in the slot are kept, so anything
// cleared or replaced since snap was taken stays gone; records added since
// are carried over on top (a newer record for the same lesson and user wins).
func (m *Manager) ReplaceAfterSync(snap Snapshot, failed, others []review.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.epoch != m.epoch {
		m.logger.Info("queue cleared during sync, discarding pass result")
		return nil
	}
	m.refresh()

	present := make(map[string]struct{}, len(m.records))
	for _, r := range m.records {
		present[r.ID] = struct{}{}
	}
	taken := make(map[string]struct{}, len(snap.Records))
	for _, r := range snap.Records {
		taken[r.ID] = struct{}{}
	}

	next := make([]review.Record, 0, len(others)+len(failed))
	for _, group := range [][]review.Record{others, failed} {
		for _, r := range group {
			if _, ok := present[r.ID]; ok {
				next = append(next, r)
			}
		}
	}
	for _, r := range m.records {
		if _, ok := taken[r.ID]; !ok {
			next = upsert(next, r)
		}
	}
	return m.install(next)
}

// refresh re-reads the slot. Must be called with the lock held.
func (m *Manager) refresh() {
	records := m.store.Load()
	for i := range records {
		// Records written by older clients carry no id.
		if records[i].ID == "" {
			records[i].ID = legacyID(records[i])
		}
	}
	m.records = dedupe(records)
}

// install persists next and makes it current. On failure the previous list
// stays current. Must be called with the lock held.
func (m *Manager) install(next []review.Record) error {
	if err := m.store.Save(next); err != nil {
		m.logger.Error("persist queue failed", "error", err)
		return fmt.Errorf("queue: persist: %w", err)
	}
	m.records = next
	return nil
}

// legacyID derives a stable id for a record written without one, so every
// reader of the slot agrees on it before it is first rewritten.
func legacyID(r review.Record) string {
	name := r.LessonID + "\x00" + r.Username + "\x00" + r.Timestamp.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func upsert(records []review.Record, r review.Record) []review.Record {
	key := r.Key()
	out := records[:0:0]
	for _, existing := range records {
		if existing.Key() != key {
			out = append(out, existing)
		}
	}
	return append(out, r)
}

func dedupe(records []review.Record) []review.Record {
	var out []review.Record
	for _, r := range records {
		out = upsert(out, r)
	}
	return out
}

func clone(records []review.Record) []review.Record {
	out := make([]review.Record, len(records))
	copy(out, records)
	return out
}
