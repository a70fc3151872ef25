package queue

import (
	"fmt"
	"sync"

	"github.com/clawinfra/reviewsync/internal/review"
)

// Archive keeps records the sync engine gave up on, so they can be
// inspected or exported instead of retrying forever. Like Manager it reads
// its slot on every call, so `dead --requeue` from the CLI is not undone by
// a running daemon.
type Archive struct {
	mu    sync.Mutex
	store Persister
}

// NewArchive returns an archive over store.
func NewArchive(store Persister) *Archive {
	return &Archive{store: store}
}

// Add appends records and persists the archive.
func (a *Archive) Add(records ...review.Record) error {
	if len(records) == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	next := append(a.store.Load(), records...)
	if err := a.store.Save(next); err != nil {
		return fmt.Errorf("archive: persist: %w", err)
	}
	return nil
}

// List returns the archived records.
func (a *Archive) List() []review.Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	return clone(a.store.Load())
}

// Clear empties the archive.
func (a *Archive) Clear() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.Clear()
}
