// Package store persists the pending review list into a single key/value
// slot. The value is base64-encoded JSON: obfuscated against casual edits,
// not encrypted.
//
// Three slot backends are provided for native builds (file, SQLite, memory)
// plus a localStorage slot for js/wasm builds. All of them satisfy Slot.
package store

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clawinfra/reviewsync/internal/review"
)

// Default slot keys.
const (
	QueueKey      = "reviewsync.queue"
	DeadLetterKey = "reviewsync.deadletter"
)

var (
	// ErrUndecodable is returned by Decode when the payload is neither the
	// obfuscated form nor plain JSON.
	ErrUndecodable = errors.New("store: undecodable payload")
	// ErrNoBrowser is returned by the localStorage slot outside a browser.
	ErrNoBrowser = errors.New("store: localStorage unavailable")
)

// Slot is a synchronous string key/value persistence slot.
type Slot interface {
	// Get returns the stored value and whether the key was present.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// Store reads and writes the full record list of one slot key.
type Store struct {
	slot   Slot
	key    string
	logger *slog.Logger
}

// New creates a store over slot under key.
func New(slot Slot, key string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		slot:   slot,
		key:    key,
		logger: logger.With("component", "store", "key", key),
	}
}

// Key returns the slot key this store writes to.
func (s *Store) Key() string {
	return s.key
}

// Load returns the persisted records. It never fails: a missing, unreadable
// or corrupt slot yields an empty list.
func (s *Store) Load() []review.Record {
	raw, ok, err := s.slot.Get(s.key)
	if err != nil {
		s.logger.Warn("read slot failed, starting with empty queue", "error", err)
		return []review.Record{}
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return []review.Record{}
	}

	records, err := Decode(raw)
	if err != nil {
		s.logger.Warn("discarding unreadable queue payload", "error", err, "bytes", len(raw))
		return []review.Record{}
	}
	return records
}

// Save replaces the slot value with the encoded records.
func (s *Store) Save(records []review.Record) error {
	encoded, err := Encode(records)
	if err != nil {
		return err
	}
	if err := s.slot.Set(s.key, encoded); err != nil {
		return fmt.Errorf("store: write %s: %w", s.key, err)
	}
	return nil
}

// Clear removes the slot value entirely.
func (s *Store) Clear() error {
	if err := s.slot.Remove(s.key); err != nil {
		return fmt.Errorf("store: remove %s: %w", s.key, err)
	}
	return nil
}

// Encode serializes records to JSON and applies the base64 obfuscation.
func Encode(records []review.Record) (string, error) {
	if records == nil {
		records = []review.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("store: marshal records: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Decode reverses Encode. Payloads written before obfuscation existed are
// plain JSON arrays and are accepted as-is.
func Decode(raw string) ([]review.Record, error) {
	raw = strings.TrimSpace(raw)

	if data, err := base64.StdEncoding.DecodeString(raw); err == nil {
		var records []review.Record
		if err := json.Unmarshal(data, &records); err == nil {
			return nonNil(records), nil
		}
	}

	var records []review.Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return nonNil(records), nil
}

func nonNil(records []review.Record) []review.Record {
	if records == nil {
		return []review.Record{}
	}
	return records
}
