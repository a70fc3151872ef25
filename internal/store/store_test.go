package store

import (
	"encoding/base64"
	"errors"
	"path/filepath"
	"testing"

	"github.com/clawinfra/reviewsync/internal/review"
)

func sampleRecords() []review.Record {
	return []review.Record{
		review.New("L1", 0.7, "alice"),
		review.New("L2", 0.4, "bob"),
	}
}

func TestLoadMissingSlot(t *testing.T) {
	s := New(NewMemorySlot(), QueueKey, nil)
	got := s.Load()
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil queue, got %#v", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	slot := NewMemorySlot()
	s := New(slot, QueueKey, nil)
	in := sampleRecords()
	if err := s.Save(in); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	raw, ok, _ := slot.Get(QueueKey)
	if !ok {
		t.Fatal("expected slot to be written")
	}
	if _, err := base64.StdEncoding.DecodeString(raw); err != nil {
		t.Errorf("expected obfuscated payload, got %q", raw)
	}

	out := s.Load()
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	if out[0].ID != in[0].ID || out[1].Username != "bob" {
		t.Errorf("unexpected records %+v", out)
	}
}

func TestLoadGarbageReturnsEmpty(t *testing.T) {
	for _, raw := range []string{"not json at all", "%%%", "{\"lessonId\":1}", "aGVsbG8="} {
		slot := NewMemorySlot()
		_ = slot.Set(QueueKey, raw)
		got := New(slot, QueueKey, nil).Load()
		if len(got) != 0 {
			t.Errorf("Load(%q) = %+v, want empty", raw, got)
		}
	}
}

func TestLoadLegacyPlainJSON(t *testing.T) {
	slot := NewMemorySlot()
	legacy := `[{"lessonId":"L1","performanceScore":0.7,"timestamp":1700000000000,"username":"alice"},` +
		`{"lessonId":"L9","performanceScore":0.2,"timestamp":"2024-01-02T03:04:05Z","username":"bob"}]`
	_ = slot.Set(QueueKey, legacy)

	got := New(slot, QueueKey, nil).Load()
	if len(got) != 2 {
		t.Fatalf("expected 2 legacy records, got %d", len(got))
	}
	if got[0].LessonID != "L1" || got[0].PerformanceScore != 0.7 || got[0].Username != "alice" {
		t.Errorf("unexpected first record %+v", got[0])
	}
	if got[1].Timestamp.Year() != 2024 {
		t.Errorf("unexpected second timestamp %v", got[1].Timestamp)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode("garbage"); !errors.Is(err, ErrUndecodable) {
		t.Errorf("expected ErrUndecodable, got %v", err)
	}
}

func TestEncodeNilIsEmptyArray(t *testing.T) {
	enc, err := Encode(nil)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	dec, _ := base64.StdEncoding.DecodeString(enc)
	if string(dec) != "[]" {
		t.Errorf("expected [], got %s", dec)
	}
}

func TestClearRemovesSlot(t *testing.T) {
	slot := NewMemorySlot()
	s := New(slot, QueueKey, nil)
	_ = s.Save(sampleRecords())
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, ok, _ := slot.Get(QueueKey); ok {
		t.Error("expected slot to be removed")
	}
}

type failingSlot struct{}

func (failingSlot) Get(string) (string, bool, error) { return "", false, errors.New("disk gone") }
func (failingSlot) Set(string, string) error         { return errors.New("disk gone") }
func (failingSlot) Remove(string) error              { return errors.New("disk gone") }

func TestLoadReadErrorReturnsEmpty(t *testing.T) {
	s := New(failingSlot{}, QueueKey, nil)
	if got := s.Load(); len(got) != 0 {
		t.Errorf("expected empty, got %+v", got)
	}
	if err := s.Save(sampleRecords()); err == nil {
		t.Error("expected Save() error")
	}
}

func TestFileSlotPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	slot, err := NewFileSlot(dir)
	if err != nil {
		t.Fatalf("NewFileSlot() error: %v", err)
	}
	if err := New(slot, QueueKey, nil).Save(sampleRecords()); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	reopened, err := NewFileSlot(dir)
	if err != nil {
		t.Fatalf("NewFileSlot() error: %v", err)
	}
	if got := New(reopened, QueueKey, nil).Load(); len(got) != 2 {
		t.Fatalf("expected 2 records after reopen, got %d", len(got))
	}

	if err := reopened.Remove(QueueKey); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if err := reopened.Remove(QueueKey); err != nil {
		t.Errorf("second Remove() should be a no-op, got %v", err)
	}
	if _, ok, _ := reopened.Get(QueueKey); ok {
		t.Error("expected key to be gone")
	}
}

func TestSQLiteSlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	slot, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}

	s := New(slot, QueueKey, nil)
	if err := s.Save(sampleRecords()); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if err := s.Save(sampleRecords()[:1]); err != nil {
		t.Fatalf("second Save() error: %v", err)
	}
	if err := slot.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()

	got := New(reopened, QueueKey, nil).Load()
	if len(got) != 1 || got[0].LessonID != "L1" {
		t.Fatalf("expected overwritten single record, got %+v", got)
	}
	if err := New(reopened, QueueKey, nil).Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, ok, _ := reopened.Get(QueueKey); ok {
		t.Error("expected key removed")
	}
}

func TestBrowserSlotUnavailable(t *testing.T) {
	if _, err := NewBrowserSlot(); !errors.Is(err, ErrNoBrowser) {
		t.Errorf("expected ErrNoBrowser, got %v", err)
	}
}
