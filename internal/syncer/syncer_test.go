package syncer

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/clawinfra/reviewsync/internal/client"
	"github.com/clawinfra/reviewsync/internal/notify"
	"github.com/clawinfra/reviewsync/internal/queue"
	"github.com/clawinfra/reviewsync/internal/review"
	"github.com/clawinfra/reviewsync/internal/session"
	"github.com/clawinfra/reviewsync/internal/store"
)

type fakeSubmitter struct {
	mu     sync.Mutex
	calls  []string
	tokens []string
	fail   func(lessonID string) error
}

func (f *fakeSubmitter) SubmitReview(_ context.Context, token, lessonID string, _ float64) error {
	f.mu.Lock()
	f.calls = append(f.calls, lessonID)
	f.tokens = append(f.tokens, token)
	fail := f.fail
	f.mu.Unlock()
	if fail != nil {
		return fail(lessonID)
	}
	return nil
}

func (f *fakeSubmitter) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type online bool

func (o online) Online() bool { return bool(o) }

var alice = session.Static{Username: "alice", Token: "alice-token"}

func newQueue(t *testing.T, records ...review.Record) *queue.Manager {
	t.Helper()
	q := queue.NewManager(store.New(store.NewMemorySlot(), store.QueueKey, nil), nil)
	for _, r := range records {
		if err := q.Add(r); err != nil {
			t.Fatalf("Add() error: %v", err)
		}
	}
	return q
}

func lessons(records []review.Record) []string {
	var out []string
	for _, r := range records {
		out = append(out, r.LessonID)
	}
	return out
}

func TestSyncSkips(t *testing.T) {
	tests := []struct {
		name     string
		records  []review.Record
		sessions session.Provider
		conn     Connectivity
		want     SkipReason
	}{
		{"empty", nil, alice, online(true), SkipEmpty},
		{"offline", []review.Record{review.New("L1", 0.5, "alice")}, alice, online(false), SkipOffline},
		{"logged out", []review.Record{review.New("L1", 0.5, "alice")}, session.Static{}, online(true), SkipUnauthenticated},
		{"other users only", []review.Record{review.New("L1", 0.5, "bob")}, alice, online(true), SkipNoUserRecords},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQueue(t, tt.records...)
			before := q.Records()
			sub := &fakeSubmitter{}
			rec := &notify.Recorder{}
			e := New(q, sub, tt.sessions, tt.conn, Config{Notifier: rec})

			res := e.Sync(context.Background())
			if res.Skipped != tt.want {
				t.Errorf("Skipped = %q, want %q", res.Skipped, tt.want)
			}
			if n := len(sub.Calls()); n != 0 {
				t.Errorf("expected no network calls, got %d", n)
			}
			if !reflect.DeepEqual(q.Records(), before) {
				t.Error("queue changed on a skipped pass")
			}
			if len(rec.All()) != 0 {
				t.Errorf("unexpected notifications %v", rec.All())
			}
		})
	}
}

func TestSyncAuthShortCircuit(t *testing.T) {
	q := newQueue(t,
		review.New("L1", 0.1, "alice"),
		review.New("L2", 0.2, "alice"),
		review.New("L3", 0.3, "alice"),
	)
	sub := &fakeSubmitter{fail: func(string) error {
		return &client.StatusError{StatusCode: http.StatusUnauthorized}
	}}
	rec := &notify.Recorder{}
	e := New(q, sub, alice, online(true), Config{Notifier: rec})

	res := e.Sync(context.Background())
	if len(sub.Calls()) != 1 {
		t.Fatalf("expected exactly 1 network call, got %v", sub.Calls())
	}
	if !res.AuthError || res.Requeued != 3 || res.Attempted != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if got := lessons(q.Records()); !reflect.DeepEqual(got, []string{"L1", "L2", "L3"}) {
		t.Errorf("queue = %v", got)
	}
	for _, r := range q.Records() {
		if r.Attempts != 0 {
			t.Errorf("authorization failure must not count as an attempt: %+v", r)
		}
	}
	if len(rec.Of(notify.KindAuthRequired)) != 1 {
		t.Error("expected a log-in-again notification")
	}
	if len(rec.Of(notify.KindSynced)) != 0 {
		t.Error("no success notification expected")
	}
}

func TestSyncForbiddenIsAuthorization(t *testing.T) {
	q := newQueue(t, review.New("L1", 0.1, "alice"), review.New("L2", 0.2, "alice"))
	sub := &fakeSubmitter{fail: func(string) error {
		return &client.StatusError{StatusCode: http.StatusForbidden}
	}}
	res := New(q, sub, alice, online(true), Config{}).Sync(context.Background())
	if !res.AuthError || len(sub.Calls()) != 1 || q.Len() != 2 {
		t.Errorf("unexpected result %+v calls=%v", res, sub.Calls())
	}
}

func TestSyncSuccessDrainsOnlyOwner(t *testing.T) {
	bob := review.New("B1", 0.4, "bob")
	q := newQueue(t,
		review.New("L1", 0.7, "alice"),
		bob,
		review.New("L2", 0.8, "alice"),
	)
	sub := &fakeSubmitter{}
	rec := &notify.Recorder{}
	e := New(q, sub, alice, online(true), Config{Notifier: rec})

	res := e.Sync(context.Background())
	if res.Succeeded != 2 || res.Requeued != 0 {
		t.Errorf("unexpected result %+v", res)
	}
	if got := sub.Calls(); !reflect.DeepEqual(got, []string{"L1", "L2"}) {
		t.Errorf("calls = %v, want queue order L1, L2", got)
	}
	for _, tok := range sub.tokens {
		if tok != "alice-token" {
			t.Errorf("unexpected token %q", tok)
		}
	}
	got := q.Records()
	if len(got) != 1 || !reflect.DeepEqual(got[0], bob) {
		t.Errorf("expected only bob's untouched record, got %+v", got)
	}
	synced := rec.Of(notify.KindSynced)
	if len(synced) != 1 || synced[0].Count != 2 {
		t.Errorf("unexpected synced notifications %v", synced)
	}
}

func TestSyncAliceAndBob(t *testing.T) {
	q := newQueue(t, review.New("L1", 0.7, "alice"), review.New("L1", 0.5, "bob"))
	e := New(q, &fakeSubmitter{}, alice, online(true), Config{})
	e.Sync(context.Background())

	got := q.Records()
	if len(got) != 1 || got[0].Username != "bob" {
		t.Errorf("expected exactly bob's record, got %+v", got)
	}
}

func TestSyncOtherFailuresAreNotShortCircuited(t *testing.T) {
	q := newQueue(t,
		review.New("L1", 0.1, "alice"),
		review.New("L2", 0.2, "alice"),
		review.New("L3", 0.3, "alice"),
	)
	sub := &fakeSubmitter{fail: func(id string) error {
		if id == "L2" {
			return &client.StatusError{StatusCode: http.StatusInternalServerError}
		}
		return nil
	}}
	rec := &notify.Recorder{}
	res := New(q, sub, alice, online(true), Config{Notifier: rec}).Sync(context.Background())

	if len(sub.Calls()) != 3 || res.Succeeded != 2 || res.Requeued != 1 {
		t.Errorf("unexpected result %+v calls=%v", res, sub.Calls())
	}
	got := q.Records()
	if len(got) != 1 || got[0].LessonID != "L2" || got[0].Attempts != 1 {
		t.Errorf("expected L2 requeued with one attempt, got %+v", got)
	}
	if len(rec.Of(notify.KindAuthRequired)) != 0 {
		t.Error("server error is not an auth problem")
	}
}

func TestSyncConnectivityFailureKeepsAttempts(t *testing.T) {
	q := newQueue(t, review.New("L1", 0.1, "alice"))
	sub := &fakeSubmitter{fail: func(string) error {
		return &client.ConnectivityError{Err: errors.New("connection reset")}
	}}
	e := New(q, sub, alice, online(true), Config{MaxAttempts: 1})

	for i := 0; i < 3; i++ {
		res := e.Sync(context.Background())
		if res.Requeued != 1 || res.Dropped != 0 {
			t.Fatalf("pass %d: unexpected result %+v", i, res)
		}
	}
	if got := q.Records(); len(got) != 1 || got[0].Attempts != 0 {
		t.Errorf("unexpected queue %+v", got)
	}
}

func TestSyncDeadLettersAtCeiling(t *testing.T) {
	q := newQueue(t, review.New("GONE", 0.1, "alice"), review.New("L2", 0.2, "bob"))
	archive := queue.NewArchive(store.New(store.NewMemorySlot(), store.DeadLetterKey, nil))
	sub := &fakeSubmitter{fail: func(string) error {
		return &client.StatusError{StatusCode: http.StatusNotFound, Body: "lesson not found"}
	}}
	rec := &notify.Recorder{}
	e := New(q, sub, alice, online(true), Config{MaxAttempts: 2, Archive: archive, Notifier: rec})

	if res := e.Sync(context.Background()); res.Requeued != 1 || res.Dropped != 0 {
		t.Fatalf("first pass: %+v", res)
	}
	res := e.Sync(context.Background())
	if res.Dropped != 1 || res.Requeued != 0 {
		t.Fatalf("second pass: %+v", res)
	}

	if got := lessons(q.Records()); !reflect.DeepEqual(got, []string{"L2"}) {
		t.Errorf("queue = %v, want only bob's record", got)
	}
	dead := archive.List()
	if len(dead) != 1 || dead[0].LessonID != "GONE" || dead[0].Attempts != 2 {
		t.Errorf("unexpected archive %+v", dead)
	}
	if len(rec.Of(notify.KindDropped)) != 1 {
		t.Error("expected a dropped notification")
	}
}

func TestSyncInFlightGuard(t *testing.T) {
	q := newQueue(t, review.New("L1", 0.1, "alice"))
	entered := make(chan struct{})
	release := make(chan struct{})
	sub := &fakeSubmitter{fail: func(string) error {
		close(entered)
		<-release
		return nil
	}}
	e := New(q, sub, alice, online(true), Config{})

	done := make(chan Result, 1)
	go func() { done <- e.Sync(context.Background()) }()
	<-entered

	if res := e.Sync(context.Background()); res.Skipped != SkipInFlight {
		t.Errorf("overlapping pass: %+v", res)
	}
	close(release)

	if res := <-done; res.Succeeded != 1 {
		t.Errorf("first pass: %+v", res)
	}
	if len(sub.Calls()) != 1 {
		t.Errorf("expected 1 call, got %v", sub.Calls())
	}
	if last, at := e.Last(); last.Succeeded != 1 || at.IsZero() {
		t.Errorf("Last() = %+v at %v", last, at)
	}
}

func TestSyncKeepsReviewsAddedDuringPass(t *testing.T) {
	q := newQueue(t, review.New("L1", 0.1, "alice"))
	var once sync.Once
	sub := &fakeSubmitter{}
	sub.fail = func(string) error {
		once.Do(func() {
			_ = q.Add(review.New("L9", 0.9, "alice"))
		})
		return nil
	}
	New(q, sub, alice, online(true), Config{}).Sync(context.Background())

	if got := lessons(q.Records()); !reflect.DeepEqual(got, []string{"L9"}) {
		t.Errorf("queue = %v, want the review added mid-pass", got)
	}
}

func TestSyncAfterClearDoesNotResurrect(t *testing.T) {
	q := newQueue(t, review.New("L1", 0.1, "alice"), review.New("L2", 0.2, "alice"))
	sub := &fakeSubmitter{}
	sub.fail = func(id string) error {
		if id == "L1" {
			_, _ = q.Clear()
		}
		return &client.StatusError{StatusCode: http.StatusBadGateway}
	}
	New(q, sub, alice, online(true), Config{}).Sync(context.Background())

	if q.Len() != 0 {
		t.Errorf("cleared queue was repopulated: %+v", q.Records())
	}
}

func TestKickAndRun(t *testing.T) {
	q := newQueue(t, review.New("L1", 0.1, "alice"))
	e := New(q, &fakeSubmitter{}, alice, online(true), Config{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopped := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(stopped)
	}()

	e.Kick()
	e.Kick()
	e.Kick()

	deadline := time.Now().Add(2 * time.Second)
	for q.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if q.Len() != 0 {
		t.Fatal("kicked pass did not drain the queue")
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConcurrentSyncsConverge(t *testing.T) {
	var records []review.Record
	for _, id := range []string{"L1", "L2", "L3", "L4"} {
		records = append(records, review.New(id, 0.5, "alice"))
	}
	records = append(records, review.New("B1", 0.5, "bob"))
	q := newQueue(t, records...)
	e := New(q, &fakeSubmitter{}, alice, online(true), Config{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Sync(context.Background())
		}()
	}
	wg.Wait()
	e.Sync(context.Background())

	if got := lessons(q.Records()); !reflect.DeepEqual(got, []string{"B1"}) {
		t.Errorf("queue = %v, want only bob's record", got)
	}
}

func TestSetMaxAttempts(t *testing.T) {
	q := newQueue(t, review.New("L1", 0.1, "alice"))
	sub := &fakeSubmitter{fail: func(string) error {
		return &client.StatusError{StatusCode: http.StatusBadRequest}
	}}
	e := New(q, sub, alice, online(true), Config{})

	e.Sync(context.Background())
	e.SetMaxAttempts(2)
	if res := e.Sync(context.Background()); res.Dropped != 1 {
		t.Errorf("expected drop at the lowered ceiling, got %+v", res)
	}
	if q.Len() != 0 {
		t.Error("dropped record should leave the queue even without an archive")
	}
}
