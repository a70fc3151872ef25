package dashboard

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/clawinfra/reviewsync/internal/cli"
	"github.com/clawinfra/reviewsync/internal/config"
	"github.com/clawinfra/reviewsync/internal/notify"
	"github.com/clawinfra/reviewsync/internal/session"
)

func newApp(t *testing.T, extra ...notify.Notifier) *cli.App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = "http://127.0.0.1:1"
	cfg.Storage.Backend = config.BackendMemory
	cfg.Storage.DataDir = t.TempDir()
	path := filepath.Join(t.TempDir(), "reviewsync.json")
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	app, err := cli.OpenApp(path, &bytes.Buffer{}, extra...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(app.Close)
	if err := app.Sessions.Save(session.Session{Username: "alice", Token: "tok"}); err != nil {
		t.Fatal(err)
	}
	return app
}

// step applies msg and runs the returned command once, feeding its result
// back in. Good enough for commands that are not batches or ticks.
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		return m
	}
	if out := cmd(); out != nil {
		next, _ = m.Update(out)
		m = next.(Model)
	}
	return m
}

func TestSubmitOfflineQueues(t *testing.T) {
	app := newApp(t)
	m := New(app, nil)
	m = step(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})

	m = step(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	if m.status.online {
		t.Fatal("ctrl+o should take the app offline")
	}

	m.input.SetValue("L12 0.8")
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if !app.Service.IsPending("L12") {
		t.Fatal("review should be queued")
	}
	if len(m.status.pending) != 1 {
		t.Errorf("status not refreshed: %+v", m.status)
	}
	if m.input.Value() != "" {
		t.Error("input should be cleared after submit")
	}
	view := m.View()
	for _, want := range []string{"offline", "alice", "L12", "queued"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestBadInputIsReported(t *testing.T) {
	m := New(newApp(t), nil)
	m = step(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m.input.SetValue("L1 lots")
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if len(m.entries) != 1 || !strings.Contains(m.entries[0], "not a number") {
		t.Errorf("unexpected entries %v", m.entries)
	}
	if m.input.Value() != "L1 lots" {
		t.Error("input should be kept for correction")
	}
}

func TestSyncWhileOfflineIsSkipped(t *testing.T) {
	app := newApp(t)
	m := New(app, nil)
	m = step(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	m.input.SetValue("L1 0.5")
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	m = step(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	if m.syncing {
		t.Error("syncing flag should reset when the pass finishes")
	}
	last := m.entries[len(m.entries)-1]
	if !strings.Contains(last, "sync skipped: offline") {
		t.Errorf("unexpected entry %q", last)
	}
	if app.Queue.Len() != 1 {
		t.Error("offline sync must leave the queue alone")
	}
}

func TestClearAndNotices(t *testing.T) {
	notifier, ch := Notices(8)
	app := newApp(t, notifier)
	m := New(app, ch)
	m = step(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	m = step(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})
	m.input.SetValue("L1 0.5")
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyCtrlX})
	if app.Queue.Len() != 0 {
		t.Fatal("queue should be cleared")
	}

	// saved_offline then cleared; the follow-up wait command is not run
	for _, kind := range []notify.Kind{notify.KindSavedOffline, notify.KindCleared} {
		next, cmd := m.Update(noticeMsg(<-ch))
		m = next.(Model)
		if cmd == nil {
			t.Error("expected a command waiting for the next notice")
		}
		if last := m.entries[len(m.entries)-1]; !strings.Contains(last, string(kind)) {
			t.Errorf("expected %s entry, got %q", kind, last)
		}
	}
}

func TestNoticesDropWhenFull(t *testing.T) {
	notifier, ch := Notices(1)
	notifier.Notify(notify.Notification{Kind: notify.KindSynced})
	notifier.Notify(notify.Notification{Kind: notify.KindCleared})
	if len(ch) != 1 {
		t.Errorf("expected 1 buffered notice, got %d", len(ch))
	}
}

func TestQuit(t *testing.T) {
	m := New(newApp(t), nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("esc should quit")
	}
}

func TestParseInput(t *testing.T) {
	if l, s, err := parseInput("  L1   0.25 "); err != nil || l != "L1" || s != 0.25 {
		t.Errorf("parseInput() = %q, %v, %v", l, s, err)
	}
	if _, _, err := parseInput("L1"); err == nil {
		t.Error("expected error for missing score")
	}
}
