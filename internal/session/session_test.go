package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func TestStatic(t *testing.T) {
	if _, ok := (Static{}).Current(); ok {
		t.Error("zero Static should be logged out")
	}
	sess, ok := Static{Username: "alice", Token: "t"}.Current()
	if !ok || sess.Username != "alice" {
		t.Errorf("unexpected session %+v ok=%v", sess, ok)
	}
	if _, ok := (Static{Username: "alice"}).Current(); ok {
		t.Error("session without token should not be valid")
	}
}

func TestUsernameFromToken(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   string
	}{
		{"username", jwt.MapClaims{"username": "alice", "sub": "42"}, "alice"},
		{"preferred", jwt.MapClaims{"preferred_username": "bob"}, "bob"},
		{"subject", jwt.MapClaims{"sub": "carol"}, "carol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UsernameFromToken(signedToken(t, tt.claims))
			if err != nil {
				t.Fatalf("UsernameFromToken() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := UsernameFromToken(signedToken(t, jwt.MapClaims{"role": "x"})); !errors.Is(err, ErrNoUsername) {
		t.Errorf("expected ErrNoUsername, got %v", err)
	}
	if _, err := UsernameFromToken("not-a-jwt"); err == nil {
		t.Error("expected parse error")
	}
}

func TestExpiresAt(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok := signedToken(t, jwt.MapClaims{"sub": "alice", "exp": exp.Unix()})
	if got := ExpiresAt(tok); !got.Equal(exp) {
		t.Errorf("ExpiresAt() = %v, want %v", got, exp)
	}
	if !ExpiresAt("garbage").IsZero() {
		t.Error("expected zero time for garbage")
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("alice")
	if a == "" || a == "alice" || len(a) != 12 {
		t.Errorf("unexpected fingerprint %q", a)
	}
	if a != Fingerprint("alice") {
		t.Error("fingerprint must be stable")
	}
	if a == Fingerprint("bob") {
		t.Error("fingerprints should differ")
	}
	if Fingerprint("") != "" {
		t.Error("empty username should have empty fingerprint")
	}
}

func TestFileProviderLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	p, err := NewFileProvider(path, nil)
	if err != nil {
		t.Fatalf("NewFileProvider() error: %v", err)
	}
	if _, ok := p.Current(); ok {
		t.Error("expected logged out without a file")
	}

	tok := signedToken(t, jwt.MapClaims{"username": "alice"})
	if err := p.Save(Session{Token: tok}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	sess, ok := p.Current()
	if !ok || sess.Username != "alice" {
		t.Fatalf("expected alice from token claims, got %+v", sess)
	}

	reopened, err := NewFileProvider(path, nil)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	if sess, ok := reopened.Current(); !ok || sess.Username != "alice" || sess.Token != tok {
		t.Errorf("unexpected reopened session %+v", sess)
	}

	if err := reopened.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, ok := reopened.Current(); ok {
		t.Error("expected logged out after Clear")
	}
	if err := reopened.Clear(); err != nil {
		t.Errorf("second Clear() error: %v", err)
	}
}

func TestFileProviderSaveRejectsIncomplete(t *testing.T) {
	p, _ := NewFileProvider(filepath.Join(t.TempDir(), "session.json"), nil)
	if err := p.Save(Session{Username: "alice"}); err == nil {
		t.Error("expected error without token")
	}
	if err := p.Save(Session{Token: "opaque"}); err == nil {
		t.Error("expected error for opaque token without username")
	}
}

func TestFileProviderCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	_ = os.WriteFile(path, []byte("{broken"), 0600)
	if _, err := NewFileProvider(path, nil); err == nil {
		t.Error("expected parse error")
	}
}

func TestWatcherReportsLogin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	p, _ := NewFileProvider(path, nil)

	changes := make(chan Session, 4)
	w := NewWatcher(p, 10*time.Millisecond, nil, func(s Session, ok bool) {
		if ok {
			changes <- s
		}
	})
	w.Start()
	defer w.Stop()

	writer, _ := NewFileProvider(path, nil)
	if err := writer.Save(Session{Username: "bob", Token: "t"}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	select {
	case s := <-changes:
		if s.Username != "bob" {
			t.Errorf("expected bob, got %+v", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not report the new session")
	}

	if sess, ok := p.Current(); !ok || sess.Username != "bob" {
		t.Errorf("provider not reloaded: %+v", sess)
	}
	w.Stop()
}

func TestMemoryProvider(t *testing.T) {
	var m Memory
	if _, ok := m.Current(); ok {
		t.Error("zero Memory should be logged out")
	}
	if err := m.Set(Session{Token: signedToken(t, jwt.MapClaims{"sub": "dana"})}); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if sess, ok := m.Current(); !ok || sess.Username != "dana" {
		t.Errorf("unexpected session %+v", sess)
	}
	if err := m.Set(Session{Token: "opaque"}); err == nil {
		t.Error("expected error for opaque token without username")
	}
	m.Clear()
	if _, ok := m.Current(); ok {
		t.Error("expected logged out after Clear")
	}
}
