package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileProvider keeps the session in a JSON file written by `reviewsync login`.
type FileProvider struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	current Session
}

// NewFileProvider reads the session file at path. A missing file means
// logged out, not an error.
func NewFileProvider(path string, logger *slog.Logger) (*FileProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &FileProvider{path: path, logger: logger.With("component", "session")}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Path returns the session file location.
func (p *FileProvider) Path() string {
	return p.path
}

// Current implements Provider.
func (p *FileProvider) Current() (Session, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, p.current.Valid()
}

// Reload re-reads the session file.
func (p *FileProvider) Reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			p.set(Session{})
			return nil
		}
		return fmt.Errorf("session: read %s: %w", p.path, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return fmt.Errorf("session: parse %s: %w", p.path, err)
	}
	if sess.Username == "" && sess.Token != "" {
		if name, err := UsernameFromToken(sess.Token); err == nil {
			sess.Username = name
		} else {
			p.logger.Warn("session token carries no username", "error", err)
		}
	}
	p.set(sess)
	return nil
}

// Save writes sess to disk and makes it current.
func (p *FileProvider) Save(sess Session) error {
	if sess.Username == "" && sess.Token != "" {
		name, err := UsernameFromToken(sess.Token)
		if err != nil {
			return err
		}
		sess.Username = name
	}
	if !sess.Valid() {
		return fmt.Errorf("session: username and token are required")
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0750); err != nil {
		return fmt.Errorf("session: create dir: %w", err)
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0600); err != nil {
		return fmt.Errorf("session: write: %w", err)
	}
	p.set(sess)
	p.logger.Info("session saved", "user", Fingerprint(sess.Username))
	return nil
}

// Clear deletes the session file (logout). Pending reviews stay queued.
func (p *FileProvider) Clear() error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("session: remove: %w", err)
	}
	p.set(Session{})
	return nil
}

func (p *FileProvider) set(sess Session) {
	p.mu.Lock()
	p.current = sess
	p.mu.Unlock()
}
