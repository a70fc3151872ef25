package session

import "sync"

// Memory is a mutable in-process session, for hosts that receive the token
// from their own login flow (the browser build).
type Memory struct {
	mu   sync.RWMutex
	sess Session
}

// Current implements Provider.
func (m *Memory) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sess, m.sess.Valid()
}

// Set replaces the session. An empty username is read from the token.
func (m *Memory) Set(sess Session) error {
	if sess.Username == "" && sess.Token != "" {
		name, err := UsernameFromToken(sess.Token)
		if err != nil {
			return err
		}
		sess.Username = name
	}
	m.mu.Lock()
	m.sess = sess
	m.mu.Unlock()
	return nil
}

// Clear logs out.
func (m *Memory) Clear() {
	m.mu.Lock()
	m.sess = Session{}
	m.mu.Unlock()
}
