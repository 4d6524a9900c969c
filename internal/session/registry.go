package session

import (
	"context"
	"sync"
)

// Mode selects what a session notifies on: the full stock dump or only
// the user's tracked favorites.
type Mode string

const (
	ModeFull      Mode = "full"
	ModeFavorites Mode = "favorites"
)

type sessionKey struct {
	UserID string
	Mode   Mode
}

// Session is one user's active polling subscription. lastKey and
// lastText are only touched by the session's own tick goroutine (ticks
// are serialized), but Refresh can race a tick, so they stay behind mu.
type Session struct {
	UserID string
	Mode   Mode

	ctx    context.Context
	cancel context.CancelFunc

	// tickMu serializes ticks: the background loop and Refresh both run
	// under it, so at most one tick per session is ever in flight.
	tickMu sync.Mutex

	mu       sync.Mutex
	lastKey  string
	lastText string
}

// Done exposes the session's cancellation signal.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Cancelled reports whether the session has been stopped.
func (s *Session) Cancelled() bool {
	return s.ctx.Err() != nil
}

func (s *Session) last() (key, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastKey, s.lastText
}

func (s *Session) setLastKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKey = key
}

func (s *Session) setLastText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastText = text
}

func (s *Session) resetLast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKey = ""
	s.lastText = ""
}

// Registry owns the session map. No component reaches into a bare
// shared map; all mutation goes through these guarded operations.
type Registry struct {
	mu       sync.Mutex
	sessions map[sessionKey]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[sessionKey]*Session),
	}
}

// Create registers a new session for (userID, mode). Returns nil and
// false when one already exists: one timer per user per mode, never
// two.
func (r *Registry) Create(parent context.Context, userID string, mode Mode) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionKey{UserID: userID, Mode: mode}
	if _, exists := r.sessions[key]; exists {
		return nil, false
	}

	ctx, cancel := context.WithCancel(parent)
	sess := &Session{
		UserID: userID,
		Mode:   mode,
		ctx:    ctx,
		cancel: cancel,
	}
	r.sessions[key] = sess
	return sess, true
}

func (r *Registry) Get(userID string, mode Mode) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[sessionKey{UserID: userID, Mode: mode}]
	return sess, ok
}

// Remove cancels the session's context before dropping the map entry,
// so an in-flight tick observes cancellation before it can notify or
// reschedule. Removing an already-removed session is a no-op.
func (r *Registry) Remove(userID string, mode Mode) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionKey{UserID: userID, Mode: mode}
	sess, ok := r.sessions[key]
	if !ok {
		return false
	}
	sess.cancel()
	delete(r.sessions, key)
	return true
}

// Alive reports whether the exact session instance is still registered.
// A tick that fires after removal uses this as its guard.
func (r *Registry) Alive(sess *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.sessions[sessionKey{UserID: sess.UserID, Mode: sess.Mode}]
	return ok && current == sess
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot copies the current session set so callers can iterate
// without holding the lock while sessions come and go.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	return out
}
