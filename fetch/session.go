package fetch

import (
	"sync"
	"time"

	"github.com/go-rod/rod"
)

// Session is one entry of §4.6's session registry: a browser context and
// page kept alive across multiple arun calls sharing the same session_id.
// A session's page is logically single-threaded — callers sharing a
// session_id must serialize their calls against Lock/Unlock.
type Session struct {
	ID           string
	Browser      *rod.Browser
	Page         *rod.Page
	CreatedAt    time.Time
	LastUsedAt   time.Time
	Tags         []string

	mu sync.Mutex
}

// Lock serializes access to the session's page. Every orchestrator call
// using this session must hold the lock for the duration of its fetch.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session's page lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// touch records that the session was just used, for idle-TTL accounting.
func (s *Session) touch() {
	s.mu.Lock()
	s.LastUsedAt = time.Now()
	s.mu.Unlock()
}

// SessionFactory creates a new browser context and page for a fresh
// session_id.
type SessionFactory func() (*rod.Browser, *rod.Page, error)

// SessionRegistry is the keyed store behind §4.6: session_id -> Session.
// Idle-TTL eviction is driven externally (a caller-supplied sweep interval)
// since the TTL itself is operational configuration, not part of this
// package's contract.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	factory  SessionFactory
	idleTTL  time.Duration
	stop     chan struct{}
}

// NewSessionRegistry builds a registry. If idleTTL and sweepInterval are
// both positive, a background goroutine evicts (and closes) sessions idle
// longer than idleTTL every sweepInterval.
func NewSessionRegistry(factory SessionFactory, idleTTL, sweepInterval time.Duration) *SessionRegistry {
	r := &SessionRegistry{
		sessions: make(map[string]*Session),
		factory:  factory,
		idleTTL:  idleTTL,
		stop:     make(chan struct{}),
	}
	if idleTTL > 0 && sweepInterval > 0 {
		go r.sweepLoop(sweepInterval)
	}
	return r
}

// Get looks up an existing session by ID, or creates a fresh one via the
// registry's factory. The returned session is touched (LastUsedAt
// refreshed) before being handed back.
func (r *SessionRegistry) Get(sessionID string) (*Session, error) {
	r.mu.Lock()
	if s, ok := r.sessions[sessionID]; ok {
		r.mu.Unlock()
		s.touch()
		return s, nil
	}
	r.mu.Unlock()

	browser, page, err := r.factory()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	s := &Session{
		ID:         sessionID,
		Browser:    browser,
		Page:       page,
		CreatedAt:  now,
		LastUsedAt: now,
	}

	r.mu.Lock()
	if existing, ok := r.sessions[sessionID]; ok {
		r.mu.Unlock()
		page.Close()
		existing.touch()
		return existing, nil
	}
	r.sessions[sessionID] = s
	r.mu.Unlock()
	return s, nil
}

// Kill closes and evicts a session by ID. No-op if the session doesn't
// exist.
func (r *SessionRegistry) Kill(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()
	if ok {
		s.mu.Lock()
		s.Page.Close()
		s.mu.Unlock()
	}
}

// Stop closes every tracked session and terminates the sweep goroutine.
func (r *SessionRegistry) Stop() {
	close(r.stop)
	r.mu.Lock()
	for id, s := range r.sessions {
		s.Page.Close()
		delete(r.sessions, id)
	}
	r.mu.Unlock()
}

func (r *SessionRegistry) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			now := time.Now()
			r.mu.Lock()
			for id, s := range r.sessions {
				s.mu.Lock()
				idle := now.Sub(s.LastUsedAt)
				s.mu.Unlock()
				if idle >= r.idleTTL {
					s.Page.Close()
					delete(r.sessions, id)
				}
			}
			r.mu.Unlock()
		}
	}
}
