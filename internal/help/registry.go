package help

import (
	"sync"
	"time"

	"github.com/tutorhall/livehelp/internal/logging"
)

// Registry is the process-wide table of live help sessions. It is
// explicitly constructed and injected; there is no package-level instance.
//
// The registry has its own lock, separate from any session's. Callers
// always resolve a session through the registry first and then operate on
// it, never the reverse, so the two locks cannot form a cycle.
type Registry struct {
	log  *logging.Logger
	idle time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry. Sessions whose last activity is
// older than the idle threshold are evicted by Sweep.
func NewRegistry(idle time.Duration, log *logging.Logger) *Registry {
	return &Registry{
		log:      log,
		idle:     idle,
		sessions: make(map[string]*Session),
	}
}

// Add registers the session under its ID. Adding a second session under
// an ID already in use is a logic error upstream; the registry logs a
// warning and overwrites the existing entry rather than failing.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID()]; exists {
		r.log.Warn().Str("session", s.ID()).Msg("session ID already registered, overwriting")
	}
	r.sessions[s.ID()] = s
}

// Remove unregisters the session if the stored entry is the same instance
// and closes it, so endpoints still bound to it are told to re-handshake.
// A stored entry under the same ID that is a different instance is left in
// place, so a caller holding a stale reference cannot evict its successor.
func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	stored, exists := r.sessions[s.ID()]
	if !exists {
		r.mu.Unlock()
		return
	}
	if stored != s {
		r.log.Warn().Str("session", s.ID()).Msg("remove skipped, registered session is a different instance")
		r.mu.Unlock()
		return
	}
	delete(r.sessions, s.ID())
	r.mu.Unlock()

	s.Close()
}

// Get returns the session registered under the given ID.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// GetByAcceptingStaff returns the first session whose accepting staff
// identity matches the given user ID. Linear scan over live sessions.
func (r *Registry) GetByAcceptingStaff(staffID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if staff, ok := s.AcceptingStaff(); ok && staff.ID == staffID {
			return s, true
		}
	}
	return nil, false
}

// All returns a copy of the live session list.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep evicts and closes every session whose last activity is older than
// the idle threshold and returns the number evicted. Safe to call
// concurrently with Add, Remove, and Get; an external scheduler drives it
// on a fixed interval. Closing happens after the registry lock is released.
func (r *Registry) Sweep(now time.Time) int {
	cutoff := now.Add(-r.idle)

	r.mu.Lock()
	var evicted []*Session
	for id, s := range r.sessions {
		if s.LastActivity().Before(cutoff) {
			delete(r.sessions, id)
			evicted = append(evicted, s)
			r.log.Info().Str("session", id).Msg("evicted idle session")
		}
	}
	r.mu.Unlock()

	for _, s := range evicted {
		s.Close()
	}
	return len(evicted)
}
