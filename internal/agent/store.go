/*-------------------------------------------------------------------------
 *
 * Land Use Analytics Agent
 *
 * Copyright (c) 2025, the Land Use Analytics Agent authors
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"landuse-agent/internal/logging"
)

// ErrSessionBusy means the session is already processing a request. A
// session handles one request at a time; concurrent callers are refused
// rather than queued.
var ErrSessionBusy = errors.New("session is processing another request")

// Session is one conversation. All fields behind mu; the runner holds the
// busy flag for the duration of a request, which is what serializes access
// to History.
type Session struct {
	ID string

	mu         sync.Mutex
	busy       bool
	state      State
	history    []Turn
	lastActive time.Time
}

// State reports the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// History returns a copy of the session's turns.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// append adds a turn, trimming the history to the configured window. The
// trim cuts only at a user-turn boundary: an assistant tool-call turn and
// its tool results always leave the window together, so the history handed
// to the reasoner never opens with an orphaned tool result. The window may
// hold a few turns beyond the limit until an older boundary ages in.
func (s *Session) append(limit int, turns ...Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, turns...)
	if limit > 0 && len(s.history) > limit {
		cut := len(s.history) - limit
		for cut > 0 && s.history[cut].Role != RoleUser {
			cut--
		}
		s.history = s.history[cut:]
	}
	s.lastActive = time.Now()
}

// ClearHistory drops all turns but keeps the session alive.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	s.history = nil
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// Store owns the live sessions. Expired sessions are evicted lazily on
// access and by the background sweep; a busy session is never evicted, its
// eviction waits for the next sweep after the request finishes.
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*Session
}

// NewStore creates a session store with the given idle TTL.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// SetTTL replaces the idle TTL. The sweep interval stays as computed at
// startup; the new TTL applies from the next expiry check.
func (st *Store) SetTTL(ttl time.Duration) {
	st.mu.Lock()
	st.ttl = ttl
	st.mu.Unlock()
}

// GetOrCreate returns the session with the given id, creating it if the id
// is empty or unknown. An expired idle session is replaced by a fresh one
// under the same id.
func (st *Store) GetOrCreate(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if id != "" {
		if s, ok := st.sessions[id]; ok {
			if !st.expiredLocked(s) {
				return s
			}
			delete(st.sessions, id)
			logging.Debug("expired session replaced", "session_id", id)
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{ID: id, state: StateIdle, lastActive: time.Now()}
	st.sessions[id] = s
	return s
}

// Get returns the session if it exists and has not expired.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	if st.expiredLocked(s) {
		delete(st.sessions, id)
		return nil, false
	}
	return s, true
}

// Delete removes a session regardless of state.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Len reports how many sessions are live.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Acquire marks the session busy for one request. The caller must Release.
func (st *Store) Acquire(s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrSessionBusy
	}
	s.busy = true
	s.lastActive = time.Now()
	return nil
}

// Release clears the busy flag after a request.
func (st *Store) Release(s *Session) {
	s.mu.Lock()
	s.busy = false
	s.state = StateIdle
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// Run sweeps expired sessions until ctx is done. The sweep interval is a
// fraction of the TTL, floored so tests with tiny TTLs still behave.
func (st *Store) Run(ctx context.Context) {
	st.mu.Lock()
	interval := st.ttl / 4
	st.mu.Unlock()
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.sweep()
		}
	}
}

func (st *Store) sweep() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for id, s := range st.sessions {
		if st.expiredLocked(s) {
			delete(st.sessions, id)
			logging.Debug("session evicted", "session_id", id)
		}
	}
}

// expiredLocked requires st.mu held. Busy sessions never expire mid-request.
func (st *Store) expiredLocked(s *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.busy && time.Since(s.lastActive) > st.ttl
}
