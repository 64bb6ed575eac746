// Package session keeps conversation state in process memory.
package session

import (
	"sync"

	"github.com/rl1809/shopassist/internal/clock"
	"github.com/rl1809/shopassist/internal/core/domain"
)

type entry struct {
	mu      sync.Mutex
	session *domain.Session
}

// Store maps session ids to sessions. Turns for one id are serialized on
// that session's mutex; the map lock is held only for lookup and creation.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	clock    clock.Clock
}

func NewStore(clk clock.Clock) *Store {
	return &Store{
		sessions: make(map[string]*entry),
		clock:    clk,
	}
}

func (s *Store) entry(id string) *entry {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		return e
	}
	e = &entry{session: domain.NewSession(id, s.clock.Now())}
	s.sessions[id] = e
	return e
}

// GetOrCreate returns a snapshot of the session, creating it if needed.
func (s *Store) GetOrCreate(id string) domain.Session {
	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone()
}

func (s *Store) AppendHistory(id string, role domain.Role, text string) {
	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.AppendHistory(role, text, s.clock.Now())
}

// Do runs fn while holding the session's lock, creating the session if
// needed. fn must not retain the pointer after returning.
func (s *Store) Do(id string, fn func(*domain.Session)) {
	e := s.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.session)
}

func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
