package core

import (
	"errors"
	"sync"
)

// SessionExists is returned by Register for a duplicate session id.
var SessionExists = errors.New("session exists")

// DefaultRegistry will be used by a Session if its Options don't
// provide a Registry.
var DefaultRegistry = NewRegistry()

// MapRegistry is a simple Registry.
type MapRegistry struct {
	sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *MapRegistry {
	return &MapRegistry{
		sessions: make(map[string]*Session),
	}
}

func (r *MapRegistry) Register(s *Session) error {
	r.Lock()
	defer r.Unlock()
	if _, have := r.sessions[s.Id()]; have {
		return SessionExists
	}
	r.sessions[s.Id()] = s
	return nil
}

func (r *MapRegistry) Unregister(s *Session) {
	r.Lock()
	if r.sessions[s.Id()] == s {
		delete(r.sessions, s.Id())
	}
	r.Unlock()
}

func (r *MapRegistry) Lookup(id string) (*Session, bool) {
	r.RLock()
	s, have := r.sessions[id]
	r.RUnlock()
	return s, have
}

// Len returns the number of registered sessions.
func (r *MapRegistry) Len() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.sessions)
}
