package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemStorage is a Storage that only lives in memory.  Handy for tests
// and for running without a database.
type MemStorage struct {
	sync.RWMutex
	docs     map[string][]byte
	sessions map[string]*SessionRecord
}

func NewMemStorage() *MemStorage {
	return &MemStorage{
		docs:     make(map[string][]byte),
		sessions: make(map[string]*SessionRecord),
	}
}

func (s *MemStorage) Open(ctx context.Context) error {
	return nil
}

func (s *MemStorage) Close(ctx context.Context) error {
	return nil
}

func (s *MemStorage) GetDocument(ctx context.Context, name string) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()
	src, have := s.docs[name]
	if !have {
		return nil, fmt.Errorf("document %s: %w", name, NotFound)
	}
	return append([]byte(nil), src...), nil
}

func (s *MemStorage) PutDocument(ctx context.Context, name string, src []byte) error {
	s.Lock()
	s.docs[name] = append([]byte(nil), src...)
	s.Unlock()
	return nil
}

func (s *MemStorage) RemDocument(ctx context.Context, name string) error {
	s.Lock()
	delete(s.docs, name)
	s.Unlock()
	return nil
}

func (s *MemStorage) ListDocuments(ctx context.Context) ([]string, error) {
	s.RLock()
	acc := make([]string, 0, len(s.docs))
	for name := range s.docs {
		acc = append(acc, name)
	}
	s.RUnlock()
	sort.Strings(acc)
	return acc, nil
}

func (s *MemStorage) WriteSession(ctx context.Context, r *SessionRecord) error {
	c := *r
	c.Final = append([]string(nil), r.Final...)
	s.Lock()
	s.sessions[r.Id] = &c
	s.Unlock()
	return nil
}

func (s *MemStorage) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	s.RLock()
	defer s.RUnlock()
	r, have := s.sessions[id]
	if !have {
		return nil, fmt.Errorf("session %s: %w", id, NotFound)
	}
	c := *r
	return &c, nil
}
