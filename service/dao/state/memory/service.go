// Package memory implements an in-memory execution-state store. All
// operations are thread-safe and exchange copies of the stored records so
// callers can mutate what they get back without racing the store.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/chatflow/chatflow/internal/clock"
	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/service/dao"
)

// Service keeps execution state per conversation unique id.
type Service struct {
	states    map[string]*model.ExecutionState
	retention time.Duration
	mux       sync.RWMutex
}

var _ dao.Service[string, model.ExecutionState] = (*Service)(nil)

// Option customises the store.
type Option func(*Service)

// WithRetention drops records older than ttl at read time. Zero keeps
// records forever.
func WithRetention(ttl time.Duration) Option {
	return func(s *Service) { s.retention = ttl }
}

// New creates an in-memory state store.
func New(options ...Option) *Service {
	s := &Service{states: map[string]*model.ExecutionState{}}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Save persists a clone of the supplied state.
func (s *Service) Save(_ context.Context, state *model.ExecutionState) error {
	if state == nil {
		return dao.ErrNilEntity
	}
	if state.UniqueID == "" {
		return dao.ErrInvalidID
	}
	clone := state.Clone()
	clone.UpdatedAt = clock.Now()

	s.mux.Lock()
	defer s.mux.Unlock()
	s.states[state.UniqueID] = clone
	return nil
}

// Load retrieves a copy of the state or dao.ErrNotFound. Expired records are
// evicted lazily.
func (s *Service) Load(_ context.Context, id string) (*model.ExecutionState, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mux.RLock()
	state, ok := s.states[id]
	s.mux.RUnlock()
	if !ok {
		return nil, dao.ErrNotFound
	}
	if s.expired(state) {
		s.mux.Lock()
		delete(s.states, id)
		s.mux.Unlock()
		return nil, dao.ErrNotFound
	}
	return state.Clone(), nil
}

// Delete removes a record.
func (s *Service) Delete(_ context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.states[id]; !ok {
		return dao.ErrNotFound
	}
	delete(s.states, id)
	return nil
}

// List returns copies of all live records.
func (s *Service) List(_ context.Context) ([]*model.ExecutionState, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	out := make([]*model.ExecutionState, 0, len(s.states))
	for _, state := range s.states {
		if s.expired(state) {
			continue
		}
		out = append(out, state.Clone())
	}
	return out, nil
}

func (s *Service) expired(state *model.ExecutionState) bool {
	if s.retention <= 0 {
		return false
	}
	return clock.Now().Sub(state.UpdatedAt) > s.retention
}
