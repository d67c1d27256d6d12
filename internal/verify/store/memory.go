package store

import (
	"context"
	"sync"
	"time"

	"github.com/aelexs/phone-verify-service/internal/domain"
)

// MemoryStore is an in-process reference implementation of Store, used for
// the local development profile and in tests. A single mutex guards the
// whole map; session traffic volumes never justify per-key sharding here,
// and it keeps the CAS semantics trivially correct.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Record
	clock    domain.Clock

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// NewMemoryStore creates an empty MemoryStore and starts its expiry sweeper,
// which evicts sessions past ExpiresAt every interval. Call Close to stop it.
func NewMemoryStore(clock domain.Clock, sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		sessions:  make(map[string]Record),
		clock:     clock,
		sweepStop: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}
	go s.sweepLoop(sweepInterval)
	return s
}

// Close stops the background sweeper goroutine.
func (s *MemoryStore) Close() {
	close(s.sweepStop)
	<-s.sweepDone
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	defer close(s.sweepDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.sweepStop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.sessions {
		if rec.Expired(now) {
			delete(s.sessions, id)
		}
	}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[rec.SessionID]; exists {
		return domain.ErrAlreadyExists
	}
	rec.Version = 1
	s.sessions[rec.SessionID] = rec
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil, notFoundf("get", sessionID)
	}
	if rec.Expired(s.clock.Now()) {
		return nil, notFoundf("get", sessionID)
	}
	out := rec
	return &out, nil
}

// Update implements Store.
func (s *MemoryStore) Update(_ context.Context, sessionID string, mutate Mutator) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.sessions[sessionID]
	if !ok {
		return nil, notFoundf("update", sessionID)
	}
	if cur.Expired(s.clock.Now()) {
		return nil, notFoundf("update", sessionID)
	}

	next, err := applyMutator(&cur, mutate)
	if err != nil {
		return nil, err
	}
	next.Version = cur.Version + 1
	s.sessions[sessionID] = *next

	out := *next
	return &out, nil
}

var _ Store = (*MemoryStore)(nil)
