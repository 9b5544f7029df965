package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCapacity = 1024

// Store keeps the most recently used sessions in memory. Nothing is persisted;
// an evicted session is simply gone.
type Store struct {
	an    Analyzer
	mu    sync.Mutex
	cache *lru.Cache[string, *Machine]
}

func NewStore(capacity int, an Analyzer) (*Store, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	cache, err := lru.NewWithEvict(capacity, func(_ string, m *Machine) {
		m.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	return &Store{an: an, cache: cache}, nil
}

// Create starts a new Idle session with a random id.
func (s *Store) Create() *Machine {
	m := NewMachine(uuid.NewString(), s.an)
	s.mu.Lock()
	s.cache.Add(m.ID(), m)
	s.mu.Unlock()
	return m
}

func (s *Store) Get(id string) (*Machine, error) {
	if m, ok := s.cache.Get(id); ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// GetOrCreate is for hosts with their own stable key, such as a chat id.
func (s *Store) GetOrCreate(id string) *Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.cache.Get(id); ok {
		return m
	}
	m := NewMachine(id, s.an)
	s.cache.Add(id, m)
	return m
}

func (s *Store) Len() int { return s.cache.Len() }
