package store

import (
	"context"
	"sync"

	"github.com/chorepet/chorepet/internal/model"
)

// MemoryStore holds the household in process memory. Load and Save copy, so
// callers never share slices with the store.
type MemoryStore struct {
	mu      sync.Mutex
	data    *model.Household
	saves   int
	loadErr error
	saveErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: model.NewHousehold()}
}

func (s *MemoryStore) Load(_ context.Context) (*model.Household, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.data.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, h *model.Household) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data = h.Clone()
	s.saves++
	return nil
}

// Saves reports how many successful saves have happened.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// FailLoads makes subsequent loads return err; nil clears it.
func (s *MemoryStore) FailLoads(err error) {
	s.mu.Lock()
	s.loadErr = err
	s.mu.Unlock()
}

// FailSaves makes subsequent saves return err; nil clears it.
func (s *MemoryStore) FailSaves(err error) {
	s.mu.Lock()
	s.saveErr = err
	s.mu.Unlock()
}
