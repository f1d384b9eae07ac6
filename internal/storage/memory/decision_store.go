package memory

import (
	"context"
	"sort"
	"sync"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/storage"
)

// DecisionStore is an in-memory implementation of storage.DecisionStore.
type DecisionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Decision // keyed by decision_id
}

// NewDecisionStore creates a new in-memory decision store.
func NewDecisionStore() *DecisionStore {
	return &DecisionStore{
		data: make(map[string]*domain.Decision),
	}
}

// Insert adds a decision. Returns ErrDuplicateKey if decision_id exists.
func (s *DecisionStore) Insert(_ context.Context, d *domain.Decision) error {
	if d == nil || d.DecisionID == "" || d.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[d.DecisionID]; exists {
		return storage.ErrDuplicateKey
	}
	for _, other := range s.data {
		if other.Mint == d.Mint && other.Cycle == d.Cycle {
			return storage.ErrDuplicateKey
		}
	}
	s.data[d.DecisionID] = d.Clone()
	return nil
}

// MaxCycle returns the highest cycle stored for mint, 0 if none.
func (s *DecisionStore) MaxCycle(_ context.Context, mint string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var top uint64
	for _, d := range s.data {
		if d.Mint == mint && d.Cycle > top {
			top = d.Cycle
		}
	}
	return top, nil
}

// GetByID retrieves a decision by its ID. Returns ErrNotFound if not exists.
func (s *DecisionStore) GetByID(_ context.Context, decisionID string) (*domain.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.data[decisionID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return d.Clone(), nil
}

// GetByMint retrieves all decisions for a mint ordered by cycle ASC.
func (s *DecisionStore) GetByMint(_ context.Context, mint string) ([]*domain.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Decision
	for _, d := range s.data {
		if d.Mint == mint {
			result = append(result, d.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Cycle < result[j].Cycle
	})
	return result, nil
}

// GetByTimeRange retrieves decisions created within [start, end] (inclusive).
func (s *DecisionStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Decision
	for _, d := range s.data {
		if d.CreatedAt >= start && d.CreatedAt <= end {
			result = append(result, d.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		if a.Mint != b.Mint {
			return a.Mint < b.Mint
		}
		return a.Cycle < b.Cycle
	})
	return result, nil
}

var _ storage.DecisionStore = (*DecisionStore)(nil)
