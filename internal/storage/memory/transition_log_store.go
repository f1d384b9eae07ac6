package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/storage"
)

// TransitionLogStore is an in-memory implementation of storage.TransitionLogStore.
type TransitionLogStore struct {
	mu   sync.RWMutex
	log  []*domain.Transition
	seqs map[int64]struct{}
	keys map[string]struct{} // (mint, decision_id, to_state)
}

// NewTransitionLogStore creates a new in-memory transition log.
func NewTransitionLogStore() *TransitionLogStore {
	return &TransitionLogStore{
		seqs: make(map[int64]struct{}),
		keys: make(map[string]struct{}),
	}
}

func transitionKey(t *domain.Transition) string {
	return fmt.Sprintf("%s|%s|%s", t.Mint, t.DecisionID, t.ToState)
}

// Append adds one transition. Returns ErrDuplicateKey on a repeated seq or key.
func (s *TransitionLogStore) Append(_ context.Context, t *domain.Transition) error {
	if t == nil || t.Mint == "" || t.DecisionID == "" || !t.ToState.IsValid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := transitionKey(t)
	if _, exists := s.seqs[t.Seq]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.keys[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.seqs[t.Seq] = struct{}{}
	s.keys[key] = struct{}{}
	s.log = append(s.log, cloneTransition(t))
	return nil
}

// List retrieves the whole log ordered by seq ASC.
func (s *TransitionLogStore) List(_ context.Context) ([]*domain.Transition, error) {
	return s.filter(func(*domain.Transition) bool { return true }), nil
}

// GetByMint retrieves all transitions for a mint ordered by seq ASC.
func (s *TransitionLogStore) GetByMint(_ context.Context, mint string) ([]*domain.Transition, error) {
	return s.filter(func(t *domain.Transition) bool { return t.Mint == mint }), nil
}

func (s *TransitionLogStore) filter(keep func(*domain.Transition) bool) []*domain.Transition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transition
	for _, t := range s.log {
		if keep(t) {
			result = append(result, cloneTransition(t))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})
	return result
}

func cloneTransition(t *domain.Transition) *domain.Transition {
	c := *t
	if t.Result != nil {
		r := *t.Result
		c.Result = &r
	}
	return &c
}

var _ storage.TransitionLogStore = (*TransitionLogStore)(nil)
