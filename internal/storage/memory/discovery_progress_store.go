package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-token-engine/internal/storage"
)

// DiscoveryProgressStore is an in-memory implementation of storage.DiscoveryProgressStore.
type DiscoveryProgressStore struct {
	mu       sync.RWMutex
	progress *storage.DiscoveryProgress
	seen     map[string]time.Time // mint -> first seen
}

// NewDiscoveryProgressStore creates a new in-memory discovery progress store.
func NewDiscoveryProgressStore() *DiscoveryProgressStore {
	return &DiscoveryProgressStore{
		seen: make(map[string]time.Time),
	}
}

// GetLastProcessed returns the last handled slot and signature.
func (s *DiscoveryProgressStore) GetLastProcessed(_ context.Context) (*storage.DiscoveryProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.progress == nil {
		return nil, storage.ErrNotFound
	}
	p := *s.progress
	return &p, nil
}

// SetLastProcessed saves the last handled slot and signature.
// Older slots never overwrite newer progress.
func (s *DiscoveryProgressStore) SetLastProcessed(_ context.Context, progress *storage.DiscoveryProgress) error {
	if progress == nil || progress.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.progress != nil && progress.Slot < s.progress.Slot {
		return nil
	}
	p := *progress
	s.progress = &p
	return nil
}

// IsMintSeen checks if a mint was already added to the watchlist.
func (s *DiscoveryProgressStore) IsMintSeen(_ context.Context, mint string) (bool, error) {
	if mint == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.seen[mint]
	return ok, nil
}

// MarkMintSeen records a mint. Marking twice keeps the first timestamp.
func (s *DiscoveryProgressStore) MarkMintSeen(_ context.Context, mint string) error {
	if mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[mint]; !ok {
		s.seen[mint] = time.Now()
	}
	return nil
}

// LoadSeenMints returns all seen mints in first-seen order.
func (s *DiscoveryProgressStore) LoadSeenMints(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mints := make([]string, 0, len(s.seen))
	for mint := range s.seen {
		mints = append(mints, mint)
	}
	sort.Slice(mints, func(i, j int) bool {
		ti, tj := s.seen[mints[i]], s.seen[mints[j]]
		if ti.Equal(tj) {
			return mints[i] < mints[j]
		}
		return ti.Before(tj)
	})
	return mints, nil
}

var _ storage.DiscoveryProgressStore = (*DiscoveryProgressStore)(nil)
