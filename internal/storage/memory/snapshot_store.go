package memory

import (
	"context"
	"sort"
	"sync"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TokenSnapshot // keyed by snapshot_id
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string]*domain.TokenSnapshot),
	}
}

// InsertBulk adds multiple snapshots. Fails entire batch on any duplicate.
func (s *SnapshotStore) InsertBulk(_ context.Context, snaps []*domain.TokenSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(snaps))

	// First pass: check for duplicates (existing + intra-batch)
	for _, snap := range snaps {
		if snap == nil || snap.SnapshotID == "" || snap.Mint == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[snap.SnapshotID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[snap.SnapshotID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[snap.SnapshotID] = struct{}{}
	}

	// Second pass: insert all
	for _, snap := range snaps {
		s.data[snap.SnapshotID] = snap.Clone()
	}
	return nil
}

// GetByTimeRange retrieves snapshots for a mint within [start, end] (inclusive).
func (s *SnapshotStore) GetByTimeRange(_ context.Context, mint string, start, end int64) ([]*domain.TokenSnapshot, error) {
	return s.collect(func(snap *domain.TokenSnapshot) bool {
		return snap.Mint == mint && snap.ObservedAt >= start && snap.ObservedAt <= end
	}), nil
}

// GetSince retrieves snapshots for all mints observed at or after since.
func (s *SnapshotStore) GetSince(_ context.Context, since int64) ([]*domain.TokenSnapshot, error) {
	return s.collect(func(snap *domain.TokenSnapshot) bool {
		return snap.ObservedAt >= since
	}), nil
}

func (s *SnapshotStore) collect(keep func(*domain.TokenSnapshot) bool) []*domain.TokenSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TokenSnapshot
	for _, snap := range s.data {
		if keep(snap) {
			result = append(result, snap.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ObservedAt != result[j].ObservedAt {
			return result[i].ObservedAt < result[j].ObservedAt
		}
		return result[i].Mint < result[j].Mint
	})
	return result
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
