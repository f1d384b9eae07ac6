package memory

import (
	"context"
	"sort"
	"sync"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/storage"
)

// AuditEventStore is an in-memory implementation of storage.AuditEventStore.
type AuditEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AuditEvent // keyed by event_id
}

// NewAuditEventStore creates a new in-memory audit event store.
func NewAuditEventStore() *AuditEventStore {
	return &AuditEventStore{
		data: make(map[string]*domain.AuditEvent),
	}
}

// Insert adds an event. Returns ErrDuplicateKey if event_id exists.
func (s *AuditEventStore) Insert(_ context.Context, e *domain.AuditEvent) error {
	if e == nil || e.EventID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.EventID]; exists {
		return storage.ErrDuplicateKey
	}
	eventCopy := *e
	s.data[e.EventID] = &eventCopy
	return nil
}

// GetByMint retrieves all events for a mint ordered by timestamp ASC.
func (s *AuditEventStore) GetByMint(_ context.Context, mint string) ([]*domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AuditEvent
	for _, e := range s.data {
		if e.Mint == mint {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].EventID < result[j].EventID
	})
	return result, nil
}

// Len returns the number of stored events.
func (s *AuditEventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

var _ storage.AuditEventStore = (*AuditEventStore)(nil)
