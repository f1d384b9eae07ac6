package storage

import (
	"context"

	"solana-token-engine/internal/domain"
)

// TransitionLogStore is the append-only position transition log.
// It is the ledger's source of truth; positions are derived by replaying it.
type TransitionLogStore interface {
	// Append adds one transition. Returns ErrDuplicateKey if seq or
	// (mint, decision_id, to_state) already exists.
	Append(ctx context.Context, t *domain.Transition) error

	// List retrieves the whole log ordered by seq ASC.
	List(ctx context.Context) ([]*domain.Transition, error)

	// GetByMint retrieves all transitions for a mint ordered by seq ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.Transition, error)
}

// DecisionStore provides access to decisions storage.
type DecisionStore interface {
	// Insert adds a decision. Returns ErrDuplicateKey if decision_id or
	// (mint, cycle) exists.
	Insert(ctx context.Context, d *domain.Decision) error

	// MaxCycle returns the highest stored cycle for a mint, 0 if none.
	MaxCycle(ctx context.Context, mint string) (uint64, error)

	// GetByID retrieves a decision by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, decisionID string) (*domain.Decision, error)

	// GetByMint retrieves all decisions for a mint ordered by cycle ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.Decision, error)

	// GetByTimeRange retrieves decisions created within [start, end] (inclusive),
	// ordered by (created_at, mint, cycle) ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Decision, error)
}

// SnapshotStore provides access to token_snapshots storage.
type SnapshotStore interface {
	// InsertBulk adds multiple snapshots. Fails entire batch on duplicate snapshot_id.
	InsertBulk(ctx context.Context, snaps []*domain.TokenSnapshot) error

	// GetByTimeRange retrieves snapshots for a mint within [start, end] (inclusive),
	// ordered by observed_at ASC.
	GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.TokenSnapshot, error)

	// GetSince retrieves snapshots for all mints observed at or after since,
	// ordered by (observed_at, mint) ASC. Used to warm feature windows.
	GetSince(ctx context.Context, since int64) ([]*domain.TokenSnapshot, error)
}

// AuditEventStore provides access to audit_events storage.
type AuditEventStore interface {
	// Insert adds an event. Returns ErrDuplicateKey if event_id exists.
	Insert(ctx context.Context, e *domain.AuditEvent) error

	// GetByMint retrieves all events for a mint ordered by timestamp ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.AuditEvent, error)
}
