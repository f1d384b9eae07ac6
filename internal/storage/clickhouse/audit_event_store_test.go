package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/storage"
)

func TestAuditEventStore(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	store := NewAuditEventStore(conn)

	transition := &domain.AuditEvent{
		EventID: "e2", Kind: domain.AuditTransition, Mint: "mintA", DecisionID: "d1",
		FromState: domain.PositionNone, ToState: domain.PositionPendingOpen,
		Summary: "mintA NONE -> PENDING_OPEN", Payload: `{"seq":1}`, Timestamp: 2000,
	}
	decision := &domain.AuditEvent{
		EventID: "e1", Kind: domain.AuditDecision, Mint: "mintA", DecisionID: "d1",
		Action: domain.ActionBuy, Summary: "BUY mintA", Payload: `{"cycle":1}`, Timestamp: 1000,
	}
	require.NoError(t, store.Insert(ctx, transition))
	require.NoError(t, store.Insert(ctx, decision))
	require.NoError(t, store.Insert(ctx, &domain.AuditEvent{EventID: "e3", Kind: domain.AuditDecision, Mint: "mintB", Timestamp: 500}))

	assert.ErrorIs(t, store.Insert(ctx, decision), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.Insert(ctx, &domain.AuditEvent{}), storage.ErrInvalidInput)

	events, err := store.GetByMint(ctx, "mintA")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, decision, events[0])
	assert.Equal(t, transition, events[1])
}
