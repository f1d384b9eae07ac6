package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/storage"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestTransitionLogStore(t *testing.T) {
	ctx := context.Background()
	store := NewTransitionLogStore(openTestDB(t))

	open := &domain.Transition{
		Seq: 2, Mint: "mintA", DecisionID: "d1", Cycle: 3, Action: domain.ActionBuy, Size: 50,
		FromState: domain.PositionPendingOpen, ToState: domain.PositionOpen, Timestamp: 2000,
		Result: &domain.ExecutionResult{Status: domain.ExecutionAck, FillPrice: 0.5, FilledSize: 50, Fees: 0.02, ExecutedAt: 1990},
	}
	pending := &domain.Transition{
		Seq: 1, Mint: "mintA", DecisionID: "d1", Cycle: 3, Action: domain.ActionBuy, Size: 50,
		FromState: domain.PositionNone, ToState: domain.PositionPendingOpen, Timestamp: 1000,
	}
	require.NoError(t, store.Append(ctx, open))
	require.NoError(t, store.Append(ctx, pending))
	require.NoError(t, store.Append(ctx, &domain.Transition{Seq: 3, Mint: "mintB", DecisionID: "d9", ToState: domain.PositionPendingOpen}))

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, pending, all[0])
	assert.Equal(t, open, all[1])

	byMint, err := store.GetByMint(ctx, "mintB")
	require.NoError(t, err)
	require.Len(t, byMint, 1)
	assert.Nil(t, byMint[0].Result)

	dupKey := *pending
	dupKey.Seq = 10
	assert.ErrorIs(t, store.Append(ctx, &dupKey), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.Append(ctx, &domain.Transition{Seq: 1, Mint: "mintC", DecisionID: "d5", ToState: domain.PositionPendingOpen}), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.Append(ctx, &domain.Transition{Seq: 11, Mint: "mintC", ToState: domain.PositionOpen}), storage.ErrInvalidInput)
}

func TestTransitionLogStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, NewTransitionLogStore(db).Append(ctx,
		&domain.Transition{Seq: 1, Mint: "mintA", DecisionID: "d1", FromState: domain.PositionNone, ToState: domain.PositionPendingOpen}))
	require.NoError(t, Close(db))

	db, err = Open(path)
	require.NoError(t, err)
	defer Close(db)
	all, err := NewTransitionLogStore(db).List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.PositionPendingOpen, all[0].ToState)
}

func TestDecisionStore(t *testing.T) {
	ctx := context.Background()
	store := NewDecisionStore(openTestDB(t))

	mk := func(id, mint string, cycle uint64, at int64) *domain.Decision {
		return &domain.Decision{
			DecisionID: id, Mint: mint, Cycle: cycle, Action: domain.ActionBuy, Confidence: 0.8,
			Reasons: []string{"score_above_threshold"}, VerdictStatus: domain.VerdictSafe,
			Stage: domain.StageDecided, ScorerID: "momentum_v1", Price: 1.25, Size: 10, CreatedAt: at,
		}
	}
	for _, d := range []*domain.Decision{mk("a2", "mintA", 2, 2000), mk("b1", "mintB", 1, 1000), mk("a1", "mintA", 1, 1000)} {
		require.NoError(t, store.Insert(ctx, d))
	}
	assert.ErrorIs(t, store.Insert(ctx, mk("a1", "mintA", 1, 1000)), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.Insert(ctx, mk("a1-again", "mintA", 1, 1000)), storage.ErrDuplicateKey)

	top, err := store.MaxCycle(ctx, "mintA")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), top)
	top, err = store.MaxCycle(ctx, "unknown")
	require.NoError(t, err)
	assert.Zero(t, top)
	assert.ErrorIs(t, store.Insert(ctx, &domain.Decision{DecisionID: "x"}), storage.ErrInvalidInput)

	got, err := store.GetByID(ctx, "a2")
	require.NoError(t, err)
	assert.Equal(t, mk("a2", "mintA", 2, 2000), got)

	_, err = store.GetByID(ctx, "zz")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	byMint, err := store.GetByMint(ctx, "mintA")
	require.NoError(t, err)
	require.Len(t, byMint, 2)
	assert.Equal(t, "a1", byMint[0].DecisionID)

	ranged, err := store.GetByTimeRange(ctx, 0, 1500)
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, []string{"a1", "b1"}, []string{ranged[0].DecisionID, ranged[1].DecisionID})
}

func TestDiscoveryProgressStore(t *testing.T) {
	ctx := context.Background()
	store := NewDiscoveryProgressStore(openTestDB(t))

	_, err := store.GetLastProcessed(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.SetLastProcessed(ctx, &storage.DiscoveryProgress{Slot: 7, Signature: "a"}))
	require.NoError(t, store.SetLastProcessed(ctx, &storage.DiscoveryProgress{Slot: 9, Signature: "b"}))
	got, err := store.GetLastProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, &storage.DiscoveryProgress{Slot: 9, Signature: "b"}, got)

	require.NoError(t, store.MarkMintSeen(ctx, "m2"))
	require.NoError(t, store.MarkMintSeen(ctx, "m1"))
	require.NoError(t, store.MarkMintSeen(ctx, "m2"))

	seen, err := store.IsMintSeen(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, seen)

	mints, err := store.LoadSeenMints(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, mints)
}
