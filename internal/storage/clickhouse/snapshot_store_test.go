package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/storage"
)

func testSnapshot(id, mint string, observedAt int64, price float64) *domain.TokenSnapshot {
	return &domain.TokenSnapshot{
		SnapshotID:  id,
		Mint:        mint,
		ObservedAt:  observedAt,
		Price:       price,
		Source:      domain.SourceWatchlist,
		SourceLabel: "dexscreener",
	}
}

func TestSnapshotStore_InsertAndQuery(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	store := NewSnapshotStore(conn)

	full := testSnapshot("s2", "mintA", 2000, 0.002)
	full.Liquidity = ptr(15000.0)
	full.Volume5m = ptr(320.5)
	full.BuyCount5m = ptr(int64(14))
	full.Holders = ptr(int64(812))
	full.PairAddress = ptr("pair111")
	full.PairCreated = ptr(int64(1_690_000_000_000))

	require.NoError(t, store.InsertBulk(ctx, []*domain.TokenSnapshot{
		testSnapshot("s1", "mintA", 1000, 0.001),
		full,
		testSnapshot("s3", "mintB", 1500, 4.2),
		testSnapshot("s4", "mintA", 9000, 0.003),
	}))

	ranged, err := store.GetByTimeRange(ctx, "mintA", 1000, 2000)
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, "s1", ranged[0].SnapshotID)
	assert.Nil(t, ranged[0].Liquidity)
	assert.Equal(t, full, ranged[1])

	since, err := store.GetSince(ctx, 1500)
	require.NoError(t, err)
	ids := make([]string, 0, len(since))
	for _, s := range since {
		ids = append(ids, s.SnapshotID)
	}
	assert.Equal(t, []string{"s3", "s2", "s4"}, ids)
}

func TestSnapshotStore_Duplicates(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()
	store := NewSnapshotStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []*domain.TokenSnapshot{testSnapshot("s1", "mintA", 1000, 1)}))

	// Existing id fails the whole batch.
	err := store.InsertBulk(ctx, []*domain.TokenSnapshot{
		testSnapshot("s2", "mintA", 2000, 1),
		testSnapshot("s1", "mintA", 1000, 1),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.InsertBulk(ctx, []*domain.TokenSnapshot{
		testSnapshot("s5", "mintA", 5000, 1),
		testSnapshot("s5", "mintA", 5000, 1),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	all, err := store.GetSince(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	assert.ErrorIs(t, store.InsertBulk(ctx, []*domain.TokenSnapshot{{SnapshotID: "x"}}), storage.ErrInvalidInput)
	assert.NoError(t, store.InsertBulk(ctx, nil))
}
