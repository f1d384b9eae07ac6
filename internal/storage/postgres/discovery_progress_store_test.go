package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-engine/internal/storage"
)

func TestDiscoveryProgressStore_Progress(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := NewDiscoveryProgressStore(pool)

	_, err := store.GetLastProcessed(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.SetLastProcessed(ctx, nil), storage.ErrInvalidInput)

	require.NoError(t, store.SetLastProcessed(ctx, &storage.DiscoveryProgress{Slot: 100, Signature: "sig-100"}))
	require.NoError(t, store.SetLastProcessed(ctx, &storage.DiscoveryProgress{Slot: 250, Signature: "sig-250"}))

	got, err := store.GetLastProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), got.Slot)
	assert.Equal(t, "sig-250", got.Signature)
}

func TestDiscoveryProgressStore_SeenMints(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := NewDiscoveryProgressStore(pool)

	_, err := store.IsMintSeen(ctx, "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
	assert.ErrorIs(t, store.MarkMintSeen(ctx, ""), storage.ErrInvalidInput)

	mints, err := store.LoadSeenMints(ctx)
	require.NoError(t, err)
	assert.Empty(t, mints)

	for i := 3; i > 0; i-- {
		require.NoError(t, store.MarkMintSeen(ctx, fmt.Sprintf("mint%dpump", i)))
	}
	// Repeated marks are no-ops.
	require.NoError(t, store.MarkMintSeen(ctx, "mint1pump"))

	seen, err := store.IsMintSeen(ctx, "mint2pump")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = store.IsMintSeen(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, seen)

	mints, err = store.LoadSeenMints(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"mint1pump", "mint2pump", "mint3pump"}, mints)
}
