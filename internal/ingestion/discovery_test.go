package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-engine/internal/solana"
	"solana-token-engine/internal/solana/stub"
	"solana-token-engine/internal/storage/memory"
)

type fakeWS struct {
	ch     chan solana.LogNotification
	filter solana.LogsFilter
}

func (f *fakeWS) SubscribeLogs(_ context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error) {
	f.filter = filter
	return f.ch, nil
}

func (f *fakeWS) Close() error { return nil }

var createLogs = []string{
	"Program " + PumpFunProgram + " invoke [1]",
	"Program log: Instruction: Create",
}

func newDiscovery(t *testing.T) (*WSDiscovery, *stub.RPCClient, *Watchlist, *memory.DiscoveryProgressStore, *fakeWS) {
	t.Helper()
	rpc := stub.NewRPCClient()
	list := NewWatchlist(time.Hour, nil)
	progress := memory.NewDiscoveryProgressStore()
	ws := &fakeWS{ch: make(chan solana.LogNotification, 4)}
	d := NewWSDiscovery(ws, rpc, list, DiscoveryOptions{Progress: progress, Logger: zerolog.Nop()})
	return d, rpc, list, progress, ws
}

func TestDiscoveryHandleCreate(t *testing.T) {
	d, rpc, list, progress, _ := newDiscovery(t)
	rpc.Txs["sig1"] = &solana.Transaction{Signature: "sig1", AccountKeys: []string{mintA, mintP, PumpFunProgram}}
	ctx := context.Background()

	mint, err := d.Handle(ctx, solana.LogNotification{Signature: "sig1", Slot: 42, Logs: createLogs})
	require.NoError(t, err)
	assert.Equal(t, mintP, mint)
	assert.Equal(t, 1, list.Len())

	seen, err := progress.IsMintSeen(ctx, mintP)
	require.NoError(t, err)
	assert.True(t, seen)
	last, err := progress.GetLastProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), last.Slot)
	assert.Equal(t, "sig1", last.Signature)

	again, err := d.Handle(ctx, solana.LogNotification{Signature: "sig1", Slot: 43, Logs: createLogs})
	require.NoError(t, err)
	assert.Empty(t, again, "a mint is announced once")
}

func TestDiscoveryFallsBackToSecondAccount(t *testing.T) {
	d, rpc, _, _, _ := newDiscovery(t)
	rpc.Txs["sig2"] = &solana.Transaction{AccountKeys: []string{mintA, mintB}}

	mint, err := d.Handle(context.Background(), solana.LogNotification{Signature: "sig2", Logs: createLogs})
	require.NoError(t, err)
	assert.Equal(t, mintB, mint)
}

func TestDiscoveryIgnoresNonCreate(t *testing.T) {
	d, rpc, list, _, _ := newDiscovery(t)

	mint, err := d.Handle(context.Background(), solana.LogNotification{Signature: "s", Logs: []string{"Program log: Instruction: Buy"}})
	require.NoError(t, err)
	assert.Empty(t, mint)

	mint, err = d.Handle(context.Background(), solana.LogNotification{Signature: "s", Logs: createLogs, Failed: true})
	require.NoError(t, err)
	assert.Empty(t, mint)

	assert.Zero(t, rpc.CallCount("getTransaction"))
	assert.Zero(t, list.Len())
}

func TestDiscoveryRunSkipsPersistedMints(t *testing.T) {
	d, rpc, list, progress, ws := newDiscovery(t)
	ctx := context.Background()
	require.NoError(t, progress.MarkMintSeen(ctx, mintP))

	rpc.Txs["old"] = &solana.Transaction{AccountKeys: []string{mintA, mintP}}
	rpc.Txs["new"] = &solana.Transaction{AccountKeys: []string{mintA, mintB}}
	ws.ch <- solana.LogNotification{Signature: "old", Slot: 1, Logs: createLogs}
	ws.ch <- solana.LogNotification{Signature: "new", Slot: 2, Logs: createLogs}
	close(ws.ch)

	require.NoError(t, d.Run(ctx))
	assert.Equal(t, []string{PumpFunProgram}, ws.filter.Mentions)

	entries := list.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, mintB, entries[0].Mint)
}
