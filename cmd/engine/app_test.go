package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/ingestion"
	"solana-token-engine/internal/ledger"
	"solana-token-engine/internal/storage/memory"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestHoldWhileActive_KeepsRuntimePositionsPolled(t *testing.T) {
	ctx := context.Background()
	clk := &testClock{t: time.UnixMilli(1_700_000_000_000)}
	list := ingestion.NewWatchlist(10*time.Minute, clk.now)
	l := ledger.New(memory.NewTransitionLogStore(), ledger.Options{
		Now: clk.now,
		OnTransition: func(tr *domain.Transition, _ *domain.Position) {
			holdWhileActive(list, tr)
		},
	})

	list.Add("mintA", domain.SourceTrending, "5m Trending")
	buy := &domain.Decision{DecisionID: "d1", Mint: "mintA", Cycle: 1, Action: domain.ActionBuy, Price: 1, Size: 10}
	_, err := l.Accept(ctx, buy)
	require.NoError(t, err)
	_, err = l.Apply(ctx, buy, &domain.ExecutionResult{Status: domain.ExecutionAck, FillPrice: 1, FilledSize: 10})
	require.NoError(t, err)

	clk.advance(time.Hour)
	entries := list.Entries()
	require.Len(t, entries, 1, "open position outlives the trending TTL")
	assert.True(t, entries[0].Held)

	sell := &domain.Decision{DecisionID: "d2", Mint: "mintA", Cycle: 2, Action: domain.ActionSell, Price: 1.2, Size: 10}
	_, err = l.Accept(ctx, sell)
	require.NoError(t, err)
	_, err = l.Apply(ctx, sell, &domain.ExecutionResult{Status: domain.ExecutionAck, FillPrice: 1.2, FilledSize: 10})
	require.NoError(t, err)
	require.Equal(t, domain.PositionClosed, l.Position("mintA").State)

	clk.advance(11 * time.Minute)
	assert.Zero(t, list.Len(), "closed position is released to its TTL")
}

func TestHoldWhileActive_FailedBuyReleases(t *testing.T) {
	ctx := context.Background()
	list := ingestion.NewWatchlist(0, nil)
	l := ledger.New(memory.NewTransitionLogStore(), ledger.Options{
		OnTransition: func(tr *domain.Transition, _ *domain.Position) {
			holdWhileActive(list, tr)
		},
	})

	buy := &domain.Decision{DecisionID: "d1", Mint: "mintB", Cycle: 1, Action: domain.ActionBuy, Price: 1, Size: 10}
	_, err := l.Accept(ctx, buy)
	require.NoError(t, err)
	require.True(t, list.Entries()[0].Held)

	_, err = l.Apply(ctx, buy, &domain.ExecutionResult{Status: domain.ExecutionTimeout})
	require.NoError(t, err)
	entries := list.Entries()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Held)
}
