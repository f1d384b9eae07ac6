package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/storage/memory"
	"solana-token-engine/internal/window"
)

type fakeCandles struct {
	mu      sync.Mutex
	calls   []string
	since   time.Time
	candles []Candle
	err     error
}

func (f *fakeCandles) Name() string { return "fake" }

func (f *fakeCandles) Candles(_ context.Context, mint string, since time.Time) ([]Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, mint)
	f.since = since
	return f.candles, f.err
}

func minuteCandles(n int) []Candle {
	start := fixedClock().Add(-time.Duration(n+1) * time.Minute).UnixMilli()
	out := make([]Candle, n)
	for i := range out {
		out[i] = Candle{
			OpenTime:  start + int64(i)*time.Minute.Milliseconds(),
			Close:     float64(i + 1),
			VolumeUSD: 100,
		}
	}
	return out
}

func TestBackfillerSeedsWindow(t *testing.T) {
	src := &fakeCandles{candles: minuteCandles(6)}
	win := window.NewStore(window.Options{Retention: time.Hour})
	snaps := memory.NewSnapshotStore()
	b := NewBackfiller(src, win, BackfillOptions{
		Lookback:  10 * time.Minute,
		Snapshots: snaps,
		Now:       fixedClock,
		Logger:    zerolog.Nop(),
	})

	n, err := b.Backfill(context.Background(), mintA)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, 6, win.Len(mintA))
	assert.Equal(t, fixedClock().Add(-10*time.Minute), src.since)

	latest, ok := win.Latest(mintA)
	require.True(t, ok)
	assert.Equal(t, 6.0, latest.Price)
	assert.Equal(t, fixedClock().Add(-time.Minute).UnixMilli(), latest.ObservedAt, "sample sits at candle close")
	assert.Equal(t, domain.SourceWatchlist, latest.Source)
	assert.Nil(t, latest.Liquidity)
	require.NotNil(t, latest.Volume5m)
	assert.InDelta(t, 500, *latest.Volume5m, 1e-9)

	stored, err := snaps.GetByTimeRange(context.Background(), mintA, 0, fixedClock().UnixMilli())
	require.NoError(t, err)
	require.Len(t, stored, 6)
	assert.Nil(t, stored[3].Volume5m, "fewer than five candles leave volume unset")
	assert.NotNil(t, stored[4].Volume5m)
}

func TestBackfillerRunsOncePerMint(t *testing.T) {
	src := &fakeCandles{candles: minuteCandles(3)}
	b := NewBackfiller(src, window.NewStore(window.Options{}), BackfillOptions{Now: fixedClock})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.Backfill(context.Background(), mintA)
		}()
	}
	wg.Wait()

	n, err := b.Backfill(context.Background(), mintA)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []string{mintA}, src.calls)
}

func TestBackfillerSkipsWarmMints(t *testing.T) {
	src := &fakeCandles{candles: minuteCandles(3)}
	win := window.NewStore(window.Options{})
	_, err := win.Ingest(&domain.TokenSnapshot{Mint: mintA, ObservedAt: fixedClock().UnixMilli(), Price: 1})
	require.NoError(t, err)

	n, err := NewBackfiller(src, win, BackfillOptions{Now: fixedClock}).Backfill(context.Background(), mintA)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, src.calls)
	assert.Equal(t, 1, win.Len(mintA))
}

func TestBackfillerSourceError(t *testing.T) {
	src := &fakeCandles{err: errors.Join(domain.ErrDataUnavailable, errors.New("429"))}
	win := window.NewStore(window.Options{})

	_, err := NewBackfiller(src, win, BackfillOptions{Now: fixedClock}).Backfill(context.Background(), mintA)
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.Zero(t, win.Len(mintA))
}

type recordingBackfill struct {
	mu    sync.Mutex
	mints []string
}

func (r *recordingBackfill) Backfill(_ context.Context, mint string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mints = append(r.mints, mint)
	return 0, nil
}

func TestPollerBackfillsBeforeFetch(t *testing.T) {
	list := NewWatchlist(0, nil)
	list.Add(mintA, domain.SourceTrending, "")

	bf := &recordingBackfill{}
	src := &fakeSnapshots{}
	p := NewPoller(list, src, &recordingSubmitter{}, PollerOptions{Backfill: bf})

	assert.Equal(t, 1, p.PollOnce(context.Background()))
	assert.Equal(t, []string{mintA}, bf.mints)
	assert.Equal(t, []string{mintA}, src.calls)
}
