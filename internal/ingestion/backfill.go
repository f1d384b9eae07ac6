package ingestion

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/normalize"
	"solana-token-engine/internal/storage"
	"solana-token-engine/internal/window"
)

// CandleSource returns closed minute candles, oldest first.
type CandleSource interface {
	Name() string
	Candles(ctx context.Context, mint string, since time.Time) ([]Candle, error)
}

// Backfill seeds a mint's window before its first live snapshot.
type Backfill interface {
	Backfill(ctx context.Context, mint string) (int, error)
}

// BackfillOptions configures a Backfiller. Snapshots is optional.
type BackfillOptions struct {
	Lookback  time.Duration
	Snapshots storage.SnapshotStore
	Now       func() time.Time
	Logger    zerolog.Logger
}

// Backfiller turns historical candles into window samples. Each mint is
// attempted once per process; concurrent callers for one mint wait for the
// first attempt.
type Backfiller struct {
	src      CandleSource
	win      *window.Store
	norm     *normalize.Normalizer
	snaps    storage.SnapshotStore
	lookback time.Duration
	now      func() time.Time
	log      zerolog.Logger

	mu   sync.Mutex
	done map[string]chan struct{}
}

func NewBackfiller(src CandleSource, win *window.Store, opts BackfillOptions) *Backfiller {
	if opts.Lookback <= 0 {
		opts.Lookback = 30 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Backfiller{
		src:      src,
		win:      win,
		norm:     normalize.NewNormalizer(opts.Now),
		snaps:    opts.Snapshots,
		lookback: opts.Lookback,
		now:      opts.Now,
		log:      opts.Logger.With().Str("component", "backfill").Logger(),
		done:     make(map[string]chan struct{}),
	}
}

// Backfill ingests up to Lookback of candles for mint and returns the number
// of samples added. Mints that already have history are skipped.
func (b *Backfiller) Backfill(ctx context.Context, mint string) (int, error) {
	b.mu.Lock()
	ch, seen := b.done[mint]
	if !seen {
		ch = make(chan struct{})
		b.done[mint] = ch
	}
	b.mu.Unlock()

	if seen {
		select {
		case <-ch:
			return 0, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	defer close(ch)

	if b.win.Len(mint) > 0 {
		return 0, nil
	}

	candles, err := b.src.Candles(ctx, mint, b.now().Add(-b.lookback))
	if err != nil {
		return 0, err
	}

	snaps := b.toSnapshots(mint, candles)
	added := make([]*domain.TokenSnapshot, 0, len(snaps))
	for _, snap := range snaps {
		if _, err := b.win.Ingest(snap); err != nil {
			if errors.Is(err, window.ErrDuplicateSnapshot) || errors.Is(err, window.ErrOutOfOrder) {
				continue
			}
			return len(added), err
		}
		added = append(added, snap)
	}

	if b.snaps != nil && len(added) > 0 {
		if err := b.snaps.InsertBulk(ctx, added); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			b.log.Warn().Err(err).Str("mint", mint).Msg("persist backfill")
		}
	}

	b.log.Info().
		Str("mint", mint).
		Str("source", b.src.Name()).
		Int("candles", len(candles)).
		Int("ingested", len(added)).
		Msg("window backfilled")
	return len(added), nil
}

// toSnapshots maps each candle to a sample at its close. Volume5m is the sum
// of the trailing five candles and stays unset until five are available.
func (b *Backfiller) toSnapshots(mint string, candles []Candle) []*domain.TokenSnapshot {
	out := make([]*domain.TokenSnapshot, 0, len(candles))
	for i, c := range candles {
		q := &normalize.ManualQuote{
			Mint:       mint,
			ObservedAt: c.OpenTime + time.Minute.Milliseconds(),
			Price:      c.Close,
			Source:     domain.SourceWatchlist,
		}
		if i >= 4 {
			var vol float64
			for _, prev := range candles[i-4 : i+1] {
				vol += prev.VolumeUSD
			}
			q.Volume5m = &vol
		}
		snap, err := b.norm.Normalize(q)
		if err != nil {
			b.log.Debug().Err(err).Str("mint", mint).Int64("open_time", c.OpenTime).Msg("skip candle")
			continue
		}
		out = append(out, snap)
	}
	return out
}
