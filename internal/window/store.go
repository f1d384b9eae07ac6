// Package window implements the Feature Window Store: a bounded rolling
// history of snapshots per mint and the time-windowed features derived from it.
package window

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/normalize"
	"solana-token-engine/internal/storage"
)

var (
	// ErrDuplicateSnapshot is returned when (mint, observed_at) was already ingested.
	ErrDuplicateSnapshot = errors.New("duplicate snapshot")

	// ErrOutOfOrder is returned when a snapshot is older than the newest retained sample.
	ErrOutOfOrder = errors.New("snapshot older than newest retained sample")

	// ErrInvalidSnapshot is returned for snapshots without mint or price.
	ErrInvalidSnapshot = fmt.Errorf("%w: invalid snapshot", domain.ErrDataUnavailable)
)

const defaultCapacity = 2880

// Options configures a Store.
type Options struct {
	Lookbacks    []time.Duration // feature windows, e.g. 1m, 5m, 15m, 1h
	Retention    time.Duration   // samples older than newest - Retention are evicted
	MaxStaleness time.Duration   // a larger gap between samples resets the window
	Capacity     int             // max samples per mint
	Logger       zerolog.Logger
}

// IngestResult reports side effects of an Ingest call.
type IngestResult struct {
	Reset   bool // a stale gap discarded older samples
	Evicted int  // samples dropped by retention or capacity
	Size    int  // samples retained after the ingest
}

type series struct {
	mu   sync.RWMutex
	ring *ring
}

// Store holds one ring per mint. Ingest for a mint is atomic with respect to
// Features reads for the same mint.
type Store struct {
	opts      Options
	lookbacks []int64 // ascending, milliseconds
	log       zerolog.Logger

	mu     sync.RWMutex
	series map[string]*series
}

// NewStore creates a Store. Lookbacks are sorted ascending; non-positive values are ignored.
func NewStore(opts Options) *Store {
	if opts.Capacity <= 0 {
		opts.Capacity = defaultCapacity
	}
	var lookbacks []int64
	for _, lb := range opts.Lookbacks {
		if lb > 0 {
			lookbacks = append(lookbacks, lb.Milliseconds())
		}
	}
	sort.Slice(lookbacks, func(i, j int) bool { return lookbacks[i] < lookbacks[j] })

	return &Store{
		opts:      opts,
		lookbacks: lookbacks,
		log:       opts.Logger.With().Str("component", "window").Logger(),
		series:    make(map[string]*series),
	}
}

func (s *Store) get(mint string) *series {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.series[mint]
}

func (s *Store) getOrCreate(mint string) *series {
	if ser := s.get(mint); ser != nil {
		return ser
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ser, ok := s.series[mint]; ok {
		return ser
	}
	ser := &series{ring: newRing(s.opts.Capacity)}
	s.series[mint] = ser
	return ser
}

// Ingest appends a snapshot to its mint's history. Duplicates and out-of-order
// samples are dropped with ErrDuplicateSnapshot or ErrOutOfOrder.
func (s *Store) Ingest(snap *domain.TokenSnapshot) (IngestResult, error) {
	if snap == nil || snap.Mint == "" || snap.Price <= 0 {
		return IngestResult{}, ErrInvalidSnapshot
	}

	ser := s.getOrCreate(snap.Mint)
	ser.mu.Lock()
	defer ser.mu.Unlock()

	var res IngestResult
	if newest := ser.ring.newest(); newest != nil {
		switch {
		case snap.ObservedAt == newest.ObservedAt:
			return IngestResult{Size: ser.ring.len()}, ErrDuplicateSnapshot
		case snap.ObservedAt < newest.ObservedAt:
			return IngestResult{Size: ser.ring.len()}, ErrOutOfOrder
		}
		if s.opts.MaxStaleness > 0 && snap.ObservedAt-newest.ObservedAt > s.opts.MaxStaleness.Milliseconds() {
			res.Evicted += ser.ring.len()
			ser.ring.clear()
			res.Reset = true
			s.log.Debug().
				Str("mint", snap.Mint).
				Int64("gap_ms", snap.ObservedAt-newest.ObservedAt).
				Msg("stale gap, window reset")
		}
	}

	if ser.ring.len() == len(ser.ring.buf) {
		res.Evicted++
	}
	ser.ring.push(snap.Clone())
	if s.opts.Retention > 0 {
		res.Evicted += ser.ring.dropBefore(snap.ObservedAt - s.opts.Retention.Milliseconds())
	}
	res.Size = ser.ring.len()
	return res, nil
}

// Latest returns a copy of the newest snapshot for a mint.
func (s *Store) Latest(mint string) (*domain.TokenSnapshot, bool) {
	ser := s.get(mint)
	if ser == nil {
		return nil, false
	}
	ser.mu.RLock()
	defer ser.mu.RUnlock()

	newest := ser.ring.newest()
	if newest == nil {
		return nil, false
	}
	return newest.Clone(), true
}

// LatestPrice returns the newest price for a mint.
func (s *Store) LatestPrice(mint string) (float64, bool) {
	snap, ok := s.Latest(mint)
	if !ok {
		return 0, false
	}
	return snap.Price, true
}

// Len returns the number of retained samples for a mint.
func (s *Store) Len(mint string) int {
	ser := s.get(mint)
	if ser == nil {
		return 0
	}
	ser.mu.RLock()
	defer ser.mu.RUnlock()
	return ser.ring.len()
}

// Reset discards the history of one mint.
func (s *Store) Reset(mint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.series, mint)
}

// Mints returns all mints with retained samples, sorted.
func (s *Store) Mints() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mints := make([]string, 0, len(s.series))
	for mint, ser := range s.series {
		ser.mu.RLock()
		n := ser.ring.len()
		ser.mu.RUnlock()
		if n > 0 {
			mints = append(mints, mint)
		}
	}
	sort.Strings(mints)
	return mints
}

// Warm rebuilds windows from persisted snapshots observed at or after since.
// Returns the number of snapshots ingested.
func (s *Store) Warm(ctx context.Context, src storage.SnapshotStore, since int64) (int, error) {
	snaps, err := src.GetSince(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("load snapshots: %w", err)
	}
	normalize.SortSnapshots(snaps)

	loaded := 0
	for _, snap := range snaps {
		if err := ctx.Err(); err != nil {
			return loaded, err
		}
		if _, err := s.Ingest(snap); err != nil {
			continue
		}
		loaded++
	}
	s.log.Info().Int("snapshots", loaded).Int("mints", len(s.Mints())).Msg("windows warmed")
	return loaded, nil
}
