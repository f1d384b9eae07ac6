package ingestion

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/normalize"
)

// WatchEntry is one mint the poller refreshes.
type WatchEntry struct {
	Mint      string
	Source    domain.Source
	Label     string
	AddedAt   time.Time
	ExpiresAt time.Time // zero for pinned entries
	Held      bool      // a position is open; the entry does not expire
}

// Watchlist is the set of mints polled for fresh snapshots. Entries expire
// after the TTL unless re-added or pinned.
type Watchlist struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*WatchEntry
}

func NewWatchlist(ttl time.Duration, now func() time.Time) *Watchlist {
	if now == nil {
		now = time.Now
	}
	return &Watchlist{ttl: ttl, now: now, entries: make(map[string]*WatchEntry)}
}

// Add inserts mint or extends its expiry. It reports whether mint was new.
// Pinned entries keep their pin.
func (w *Watchlist) Add(mint string, src domain.Source, label string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	var exp time.Time
	if w.ttl > 0 {
		exp = now.Add(w.ttl)
	}
	if e, ok := w.entries[mint]; ok && !w.expired(e, now) {
		if !e.ExpiresAt.IsZero() {
			e.ExpiresAt = exp
		}
		return false
	}
	w.entries[mint] = &WatchEntry{Mint: mint, Source: src, Label: label, AddedAt: now, ExpiresAt: exp}
	return true
}

// Pin adds mint without expiry.
func (w *Watchlist) Pin(mint string, src domain.Source, label string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	held := false
	if e, ok := w.entries[mint]; ok {
		held = e.Held
	}
	w.entries[mint] = &WatchEntry{Mint: mint, Source: src, Label: label, AddedAt: w.now(), Held: held}
}

// Hold keeps mint polled regardless of its expiry until Release.
func (w *Watchlist) Hold(mint string, src domain.Source, label string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.entries[mint]; ok {
		e.Held = true
		return
	}
	now := w.now()
	e := &WatchEntry{Mint: mint, Source: src, Label: label, AddedAt: now, Held: true}
	if w.ttl > 0 {
		e.ExpiresAt = now.Add(w.ttl)
	}
	w.entries[mint] = e
}

// Release ends a Hold. An unpinned entry gets a fresh TTL from now.
func (w *Watchlist) Release(mint string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entries[mint]
	if !ok || !e.Held {
		return
	}
	e.Held = false
	if !e.ExpiresAt.IsZero() {
		e.ExpiresAt = w.now().Add(w.ttl)
	}
}

func (w *Watchlist) Remove(mint string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entries, mint)
}

func (w *Watchlist) expired(e *WatchEntry, now time.Time) bool {
	return !e.Held && !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Entries drops expired mints and returns the rest sorted by mint.
func (w *Watchlist) Entries() []WatchEntry {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	out := make([]WatchEntry, 0, len(w.entries))
	for mint, e := range w.entries {
		if w.expired(e, now) {
			delete(w.entries, mint)
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mint < out[j].Mint })
	return out
}

func (w *Watchlist) Len() int {
	return len(w.Entries())
}

// PollerOptions configures a Poller.
type PollerOptions struct {
	Interval time.Duration
	// Backfill, when set, seeds a mint's window before its first fetch.
	Backfill Backfill
	Logger   zerolog.Logger
}

// Poller fetches a snapshot for every watchlist mint each interval and
// submits it to the engine.
type Poller struct {
	list     *Watchlist
	src      SnapshotSource
	sub      Submitter
	backfill Backfill
	interval time.Duration
	log      zerolog.Logger
}

func NewPoller(list *Watchlist, src SnapshotSource, sub Submitter, opts PollerOptions) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	return &Poller{
		list:     list,
		src:      src,
		sub:      sub,
		backfill: opts.Backfill,
		interval: opts.Interval,
		log:      opts.Logger.With().Str("component", "poller").Logger(),
	}
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce runs one pass over the watchlist and returns the number of
// snapshots submitted. Provider failures skip the mint for this pass.
func (p *Poller) PollOnce(ctx context.Context) int {
	n := 0
	for _, e := range p.list.Entries() {
		if p.backfill != nil {
			if _, err := p.backfill.Backfill(ctx, e.Mint); err != nil && ctx.Err() == nil {
				p.log.Debug().Err(err).Str("mint", e.Mint).Msg("backfill failed")
			}
		}
		payload, err := p.src.Fetch(ctx, e.Mint)
		if err != nil {
			if ctx.Err() != nil {
				return n
			}
			ev := p.log.Warn()
			if errors.Is(err, domain.ErrDataUnavailable) {
				ev = p.log.Debug()
			}
			ev.Err(err).Str("mint", e.Mint).Msg("snapshot fetch failed")
			continue
		}
		if pair, ok := payload.(*normalize.DexPair); ok {
			pair.Source = e.Source
			pair.Label = e.Label
		}
		if err := p.sub.Submit(ctx, payload); err != nil {
			p.log.Warn().Err(err).Str("mint", e.Mint).Msg("submit snapshot")
			return n
		}
		n++
	}
	p.log.Debug().Int("submitted", n).Msg("poll finished")
	return n
}
