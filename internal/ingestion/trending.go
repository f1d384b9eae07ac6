package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/normalize"
)

// TrendingFile is one trending export and the label its snapshots carry.
type TrendingFile struct {
	Path  string
	Label string
}

// TrendingFileSource reads trending exports: a JSON array of tokens, or an
// object with the array under "data". Snapshots are stamped with the file's
// modification time, so an unchanged file yields duplicates the window drops.
type TrendingFileSource struct {
	files []TrendingFile
	log   zerolog.Logger

	mu      sync.Mutex
	modTime map[string]time.Time
}

func NewTrendingFileSource(files []TrendingFile, log zerolog.Logger) *TrendingFileSource {
	return &TrendingFileSource{
		files:   files,
		log:     log.With().Str("component", "trending").Logger(),
		modTime: make(map[string]time.Time),
	}
}

// Load returns the tokens of every file changed since the previous Load.
// A mint listed in several files is reported once, under the first label.
func (s *TrendingFileSource) Load(ctx context.Context) ([]*normalize.TrendingToken, error) {
	var out []*normalize.TrendingToken
	seen := make(map[string]bool)
	var errs []error

	for _, f := range s.files {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		tokens, err := s.loadFile(f)
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Warn().Str("path", f.Path).Msg("trending file missing")
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, t := range tokens {
			mint, err := normalize.CleanMint(t.Address)
			if err != nil || seen[mint] {
				continue
			}
			seen[mint] = true
			t.Address = mint
			out = append(out, t)
		}
	}
	return out, errors.Join(errs...)
}

func (s *TrendingFileSource) loadFile(f TrendingFile) ([]*normalize.TrendingToken, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	unchanged := s.modTime[f.Path].Equal(info.ModTime())
	s.mu.Unlock()
	if unchanged {
		return nil, nil
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	tokens, err := decodeTrending(data)
	if err != nil {
		return nil, fmt.Errorf("trending file %s: %w", f.Path, err)
	}
	at := info.ModTime().UnixMilli()
	for _, t := range tokens {
		t.FetchedAt = at
		t.Label = f.Label
	}

	s.mu.Lock()
	s.modTime[f.Path] = info.ModTime()
	s.mu.Unlock()
	s.log.Debug().Str("path", f.Path).Int("tokens", len(tokens)).Msg("trending file loaded")
	return tokens, nil
}

func decodeTrending(data []byte) ([]*normalize.TrendingToken, error) {
	data = bytes.TrimSpace(data)
	var tokens []*normalize.TrendingToken
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Data []*normalize.TrendingToken `json:"data"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, err
		}
		tokens = wrapped.Data
	} else if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, err
	}

	out := tokens[:0]
	for _, t := range tokens {
		if t != nil {
			out = append(out, t)
		}
	}
	return out, nil
}

// TrendingFeed periodically loads trending exports, submits their snapshots
// and adds the mints to the watchlist so the poller keeps refreshing them.
type TrendingFeed struct {
	src      *TrendingFileSource
	list     *Watchlist
	sub      Submitter
	backfill Backfill
	interval time.Duration
	log      zerolog.Logger
}

func NewTrendingFeed(src *TrendingFileSource, list *Watchlist, sub Submitter, interval time.Duration, log zerolog.Logger) *TrendingFeed {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &TrendingFeed{src: src, list: list, sub: sub, interval: interval, log: log.With().Str("component", "trending").Logger()}
}

// WithBackfill seeds the window of each newly listed mint before its
// trending snapshot is submitted.
func (f *TrendingFeed) WithBackfill(b Backfill) *TrendingFeed {
	f.backfill = b
	return f
}

// Run loads immediately and then every interval until ctx is done.
func (f *TrendingFeed) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		if _, err := f.LoadOnce(ctx); err != nil && ctx.Err() == nil {
			f.log.Warn().Err(err).Msg("trending load")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LoadOnce submits every new trending snapshot and returns how many were
// accepted by the submitter.
func (f *TrendingFeed) LoadOnce(ctx context.Context) (int, error) {
	tokens, loadErr := f.src.Load(ctx)
	n := 0
	for _, t := range tokens {
		added := f.list == nil
		if f.list != nil {
			added = f.list.Add(t.Address, domain.SourceTrending, t.Label)
		}
		if added && f.backfill != nil {
			if _, err := f.backfill.Backfill(ctx, t.Address); err != nil && ctx.Err() == nil {
				f.log.Debug().Err(err).Str("mint", t.Address).Msg("backfill failed")
			}
		}
		if err := f.sub.Submit(ctx, t); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		f.log.Info().Int("tokens", n).Msg("trending snapshots submitted")
	}
	return n, loadErr
}
