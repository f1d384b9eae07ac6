package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"solana-token-engine/internal/domain"
)

// CompositeFactsSource queries several sources concurrently and merges their
// answers. A true flag from any source wins; unreported values are filled
// from the sources in order. The merged FetchedAt is the oldest contributing
// timestamp so the screener's age check stays conservative.
type CompositeFactsSource struct {
	sources []FactsSource
	log     zerolog.Logger
}

func NewCompositeFactsSource(log zerolog.Logger, sources ...FactsSource) *CompositeFactsSource {
	return &CompositeFactsSource{sources: sources, log: log.With().Str("component", "facts").Logger()}
}

func (c *CompositeFactsSource) Name() string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

// Fetch fails with domain.ErrDataUnavailable only when every source failed.
func (c *CompositeFactsSource) Fetch(ctx context.Context, mint string) (*domain.SecurityFacts, error) {
	results := make([]*domain.SecurityFacts, len(c.sources))
	errs := make([]error, len(c.sources))

	var wg sync.WaitGroup
	for i, src := range c.sources {
		wg.Add(1)
		go func(i int, src FactsSource) {
			defer wg.Done()
			results[i], errs[i] = src.Fetch(ctx, mint)
		}(i, src)
	}
	wg.Wait()

	var merged *domain.SecurityFacts
	var used []string
	for i, f := range results {
		if errs[i] != nil || f == nil {
			if errs[i] != nil {
				c.log.Debug().Err(errs[i]).Str("mint", mint).Str("source", c.sources[i].Name()).Msg("facts source failed")
			}
			continue
		}
		used = append(used, c.sources[i].Name())
		if merged == nil {
			cp := *f
			cp.TopHolderPcts = append([]float64(nil), f.TopHolderPcts...)
			merged = &cp
			continue
		}
		mergeFacts(merged, f)
	}

	if merged == nil {
		if err := errors.Join(errs...); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrDataUnavailable, err)
		}
		return nil, domain.ErrDataUnavailable
	}
	merged.Mint = mint
	merged.Source = strings.Join(used, "+")
	return merged, nil
}

func mergeFacts(dst, src *domain.SecurityFacts) {
	for _, p := range []struct{ dst, src **bool }{
		{&dst.IsHoneypot, &src.IsHoneypot},
		{&dst.IsBlacklisted, &src.IsBlacklisted},
		{&dst.IsProxy, &src.IsProxy},
		{&dst.TradingPaused, &src.TradingPaused},
		{&dst.CanTakeBackOwnership, &src.CanTakeBackOwnership},
		{&dst.MintAuthorityExists, &src.MintAuthorityExists},
		{&dst.FreezeAuthorityExists, &src.FreezeAuthorityExists},
		{&dst.AntiBot, &src.AntiBot},
		{&dst.MetadataMutable, &src.MetadataMutable},
	} {
		*p.dst = orFlag(*p.dst, *p.src)
	}

	if src.TaxFee != nil && (dst.TaxFee == nil || *src.TaxFee > *dst.TaxFee) {
		v := *src.TaxFee
		dst.TaxFee = &v
	}
	if len(dst.TopHolderPcts) == 0 && len(src.TopHolderPcts) > 0 {
		dst.TopHolderPcts = append([]float64(nil), src.TopHolderPcts...)
	}
	if dst.LPHolders == nil {
		dst.LPHolders = src.LPHolders
	}
	if dst.HolderCount == nil {
		dst.HolderCount = src.HolderCount
	}
	if src.FetchedAt > 0 && (dst.FetchedAt == 0 || src.FetchedAt < dst.FetchedAt) {
		dst.FetchedAt = src.FetchedAt
	}
}

func orFlag(a, b *bool) *bool {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return boolPtr(*a || *b)
	}
}
