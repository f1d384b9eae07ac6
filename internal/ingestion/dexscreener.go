package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/normalize"
	"solana-token-engine/internal/observability"
)

// DexscreenerOptions configures a DexscreenerSource.
type DexscreenerOptions struct {
	BaseURL     string
	Timeout     time.Duration
	MinInterval time.Duration
	Now         func() time.Time
	Logger      zerolog.Logger
}

// DexscreenerSource fetches pair data from the Dexscreener token endpoint.
type DexscreenerSource struct {
	http  *resty.Client
	pacer *Pacer
	now   func() time.Time
	log   zerolog.Logger
}

func NewDexscreenerSource(opts DexscreenerOptions) *DexscreenerSource {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.dexscreener.com"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &DexscreenerSource{
		http: resty.New().
			SetBaseURL(opts.BaseURL).
			SetTimeout(opts.Timeout).
			SetHeader("Accept", "application/json"),
		pacer: NewPacer(opts.MinInterval),
		now:   opts.Now,
		log:   opts.Logger.With().Str("component", "dexscreener").Logger(),
	}
}

type dexTokensResponse struct {
	Pairs []*normalize.DexPair `json:"pairs"`
}

// Fetch returns the mint's pair with the deepest USD liquidity. The payload
// is stamped with the fetch time and the watchlist source.
func (s *DexscreenerSource) Fetch(ctx context.Context, mint string) (normalize.Payload, error) {
	if err := s.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	var body dexTokensResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetPathParam("mint", mint).
		SetResult(&body).
		Get("/latest/dex/tokens/{mint}")
	if err == nil && resp.StatusCode() != http.StatusOK {
		err = fmt.Errorf("dexscreener status %d", resp.StatusCode())
	}
	observability.RecordProviderCall("dexscreener", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDataUnavailable, err)
	}

	pair := deepestPair(mint, body.Pairs)
	if pair == nil {
		return nil, fmt.Errorf("%w: no pairs for %s", domain.ErrDataUnavailable, mint)
	}
	pair.FetchedAt = s.now().UnixMilli()
	pair.Source = domain.SourceWatchlist
	s.log.Debug().Str("mint", mint).Str("pair", pair.PairAddress).Msg("pair fetched")
	return pair, nil
}

// deepestPair picks the pair quoting mint as base token with the largest
// USD liquidity. Pairs without liquidity lose to any pair that has it.
func deepestPair(mint string, pairs []*normalize.DexPair) *normalize.DexPair {
	var best *normalize.DexPair
	bestLiq := -1.0
	for _, p := range pairs {
		if p == nil || p.BaseToken.Address != mint {
			continue
		}
		liq := 0.0
		if p.Liquidity != nil && p.Liquidity.USD.Value != nil {
			liq = *p.Liquidity.USD.Value
		}
		if liq > bestLiq {
			best, bestLiq = p, liq
		}
	}
	return best
}
