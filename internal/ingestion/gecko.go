package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/observability"
)

const geckoMaxCandles = 1000

// Candle is one minute OHLCV bar in USD. OpenTime is Unix ms.
type Candle struct {
	OpenTime  int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	VolumeUSD float64
}

// GeckoOptions configures a GeckoTerminalSource.
type GeckoOptions struct {
	BaseURL     string
	Timeout     time.Duration
	MinInterval time.Duration
	Now         func() time.Time
	Logger      zerolog.Logger
}

// GeckoTerminalSource reads minute candles for a mint's deepest Solana pool.
type GeckoTerminalSource struct {
	http  *resty.Client
	pacer *Pacer
	now   func() time.Time
	log   zerolog.Logger
}

func NewGeckoTerminalSource(opts GeckoOptions) *GeckoTerminalSource {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.geckoterminal.com/api/v2"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &GeckoTerminalSource{
		http: resty.New().
			SetBaseURL(opts.BaseURL).
			SetTimeout(opts.Timeout).
			SetHeader("Accept", "application/json"),
		pacer: NewPacer(opts.MinInterval),
		now:   opts.Now,
		log:   opts.Logger.With().Str("component", "geckoterminal").Logger(),
	}
}

func (s *GeckoTerminalSource) Name() string { return "geckoterminal" }

type geckoPoolsResponse struct {
	Data []struct {
		Attributes struct {
			Address       string `json:"address"`
			ReserveInUSD  string `json:"reserve_in_usd"`
			PoolCreatedAt string `json:"pool_created_at"`
		} `json:"attributes"`
	} `json:"data"`
}

type geckoOHLCVResponse struct {
	Data struct {
		Attributes struct {
			OHLCVList [][]float64 `json:"ohlcv_list"`
		} `json:"attributes"`
	} `json:"data"`
}

// Candles returns closed minute candles opened at or after since, oldest
// first.
func (s *GeckoTerminalSource) Candles(ctx context.Context, mint string, since time.Time) ([]Candle, error) {
	pool, err := s.bestPool(ctx, mint)
	if err != nil {
		return nil, err
	}

	now := s.now()
	limit := int(now.Sub(since)/time.Minute) + 1
	if limit > geckoMaxCandles {
		limit = geckoMaxCandles
	}
	if limit < 1 {
		return nil, nil
	}

	var body geckoOHLCVResponse
	if err := s.get(ctx, "/networks/solana/pools/{pool}/ohlcv/minute", map[string]string{"pool": pool}, map[string]string{
		"aggregate":               "1",
		"before_timestamp":        strconv.FormatInt(now.Unix(), 10),
		"limit":                   strconv.Itoa(limit),
		"currency":                "usd",
		"include_empty_intervals": "true",
		"token":                   "base",
	}, &body); err != nil {
		return nil, err
	}

	cutoff := since.UnixMilli()
	closedBy := now.UnixMilli()
	out := make([]Candle, 0, len(body.Data.Attributes.OHLCVList))
	for _, row := range body.Data.Attributes.OHLCVList {
		if len(row) < 6 {
			continue
		}
		c := Candle{
			OpenTime:  int64(row[0]) * 1000,
			Open:      row[1],
			High:      row[2],
			Low:       row[3],
			Close:     row[4],
			VolumeUSD: row[5],
		}
		if c.OpenTime < cutoff || c.OpenTime+time.Minute.Milliseconds() > closedBy {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })
	return out, nil
}

// bestPool picks the pool with the largest USD reserve, newest first on ties.
func (s *GeckoTerminalSource) bestPool(ctx context.Context, mint string) (string, error) {
	var body geckoPoolsResponse
	if err := s.get(ctx, "/networks/solana/tokens/{mint}/pools", map[string]string{"mint": mint},
		map[string]string{"page": "1"}, &body); err != nil {
		return "", err
	}

	best, bestReserve, bestCreated := "", -1.0, ""
	for _, p := range body.Data {
		a := p.Attributes
		if a.Address == "" {
			continue
		}
		reserve, _ := strconv.ParseFloat(a.ReserveInUSD, 64)
		if reserve > bestReserve || (reserve == bestReserve && a.PoolCreatedAt > bestCreated) {
			best, bestReserve, bestCreated = a.Address, reserve, a.PoolCreatedAt
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: no geckoterminal pool for %s", domain.ErrDataUnavailable, mint)
	}
	return best, nil
}

func (s *GeckoTerminalSource) get(ctx context.Context, path string, pathParams, query map[string]string, out any) error {
	if err := s.pacer.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	resp, err := s.http.R().
		SetContext(ctx).
		SetPathParams(pathParams).
		SetQueryParams(query).
		SetResult(out).
		Get(path)
	if err == nil && resp.StatusCode() != http.StatusOK {
		err = fmt.Errorf("geckoterminal status %d", resp.StatusCode())
	}
	observability.RecordProviderCall(s.Name(), time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDataUnavailable, err)
	}
	return nil
}
