// Package normalize converts heterogeneous provider payloads into canonical
// TokenSnapshot records.
package normalize

import (
	"fmt"
	"math"
	"time"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/idhash"
)

// ErrMissingPrice is returned when a payload carries no usable price.
var ErrMissingPrice = fmt.Errorf("%w: price missing", domain.ErrDataUnavailable)

// ErrUnknownPayload is returned for payload types the Normalizer does not know.
var ErrUnknownPayload = fmt.Errorf("%w: unknown payload type", domain.ErrDataUnavailable)

// Normalizer maps provider payloads to snapshots. Stateless apart from the clock.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a Normalizer. A nil clock means time.Now.
func NewNormalizer(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

// Normalize validates the payload and produces a snapshot with its id set.
// Optional fields that are absent, negative or unparseable become nil.
func (n *Normalizer) Normalize(p Payload) (*domain.TokenSnapshot, error) {
	if p == nil {
		return nil, ErrUnknownPayload
	}
	mint, err := CleanMint(p.MintAddress())
	if err != nil {
		return nil, err
	}

	observedAt := p.ObservedAtMs()
	if observedAt <= 0 {
		observedAt = n.now().UnixMilli()
	}

	var snap *domain.TokenSnapshot
	switch v := p.(type) {
	case *DexPair:
		snap = fromDexPair(v)
	case *TrendingToken:
		snap = fromTrending(v, observedAt)
	case *ManualQuote:
		snap = fromManual(v)
	default:
		return nil, ErrUnknownPayload
	}

	if !validPrice(snap.Price) {
		return nil, ErrMissingPrice
	}

	snap.Mint = mint
	snap.ObservedAt = observedAt
	if !snap.Source.IsValid() {
		snap.Source = domain.SourceWatchlist
	}
	snap.SnapshotID = idhash.ComputeSnapshotID(snap.Mint, snap.ObservedAt, snap.Source)
	return snap, nil
}

func fromDexPair(p *DexPair) *domain.TokenSnapshot {
	s := &domain.TokenSnapshot{
		Price:       value(p.PriceUsd),
		Volume5m:    nonNegative(p.Volume.M5),
		Volume1h:    nonNegative(p.Volume.H1),
		Volume6h:    nonNegative(p.Volume.H6),
		Volume24h:   nonNegative(p.Volume.H24),
		MarketCap:   nonNegative(p.MarketCap),
		FDV:         nonNegative(p.FDV),
		BuyCount5m:  nonNegativeInt(p.Txns.M5.Buys),
		SellCount5m: nonNegativeInt(p.Txns.M5.Sells),
		Source:      p.Source,
		SourceLabel: p.Label,
	}
	if p.Liquidity != nil {
		s.Liquidity = nonNegative(p.Liquidity.USD)
		s.PooledBase = nonNegative(p.Liquidity.Base)
		s.PooledQuote = nonNegative(p.Liquidity.Quote)
	}
	if p.PairAddress != "" {
		addr := p.PairAddress
		s.PairAddress = &addr
	}
	if p.PairCreatedAt != nil && *p.PairCreatedAt > 0 {
		created := *p.PairCreatedAt
		s.PairCreated = &created
	}
	return s
}

func fromTrending(t *TrendingToken, observedAt int64) *domain.TokenSnapshot {
	s := &domain.TokenSnapshot{
		Price:       value(t.PriceUsd),
		Liquidity:   nonNegative(t.LiquidityUsd),
		Volume24h:   nonNegative(t.VolumeUsd),
		MarketCap:   nonNegative(t.MarketCapUsd),
		Source:      domain.SourceTrending,
		SourceLabel: t.Label,
	}
	if makers := nonNegative(t.MakerCount); makers != nil {
		holders := int64(*makers)
		s.Holders = &holders
	}
	if age := nonNegative(t.AgeHours); age != nil {
		created := observedAt - int64(*age*float64(time.Hour/time.Millisecond))
		s.PairCreated = &created
	}
	return s
}

func fromManual(q *ManualQuote) *domain.TokenSnapshot {
	s := &domain.TokenSnapshot{
		Price:     q.Price,
		Liquidity: nonNegativePtr(q.Liquidity),
		Volume5m:  nonNegativePtr(q.Volume5m),
		Volume24h: nonNegativePtr(q.Volume24h),
		Source:    q.Source,
	}
	if s.Source == "" {
		s.Source = domain.SourceManual
	}
	if q.Holders != nil && *q.Holders >= 0 {
		h := *q.Holders
		s.Holders = &h
	}
	return s
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}

func value(f FlexFloat) float64 {
	if f.Value == nil {
		return 0
	}
	return *f.Value
}

func nonNegative(f FlexFloat) *float64 {
	return nonNegativePtr(f.Value)
}

func nonNegativePtr(v *float64) *float64 {
	if v == nil || *v < 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return nil
	}
	c := *v
	return &c
}

func nonNegativeInt(v *int64) *int64 {
	if v == nil || *v < 0 {
		return nil
	}
	c := *v
	return &c
}
