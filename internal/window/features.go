package window

import (
	"solana-token-engine/internal/domain"
)

// Features computes the FeatureVector for a mint at the given time (Unix ms).
// at <= 0 means the newest sample's time.
//
// Returns domain.ErrInsufficientHistory when the retained history is shorter than
// the smallest lookback and domain.ErrStaleData when the newest sample at or
// before at is older than MaxStaleness.
func (s *Store) Features(mint string, at int64) (*domain.FeatureVector, error) {
	ser := s.get(mint)
	if ser == nil {
		return nil, domain.ErrInsufficientHistory
	}
	ser.mu.RLock()
	defer ser.mu.RUnlock()

	r := ser.ring
	if r.len() == 0 {
		return nil, domain.ErrInsufficientHistory
	}
	if at <= 0 {
		at = r.newest().ObservedAt
	}

	idx := r.latestAtOrBefore(at)
	if idx < 0 {
		return nil, domain.ErrInsufficientHistory
	}
	cur := r.at(idx)
	if s.opts.MaxStaleness > 0 && at-cur.ObservedAt > s.opts.MaxStaleness.Milliseconds() {
		return nil, domain.ErrStaleData
	}

	first := r.oldest()
	if len(s.lookbacks) > 0 && at-first.ObservedAt < s.lookbacks[0] {
		return nil, domain.ErrInsufficientHistory
	}

	fv := s.withWindows(spot(cur, at, first.ObservedAt, idx+1))
	var trendBase *domain.TokenSnapshot
	for i, w := range s.lookbacks {
		baseIdx := r.latestAtOrBefore(at - w)
		if baseIdx < 0 {
			continue
		}
		base := r.at(baseIdx)
		fv.Windows[i] = delta(w, base, cur)
		trendBase = base
	}
	if trendBase != nil {
		fv.LiquidityTrend = pctChange(trendBase.Liquidity, cur.Liquidity)
	}
	fv.Insufficient = false
	return fv, nil
}

// Spot returns a FeatureVector built from the newest sample at or before at only.
// Every window delta is undefined. Used when history is insufficient.
func (s *Store) Spot(mint string, at int64) (*domain.FeatureVector, error) {
	ser := s.get(mint)
	if ser == nil {
		return nil, domain.ErrInsufficientHistory
	}
	ser.mu.RLock()
	defer ser.mu.RUnlock()

	r := ser.ring
	if r.len() == 0 {
		return nil, domain.ErrInsufficientHistory
	}
	if at <= 0 {
		at = r.newest().ObservedAt
	}
	idx := r.latestAtOrBefore(at)
	if idx < 0 {
		return nil, domain.ErrInsufficientHistory
	}
	return s.withWindows(spot(r.at(idx), at, r.oldest().ObservedAt, idx+1)), nil
}

func (s *Store) withWindows(fv *domain.FeatureVector) *domain.FeatureVector {
	fv.Windows = make([]domain.WindowDelta, len(s.lookbacks))
	for i, w := range s.lookbacks {
		fv.Windows[i] = domain.WindowDelta{WindowMs: w}
	}
	return fv
}

func spot(cur *domain.TokenSnapshot, at, windowStart int64, samples int) *domain.FeatureVector {
	fv := &domain.FeatureVector{
		Mint:             cur.Mint,
		SnapshotID:       cur.SnapshotID,
		At:               at,
		SampleCount:      samples,
		WindowStart:      windowStart,
		Price:            cur.Price,
		Liquidity:        copyFloat(cur.Liquidity),
		Volume5m:         copyFloat(cur.Volume5m),
		Volume24h:        copyFloat(cur.Volume24h),
		MarketCap:        copyFloat(cur.MarketCap),
		BuySellImbalance: imbalance(cur.BuyCount5m, cur.SellCount5m),
		Insufficient:     true,
	}

	var age int64
	if cur.PairCreated != nil && *cur.PairCreated > 0 && *cur.PairCreated <= at {
		age = at - *cur.PairCreated
	} else {
		age = at - windowStart
	}
	fv.AgeMs = &age
	return fv
}

func delta(windowMs int64, base, cur *domain.TokenSnapshot) domain.WindowDelta {
	baseAt := base.ObservedAt
	basePrice, curPrice := base.Price, cur.Price
	return domain.WindowDelta{
		WindowMs:  windowMs,
		BaseAt:    &baseAt,
		Price:     pctChange(&basePrice, &curPrice),
		Volume:    pctChange(base.Volume5m, cur.Volume5m),
		MarketCap: pctChange(base.MarketCap, cur.MarketCap),
		Liquidity: pctChange(base.Liquidity, cur.Liquidity),
	}
}

// pctChange returns (cur - old) / old, or nil when either side is undefined or old == 0.
func pctChange(old, cur *float64) *float64 {
	if old == nil || cur == nil || *old == 0 {
		return nil
	}
	v := (*cur - *old) / *old
	return &v
}

func imbalance(buys, sells *int64) *float64 {
	if buys == nil || sells == nil {
		return nil
	}
	total := *buys + *sells
	if total == 0 {
		return nil
	}
	v := float64(*buys-*sells) / float64(total)
	return &v
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
