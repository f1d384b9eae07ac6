package domain

// WindowDelta holds percentage changes over one lookback window.
// A nil field means undefined: no sample old enough, missing input, or old == 0.
type WindowDelta struct {
	WindowMs  int64    // lookback length in milliseconds
	BaseAt    *int64   // observed_at of the sample the delta is measured from
	Price     *float64 // (new - old) / old
	Volume    *float64 // change of 5m volume
	MarketCap *float64
	Liquidity *float64
}

// FeatureVector holds per-token derived metrics at one point in time.
// Computed only from snapshots retained in the window store for the mint.
type FeatureVector struct {
	Mint             string
	SnapshotID       string // newest snapshot used
	At               int64  // Unix timestamp in milliseconds
	SampleCount      int
	WindowStart      int64 // observed_at of the earliest retained sample
	Price            float64
	Liquidity        *float64
	Volume5m         *float64
	Volume24h        *float64
	MarketCap        *float64
	AgeMs            *int64
	LiquidityTrend   *float64 // liquidity change over the longest window
	BuySellImbalance *float64 // (buys - sells) / (buys + sells) over 5m
	Windows          []WindowDelta
	Insufficient     bool // true when built from spot values only
}

// Window returns the delta for the given lookback, or nil if not configured.
func (f *FeatureVector) Window(windowMs int64) *WindowDelta {
	if f == nil {
		return nil
	}
	for i := range f.Windows {
		if f.Windows[i].WindowMs == windowMs {
			return &f.Windows[i]
		}
	}
	return nil
}
