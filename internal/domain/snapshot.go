package domain

// TokenSnapshot is one timestamped observation of a token's market state.
// Immutable once normalized. Corresponds to token_snapshots table in ClickHouse.
type TokenSnapshot struct {
	SnapshotID  string   // SHA256(mint|observed_at|source)
	Mint        string   // token mint address (base58)
	ObservedAt  int64    // Unix timestamp in milliseconds
	Price       float64  // USD price, always > 0
	Liquidity   *float64 // USD liquidity, NULL if provider omitted it
	PooledBase  *float64 // base token amount in the pool
	PooledQuote *float64 // quote (SOL) amount in the pool
	Volume5m    *float64
	Volume1h    *float64
	Volume6h    *float64
	Volume24h   *float64
	MarketCap   *float64
	FDV         *float64
	BuyCount5m  *int64
	SellCount5m *int64
	Holders     *int64
	TotalSupply *float64
	PairAddress *string
	PairCreated *int64 // pair creation time (Unix ms), NULL if unknown
	Source      Source
	SourceLabel string // provider-specific label, e.g. "5m Trending"
}

// Clone returns a deep copy so stores never share pointers with callers.
func (s *TokenSnapshot) Clone() *TokenSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.Liquidity = cloneFloat(s.Liquidity)
	c.PooledBase = cloneFloat(s.PooledBase)
	c.PooledQuote = cloneFloat(s.PooledQuote)
	c.Volume5m = cloneFloat(s.Volume5m)
	c.Volume1h = cloneFloat(s.Volume1h)
	c.Volume6h = cloneFloat(s.Volume6h)
	c.Volume24h = cloneFloat(s.Volume24h)
	c.MarketCap = cloneFloat(s.MarketCap)
	c.FDV = cloneFloat(s.FDV)
	c.BuyCount5m = cloneInt(s.BuyCount5m)
	c.SellCount5m = cloneInt(s.SellCount5m)
	c.Holders = cloneInt(s.Holders)
	c.TotalSupply = cloneFloat(s.TotalSupply)
	c.PairCreated = cloneInt(s.PairCreated)
	if s.PairAddress != nil {
		v := *s.PairAddress
		c.PairAddress = &v
	}
	return &c
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
