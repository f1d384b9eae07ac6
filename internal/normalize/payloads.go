package normalize

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"solana-token-engine/internal/domain"
)

// Payload is a provider record that the Normalizer can turn into a TokenSnapshot.
type Payload interface {
	// MintAddress returns the raw (uncleaned) mint as reported by the provider.
	MintAddress() string
	// ObservedAtMs returns the observation time in Unix ms, 0 if unknown.
	ObservedAtMs() int64
}

// FlexFloat decodes JSON numbers, numeric strings, and null/empty values.
// Providers are inconsistent about quoting numbers.
type FlexFloat struct {
	Value *float64
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		f.Value = nil
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.NewReplacer("$", "", ",", "", "%", "").Replace(s))
		if s == "" {
			f.Value = nil
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Unparseable values degrade to undefined rather than failing the record.
		f.Value = nil
		return nil
	}
	f.Value = &v
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f FlexFloat) MarshalJSON() ([]byte, error) {
	if f.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*f.Value)
}

// Flex wraps a float for building payloads in code.
func Flex(v float64) FlexFloat {
	return FlexFloat{Value: &v}
}

// DexPair is one pair from the Dexscreener tokens/pairs endpoints.
type DexPair struct {
	ChainID       string        `json:"chainId"`
	PairAddress   string        `json:"pairAddress"`
	BaseToken     DexToken      `json:"baseToken"`
	QuoteToken    DexToken      `json:"quoteToken"`
	PriceUsd      FlexFloat     `json:"priceUsd"`
	PriceNative   FlexFloat     `json:"priceNative"`
	Txns          DexTxns       `json:"txns"`
	Volume        DexWindows    `json:"volume"`
	PriceChange   DexWindows    `json:"priceChange"`
	Liquidity     *DexLiquidity `json:"liquidity"`
	FDV           FlexFloat     `json:"fdv"`
	MarketCap     FlexFloat     `json:"marketCap"`
	PairCreatedAt *int64        `json:"pairCreatedAt"`

	FetchedAt int64         `json:"-"` // set by the source, Unix ms
	Source    domain.Source `json:"-"`
	Label     string        `json:"-"`
}

type DexToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type DexTxns struct {
	M5  DexTxnCount `json:"m5"`
	H1  DexTxnCount `json:"h1"`
	H6  DexTxnCount `json:"h6"`
	H24 DexTxnCount `json:"h24"`
}

type DexTxnCount struct {
	Buys  *int64 `json:"buys"`
	Sells *int64 `json:"sells"`
}

type DexWindows struct {
	M5  FlexFloat `json:"m5"`
	H1  FlexFloat `json:"h1"`
	H6  FlexFloat `json:"h6"`
	H24 FlexFloat `json:"h24"`
}

type DexLiquidity struct {
	USD   FlexFloat `json:"usd"`
	Base  FlexFloat `json:"base"`
	Quote FlexFloat `json:"quote"`
}

// MintAddress implements Payload.
func (p *DexPair) MintAddress() string { return p.BaseToken.Address }

// ObservedAtMs implements Payload.
func (p *DexPair) ObservedAtMs() int64 { return p.FetchedAt }

// TrendingToken is one entry of a trending export file.
type TrendingToken struct {
	Address          string    `json:"address"`
	TokenName        string    `json:"tokenName"`
	TokenSymbol      string    `json:"tokenSymbol"`
	PriceUsd         FlexFloat `json:"priceUsd"`
	MarketCapUsd     FlexFloat `json:"marketCapUsd"`
	LiquidityUsd     FlexFloat `json:"liquidityUsd"`
	AgeHours         FlexFloat `json:"age"`
	VolumeUsd        FlexFloat `json:"volumeUsd"`
	MakerCount       FlexFloat `json:"makerCount"`
	TransactionCount FlexFloat `json:"transactionCount"`
	PriceChange5m    FlexFloat `json:"priceChange5m"`
	PriceChange1h    FlexFloat `json:"priceChange1h"`

	FetchedAt int64  `json:"-"`
	Label     string `json:"-"`
}

// MintAddress implements Payload.
func (t *TrendingToken) MintAddress() string { return t.Address }

// ObservedAtMs implements Payload.
func (t *TrendingToken) ObservedAtMs() int64 { return t.FetchedAt }

// ManualQuote is an operator-supplied observation.
type ManualQuote struct {
	Mint       string
	ObservedAt int64
	Price      float64
	Liquidity  *float64
	Volume5m   *float64
	Volume24h  *float64
	Holders    *int64
	Source     domain.Source // defaults to MANUAL
}

// MintAddress implements Payload.
func (q *ManualQuote) MintAddress() string { return q.Mint }

// ObservedAtMs implements Payload.
func (q *ManualQuote) ObservedAtMs() int64 { return q.ObservedAt }
