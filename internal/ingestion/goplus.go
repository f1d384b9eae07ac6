package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/observability"
)

// GoPlusOptions configures a GoPlusSource.
type GoPlusOptions struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MinInterval time.Duration // 2.1s keeps under 30 requests per minute
	Now         func() time.Time
	Logger      zerolog.Logger
}

// GoPlusSource reads token security facts from the GoPlus Solana endpoint.
type GoPlusSource struct {
	http  *resty.Client
	pacer *Pacer
	now   func() time.Time
	log   zerolog.Logger
}

func NewGoPlusSource(opts GoPlusOptions) *GoPlusSource {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.gopluslabs.io"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")
	if opts.APIKey != "" {
		c.SetHeader("Authorization", opts.APIKey)
	}
	return &GoPlusSource{
		http:  c,
		pacer: NewPacer(opts.MinInterval),
		now:   opts.Now,
		log:   opts.Logger.With().Str("component", "goplus").Logger(),
	}
}

func (s *GoPlusSource) Name() string { return "goplus" }

type goplusResponse struct {
	Code    int                        `json:"code"`
	Message string                     `json:"message"`
	Result  map[string]json.RawMessage `json:"result"`
}

// goplusFlag accepts "1", 1, true and {"status":"1"}.
type goplusFlag struct {
	Value *bool
}

func (f *goplusFlag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '{' {
		var obj struct {
			Status json.RawMessage `json:"status"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if len(obj.Status) == 0 {
			return nil
		}
		return f.UnmarshalJSON(obj.Status)
	}

	raw := strings.Trim(string(data), `"`)
	switch strings.ToLower(raw) {
	case "1", "true":
		f.Value = boolPtr(true)
	case "0", "false":
		f.Value = boolPtr(false)
	}
	return nil
}

type goplusHolder struct {
	Percent json.Number `json:"percent"`
}

type goplusToken struct {
	IsHoneypot           goplusFlag `json:"is_honeypot"`
	IsBlacklisted        goplusFlag `json:"is_blacklisted"`
	IsProxy              goplusFlag `json:"is_proxy"`
	TradingPaused        goplusFlag `json:"trading_paused"`
	CanTakeBackOwnership goplusFlag `json:"can_take_back_ownership"`
	MintAuthority        goplusFlag `json:"mint_authority_exist"`
	Mintable             goplusFlag `json:"mintable"`
	FreezeAuthority      goplusFlag `json:"freeze_authority_exist"`
	Freezable            goplusFlag `json:"freezable"`
	AntiBot              goplusFlag `json:"anti_bot"`
	MetadataMutable      goplusFlag `json:"metadata_mutable"`

	TaxFee      json.RawMessage `json:"tax_fee"`
	TopHolders  json.RawMessage `json:"top_holders"`
	Holders     json.RawMessage `json:"holders"`
	HolderCount json.RawMessage `json:"holder_count"`
	LPHolders   json.RawMessage `json:"lp_holders"`
}

// Fetch implements FactsSource. An empty result is reported as
// domain.ErrDataUnavailable.
func (s *GoPlusSource) Fetch(ctx context.Context, mint string) (*domain.SecurityFacts, error) {
	if err := s.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	var body goplusResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("contract_addresses", mint).
		SetQueryParam("address", mint).
		SetResult(&body).
		Get("/api/v1/solana/token_security")
	if err == nil && resp.StatusCode() != http.StatusOK {
		err = fmt.Errorf("goplus status %d", resp.StatusCode())
	}
	observability.RecordProviderCall(s.Name(), time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDataUnavailable, err)
	}

	raw := goplusEntry(mint, body.Result)
	if raw == nil {
		s.log.Debug().Str("mint", mint).Msg("no security data")
		return nil, fmt.Errorf("%w: goplus NO_DATA for %s", domain.ErrDataUnavailable, mint)
	}
	var tok goplusToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("%w: decode goplus result: %w", domain.ErrDataUnavailable, err)
	}
	return s.facts(mint, &tok), nil
}

// goplusEntry returns the token object from result, which is either keyed by
// address or the token object itself.
func goplusEntry(mint string, result map[string]json.RawMessage) json.RawMessage {
	if len(result) == 0 {
		return nil
	}
	if raw, ok := result[mint]; ok {
		return raw
	}
	for k, raw := range result {
		if strings.EqualFold(k, mint) {
			return raw
		}
	}
	for k, raw := range result {
		if len(k) >= 32 && len(raw) > 0 && raw[0] == '{' {
			return raw
		}
	}
	obj, err := json.Marshal(result)
	if err != nil {
		return nil
	}
	return obj
}

func (s *GoPlusSource) facts(mint string, t *goplusToken) *domain.SecurityFacts {
	f := &domain.SecurityFacts{
		Mint:                  mint,
		FetchedAt:             s.now().UnixMilli(),
		Source:                s.Name(),
		IsHoneypot:            t.IsHoneypot.Value,
		IsBlacklisted:         t.IsBlacklisted.Value,
		IsProxy:               t.IsProxy.Value,
		TradingPaused:         t.TradingPaused.Value,
		CanTakeBackOwnership:  t.CanTakeBackOwnership.Value,
		MintAuthorityExists:   firstFlag(t.MintAuthority, t.Mintable),
		FreezeAuthorityExists: firstFlag(t.FreezeAuthority, t.Freezable),
		AntiBot:               t.AntiBot.Value,
		MetadataMutable:       t.MetadataMutable.Value,
		TaxFee:                parseLooseFloat(t.TaxFee),
		HolderCount:           parseLooseInt(t.HolderCount),
	}

	holders := t.TopHolders
	if len(holders) == 0 || string(holders) == "null" {
		holders = t.Holders
	}
	f.TopHolderPcts = parseHolderPcts(holders)

	if n := parseLooseInt(t.LPHolders); n != nil {
		f.LPHolders = n
	} else if list := decodeList(t.LPHolders); list != nil {
		n := int64(len(list))
		f.LPHolders = &n
	}
	return f
}

func firstFlag(flags ...goplusFlag) *bool {
	for _, f := range flags {
		if f.Value != nil {
			return f.Value
		}
	}
	return nil
}

// parseLooseFloat reads a number or numeric string.
func parseLooseFloat(raw json.RawMessage) *float64 {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseLooseInt(raw json.RawMessage) *int64 {
	v := parseLooseFloat(raw)
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}

// decodeList accepts a JSON array or a string containing one.
func decodeList(raw json.RawMessage) []json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		raw = []byte(s)
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return list
}

// parseHolderPcts returns holder shares as fractions, largest first.
// Values above 1 are read as percentages.
func parseHolderPcts(raw json.RawMessage) []float64 {
	list := decodeList(raw)
	if len(list) == 0 {
		return nil
	}
	out := make([]float64, 0, len(list))
	for _, item := range list {
		var h goplusHolder
		if err := json.Unmarshal(item, &h); err != nil {
			continue
		}
		v, err := strconv.ParseFloat(h.Percent.String(), 64)
		if err != nil {
			continue
		}
		if v > 1 {
			v /= 100
		}
		out = append(out, v)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}
