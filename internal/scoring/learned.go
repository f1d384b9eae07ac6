package scoring

import (
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"solana-token-engine/internal/domain"
)

// ModelParams is a pre-trained logistic model. Feature names follow the
// pattern used by FeatureMap, e.g. price_change_5m or log_liquidity.
type ModelParams struct {
	ID             string             `yaml:"id"`
	Intercept      float64            `yaml:"intercept"`
	Weights        map[string]float64 `yaml:"weights"`
	BuyThreshold   float64            `yaml:"buy_threshold"`
	SellThreshold  float64            `yaml:"sell_threshold"`
	WarningPenalty float64            `yaml:"warning_penalty"`
}

// Validate checks that the parameters describe a usable model.
func (p *ModelParams) Validate() error {
	if len(p.Weights) == 0 {
		return fmt.Errorf("%w: no weights", ErrInvalidModelParams)
	}
	if p.BuyThreshold <= 0 || p.BuyThreshold > 1 {
		return fmt.Errorf("%w: buy_threshold must be in (0,1]", ErrInvalidModelParams)
	}
	if p.SellThreshold < 0 || p.SellThreshold >= p.BuyThreshold {
		return fmt.Errorf("%w: sell_threshold must be in [0, buy_threshold)", ErrInvalidModelParams)
	}
	for name, w := range p.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: weight %s is not finite", ErrInvalidModelParams, name)
		}
	}
	return nil
}

// LoadParams reads model parameters from a YAML or JSON file.
func LoadParams(path string) (*ModelParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model params: %w", err)
	}
	var p ModelParams
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidModelParams, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LearnedScorer evaluates a logistic model. It holds only immutable parameters.
type LearnedScorer struct {
	params ModelParams
	names  []string // sorted weight names for deterministic reasons
}

// NewLearnedScorer creates a LearnedScorer. The weights map is copied.
func NewLearnedScorer(p ModelParams) *LearnedScorer {
	weights := make(map[string]float64, len(p.Weights))
	names := make([]string, 0, len(p.Weights))
	for k, v := range p.Weights {
		weights[k] = v
		names = append(names, k)
	}
	sort.Strings(names)
	p.Weights = weights
	return &LearnedScorer{params: p, names: names}
}

// ID returns the model identifier.
func (s *LearnedScorer) ID() string {
	if s.params.ID != "" {
		return "LEARNED_" + s.params.ID
	}
	return fmt.Sprintf("LEARNED_%dw", len(s.names))
}

// Probability returns the model's buy probability and the features that had to be imputed.
func (s *LearnedScorer) Probability(fv *domain.FeatureVector) (float64, []string) {
	features := FeatureMap(fv)
	z := s.params.Intercept
	var imputed []string
	for _, name := range s.names {
		x, ok := features[name]
		if !ok {
			imputed = append(imputed, name)
			continue
		}
		z += s.params.Weights[name] * x
	}
	return 1 / (1 + math.Exp(-z)), imputed
}

// Score maps the probability onto BUY, SELL or HOLD.
func (s *LearnedScorer) Score(fv *domain.FeatureVector, v *domain.SecurityVerdict) Recommendation {
	if fv == nil {
		return Recommendation{Action: domain.ActionHold, Reasons: []string{"features unavailable"}}
	}

	p, imputed := s.Probability(fv)
	reasons := []string{fmt.Sprintf("model p=%.3f", p)}
	for _, name := range imputed {
		reasons = append(reasons, "imputed "+name)
	}

	buyScore := p
	if v != nil && v.Status == domain.VerdictWarning {
		buyScore -= s.params.WarningPenalty
		reasons = append(reasons, "security warning")
	}

	switch {
	case buyScore >= s.params.BuyThreshold:
		return Recommendation{Action: domain.ActionBuy, Confidence: buyScore, Reasons: reasons}
	case p <= s.params.SellThreshold:
		return Recommendation{Action: domain.ActionSell, Confidence: 1 - p, Reasons: reasons}
	default:
		return Recommendation{Action: domain.ActionHold, Confidence: 1 - math.Abs(2*p-1), Reasons: reasons}
	}
}

// FeatureMap flattens a FeatureVector into named numeric features. Undefined
// values are absent from the map.
func FeatureMap(fv *domain.FeatureVector) map[string]float64 {
	m := make(map[string]float64)
	if fv == nil {
		return m
	}
	if fv.Price > 0 {
		m["log_price"] = math.Log(fv.Price)
	}
	setLog(m, "log_liquidity", fv.Liquidity)
	setLog(m, "log_volume_5m", fv.Volume5m)
	setLog(m, "log_volume_24h", fv.Volume24h)
	setLog(m, "log_market_cap", fv.MarketCap)
	set(m, "liquidity_trend", fv.LiquidityTrend)
	set(m, "buy_sell_imbalance", fv.BuySellImbalance)
	if fv.AgeMs != nil {
		m["age_hours"] = float64(*fv.AgeMs) / 3_600_000
	}
	for _, w := range fv.Windows {
		suffix := WindowName(w.WindowMs)
		set(m, "price_change_"+suffix, w.Price)
		set(m, "volume_change_"+suffix, w.Volume)
		set(m, "mcap_change_"+suffix, w.MarketCap)
		set(m, "liquidity_change_"+suffix, w.Liquidity)
	}
	return m
}

// WindowName formats a lookback as 30s, 5m or 1h.
func WindowName(ms int64) string {
	switch {
	case ms > 0 && ms%3_600_000 == 0:
		return fmt.Sprintf("%dh", ms/3_600_000)
	case ms > 0 && ms%60_000 == 0:
		return fmt.Sprintf("%dm", ms/60_000)
	default:
		return fmt.Sprintf("%ds", ms/1000)
	}
}

func set(m map[string]float64, name string, v *float64) {
	if v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) {
		m[name] = *v
	}
}

func setLog(m map[string]float64, name string, v *float64) {
	if v != nil && *v >= 0 {
		m[name] = math.Log1p(*v)
	}
}

var _ Scorer = (*LearnedScorer)(nil)
