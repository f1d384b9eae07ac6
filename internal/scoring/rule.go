package scoring

import (
	"fmt"
	"time"

	"solana-token-engine/internal/domain"
)

// Reasons produced by the rule scorer.
const (
	ReasonLiquidityBelowMin = "liquidity below minimum"
	ReasonVolumeBelowMin    = "volume below minimum"
)

// RuleParams are the thresholds of the rule-based scorer.
type RuleParams struct {
	MinLiquidity     float64
	MinVolume5m      float64
	MaxAge           time.Duration // 0 disables the age limit
	BuyConfidence    float64
	HoldConfidence   float64
	ExitConfidence   float64
	WarningPenalty   float64
	MinBuyConfidence float64
	TakeProfitPct    float64 // price rise over ExitWindow that triggers SELL
	StopLossPct      float64 // price drop over ExitWindow that triggers SELL
	ExitWindow       time.Duration
}

// RuleScorer is a deterministic threshold policy over liquidity, volume and age.
type RuleScorer struct {
	p RuleParams
}

// NewRuleScorer creates a RuleScorer.
func NewRuleScorer(p RuleParams) *RuleScorer {
	return &RuleScorer{p: p}
}

// ID returns the scorer identifier including parameters.
func (s *RuleScorer) ID() string {
	return fmt.Sprintf("RULE_liq%.0f_vol%.0f_tp%.0f_sl%.0f",
		s.p.MinLiquidity, s.p.MinVolume5m, s.p.TakeProfitPct*100, s.p.StopLossPct*100)
}

// Score evaluates thresholds in order: exit triggers, market minimums, age,
// then entry. The minimums gate entries only, so a drained pool never masks a
// stop loss.
func (s *RuleScorer) Score(fv *domain.FeatureVector, v *domain.SecurityVerdict) Recommendation {
	if fv == nil {
		return Recommendation{Action: domain.ActionHold, Confidence: s.p.HoldConfidence, Reasons: []string{"features unavailable"}}
	}

	if w := fv.Window(s.p.ExitWindow.Milliseconds()); w != nil && w.Price != nil {
		change := *w.Price
		switch {
		case s.p.TakeProfitPct > 0 && change >= s.p.TakeProfitPct:
			return Recommendation{Action: domain.ActionSell, Confidence: s.p.ExitConfidence,
				Reasons: []string{fmt.Sprintf("take profit: price %+.1f%% over %s", change*100, s.p.ExitWindow)}}
		case s.p.StopLossPct > 0 && change <= -s.p.StopLossPct:
			return Recommendation{Action: domain.ActionSell, Confidence: s.p.ExitConfidence,
				Reasons: []string{fmt.Sprintf("stop loss: price %+.1f%% over %s", change*100, s.p.ExitWindow)}}
		}
	}

	if fv.Liquidity == nil || *fv.Liquidity < s.p.MinLiquidity {
		return Recommendation{Action: domain.ActionReject, Confidence: 1, Reasons: []string{ReasonLiquidityBelowMin}}
	}
	if fv.Volume5m == nil || *fv.Volume5m < s.p.MinVolume5m {
		return Recommendation{Action: domain.ActionReject, Confidence: 1, Reasons: []string{ReasonVolumeBelowMin}}
	}

	if s.p.MaxAge > 0 && fv.AgeMs != nil && *fv.AgeMs > s.p.MaxAge.Milliseconds() {
		return Recommendation{Action: domain.ActionHold, Confidence: s.p.HoldConfidence,
			Reasons: []string{fmt.Sprintf("token older than %s", s.p.MaxAge)}}
	}

	reasons := []string{
		fmt.Sprintf("liquidity %.0f >= %.0f", *fv.Liquidity, s.p.MinLiquidity),
		fmt.Sprintf("volume 5m %.0f >= %.0f", *fv.Volume5m, s.p.MinVolume5m),
	}
	confidence := s.p.BuyConfidence
	if v != nil && v.Status == domain.VerdictWarning {
		confidence -= s.p.WarningPenalty
		reasons = append(reasons, "security warning")
		reasons = append(reasons, v.Reasons...)
	}
	if confidence < s.p.MinBuyConfidence {
		return Recommendation{Action: domain.ActionHold, Confidence: s.p.HoldConfidence,
			Reasons: append(reasons, fmt.Sprintf("confidence %.2f below %.2f", confidence, s.p.MinBuyConfidence))}
	}
	return Recommendation{Action: domain.ActionBuy, Confidence: confidence, Reasons: reasons}
}

var _ Scorer = (*RuleScorer)(nil)
