// Package scoring turns feature vectors and security verdicts into trade
// recommendations. Scorers are interchangeable implementations of one
// capability; the Adapter wraps any of them and enforces the security override.
package scoring

import (
	"math"

	"solana-token-engine/internal/domain"
)

// Recommendation is a scorer's proposed action.
type Recommendation struct {
	Action     domain.Action
	Confidence float64
	Reasons    []string
}

// Scorer produces a recommendation from features and a verdict.
// Implementations must not mutate their state while scoring.
type Scorer interface {
	Score(fv *domain.FeatureVector, v *domain.SecurityVerdict) Recommendation

	// ID returns scorer identifier (includes parameters).
	ID() string
}

// Adapter wraps a Scorer. A DANGER verdict always yields REJECT with confidence 1.0.
type Adapter struct {
	scorer Scorer
}

// NewAdapter creates an Adapter around s.
func NewAdapter(s Scorer) *Adapter {
	return &Adapter{scorer: s}
}

// ID returns the wrapped scorer's identifier.
func (a *Adapter) ID() string {
	return a.scorer.ID()
}

// Score applies the security override, then delegates to the wrapped scorer
// and sanitizes its output.
func (a *Adapter) Score(fv *domain.FeatureVector, v *domain.SecurityVerdict) Recommendation {
	if v == nil {
		return Recommendation{Action: domain.ActionHold, Confidence: 0, Reasons: []string{"no security verdict"}}
	}
	if v.Status == domain.VerdictDanger {
		reasons := []string{"security verdict DANGER"}
		reasons = append(reasons, v.Reasons...)
		return Recommendation{Action: domain.ActionReject, Confidence: 1.0, Reasons: reasons}
	}

	rec := a.scorer.Score(fv, v)
	if !rec.Action.IsValid() {
		return Recommendation{
			Action:     domain.ActionHold,
			Confidence: 0,
			Reasons:    append([]string{"scorer returned unknown action " + string(rec.Action)}, rec.Reasons...),
		}
	}
	rec.Confidence = clamp01(rec.Confidence)
	return rec
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
