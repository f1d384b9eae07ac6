package scoring

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"solana-token-engine/internal/domain"
)

type fixedScorer struct {
	rec   Recommendation
	calls int
}

func (f *fixedScorer) Score(*domain.FeatureVector, *domain.SecurityVerdict) Recommendation {
	f.calls++
	return f.rec
}

func (f *fixedScorer) ID() string { return "FIXED" }

func TestAdapter_DangerOverride(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	actions := []domain.Action{domain.ActionBuy, domain.ActionSell, domain.ActionHold, domain.ActionReject, "BOGUS"}

	for i := 0; i < 200; i++ {
		inner := &fixedScorer{rec: Recommendation{
			Action:     actions[rng.Intn(len(actions))],
			Confidence: rng.Float64()*3 - 1,
		}}
		a := NewAdapter(inner)
		fv := &domain.FeatureVector{Price: rng.Float64(), Liquidity: ptr(rng.Float64() * 1e6)}
		v := &domain.SecurityVerdict{Status: domain.VerdictDanger, Reasons: []string{"honeypot"}}

		rec := a.Score(fv, v)
		assert.Equal(t, domain.ActionReject, rec.Action)
		assert.Equal(t, 1.0, rec.Confidence)
		assert.Equal(t, []string{"security verdict DANGER", "honeypot"}, rec.Reasons)
		assert.Zero(t, inner.calls, "scorer is not consulted on DANGER")
	}
}

func TestAdapter_Sanitizes(t *testing.T) {
	safe := &domain.SecurityVerdict{Status: domain.VerdictSafe}

	rec := NewAdapter(&fixedScorer{rec: Recommendation{Action: domain.ActionBuy, Confidence: 1.7}}).Score(nil, safe)
	assert.Equal(t, 1.0, rec.Confidence)

	rec = NewAdapter(&fixedScorer{rec: Recommendation{Action: domain.ActionBuy, Confidence: math.NaN()}}).Score(nil, safe)
	assert.Equal(t, 0.0, rec.Confidence)

	rec = NewAdapter(&fixedScorer{rec: Recommendation{Action: "YOLO", Confidence: 0.9}}).Score(nil, safe)
	assert.Equal(t, domain.ActionHold, rec.Action)
	assert.Equal(t, 0.0, rec.Confidence)

	rec = NewAdapter(&fixedScorer{rec: Recommendation{Action: domain.ActionBuy, Confidence: 0.9}}).Score(nil, nil)
	assert.Equal(t, domain.ActionHold, rec.Action, "missing verdict never buys")
}

func TestAdapter_ID(t *testing.T) {
	assert.Equal(t, "FIXED", NewAdapter(&fixedScorer{}).ID())
}
