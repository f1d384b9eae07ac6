package screener

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-engine/internal/domain"
)

const mint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

var t0 = time.UnixMilli(1_700_000_000_000)

func bptr(b bool) *bool { return &b }
func fptr(f float64) *float64 { return &f }
func snap() *domain.TokenSnapshot { return &domain.TokenSnapshot{Mint: mint, SnapshotID: "snap-1", Price: 1} }

func testOptions(policy string) Options {
	return Options{
		CombinePolicy:    policy,
		WarningThreshold: 0.5,
		MaxTop1Pct:       0.2,
		MaxTaxFee:        0.05,
		DangerCooldown:   time.Hour,
		MaxFactsAge:      15 * time.Minute,
		Weights: Weights{
			Concentration:   0.3,
			MintAuthority:   0.3,
			FreezeAuthority: 0.7,
			AntiBot:         0.5,
			TaxFee:          0.25,
			MutableMetadata: 0.3,
			Proxy:           0.4,
		},
	}
}

func cleanFacts(at time.Time) *domain.SecurityFacts {
	return &domain.SecurityFacts{
		Mint:                  mint,
		FetchedAt:             at.UnixMilli(),
		IsHoneypot:            bptr(false),
		IsBlacklisted:         bptr(false),
		TradingPaused:         bptr(false),
		CanTakeBackOwnership:  bptr(false),
		MintAuthorityExists:   bptr(false),
		FreezeAuthorityExists: bptr(false),
		TopHolderPcts:         []float64{0.05, 0.04, 0.03},
	}
}

func TestEvaluate_Safe(t *testing.T) {
	s := New(testOptions(CombineMax))
	v := s.Evaluate(snap(), cleanFacts(t0), t0)

	assert.Equal(t, domain.VerdictSafe, v.Status)
	assert.True(t, v.FactsAvailable)
	assert.Empty(t, v.Reasons)
	assert.Equal(t, "snap-1", v.SnapshotID)
	require.NotNil(t, v.HeldByTop5)
	assert.InDelta(t, 0.12, *v.HeldByTop5, 1e-9)
}

func TestEvaluate_HardRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *domain.SecurityFacts)
		reason string
	}{
		{"honeypot", func(f *domain.SecurityFacts) { f.IsHoneypot = bptr(true) }, ReasonHoneypot},
		{"blacklisted", func(f *domain.SecurityFacts) { f.IsBlacklisted = bptr(true) }, ReasonBlacklisted},
		{"paused", func(f *domain.SecurityFacts) { f.TradingPaused = bptr(true) }, ReasonTradingPaused},
		{"take back ownership", func(f *domain.SecurityFacts) { f.CanTakeBackOwnership = bptr(true) }, ReasonTakeBackOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(testOptions(CombineMax))
			f := cleanFacts(t0)
			tt.mutate(f)

			v := s.Evaluate(snap(), f, t0)
			assert.Equal(t, domain.VerdictDanger, v.Status)
			assert.Contains(t, v.Reasons, tt.reason)
			assert.False(t, v.Sticky)
		})
	}
}

func TestEvaluate_MissingFactsFailClosed(t *testing.T) {
	s := New(testOptions(CombineMax))

	v := s.Evaluate(snap(), nil, t0)
	assert.Equal(t, domain.VerdictWarning, v.Status)
	assert.False(t, v.FactsAvailable)
	assert.Equal(t, []string{ReasonFactsUnavailable}, v.Reasons)

	old := cleanFacts(t0.Add(-time.Hour))
	v = s.Evaluate(snap(), old, t0)
	assert.Equal(t, domain.VerdictWarning, v.Status)
	assert.Equal(t, []string{ReasonFactsStale}, v.Reasons)

	other := cleanFacts(t0)
	other.Mint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	v = s.Evaluate(snap(), other, t0)
	assert.Equal(t, domain.VerdictWarning, v.Status, "facts for another mint are unusable")
}

func TestEvaluate_CombinePolicy(t *testing.T) {
	facts := func() *domain.SecurityFacts {
		f := cleanFacts(t0)
		f.MintAuthorityExists = bptr(true) // 0.3
		f.TaxFee = fptr(0.10)              // 0.25
		return f
	}

	t.Run("max stays below threshold", func(t *testing.T) {
		v := New(testOptions(CombineMax)).Evaluate(snap(), facts(), t0)
		assert.Equal(t, domain.VerdictSafe, v.Status)
		assert.InDelta(t, 0.3, v.RiskScore, 1e-9)
	})

	t.Run("additive crosses threshold", func(t *testing.T) {
		v := New(testOptions(CombineAdditive)).Evaluate(snap(), facts(), t0)
		assert.Equal(t, domain.VerdictWarning, v.Status)
		assert.InDelta(t, 0.55, v.RiskScore, 1e-9)
		assert.Equal(t, []string{"mint authority present", "tax fee 10.0%"}, v.Reasons)
	})

	t.Run("single heavy rule warns under max", func(t *testing.T) {
		f := cleanFacts(t0)
		f.FreezeAuthorityExists = bptr(true)
		v := New(testOptions(CombineMax)).Evaluate(snap(), f, t0)
		assert.Equal(t, domain.VerdictWarning, v.Status)
		assert.Contains(t, v.Reasons, "freeze authority present")
	})

	t.Run("unknown policy defaults to max", func(t *testing.T) {
		v := New(testOptions("bogus")).Evaluate(snap(), facts(), t0)
		assert.InDelta(t, 0.3, v.RiskScore, 1e-9)
	})
}

func TestEvaluate_Concentration(t *testing.T) {
	f := cleanFacts(t0)
	f.TopHolderPcts = []float64{0.1, 0.45, 0.05}
	opts := testOptions(CombineMax)
	opts.Weights.Concentration = 0.6

	v := New(opts).Evaluate(snap(), f, t0)
	assert.Equal(t, domain.VerdictWarning, v.Status)
	require.NotNil(t, v.HeldByTop1)
	assert.InDelta(t, 0.45, *v.HeldByTop1, 1e-9)
	assert.Equal(t, []string{"top holder owns 45.0%"}, v.Reasons)
}

func TestEvaluate_StickyDanger(t *testing.T) {
	s := New(testOptions(CombineMax))

	bad := cleanFacts(t0)
	bad.IsHoneypot = bptr(true)
	require.Equal(t, domain.VerdictDanger, s.Evaluate(snap(), bad, t0).Status)

	// A clean scan inside the cool-down does not lift DANGER.
	later := t0.Add(10 * time.Minute)
	v := s.Evaluate(snap(), cleanFacts(later), later)
	assert.Equal(t, domain.VerdictDanger, v.Status)
	assert.True(t, v.Sticky)
	assert.Equal(t, []string{ReasonCooldown}, v.Reasons)

	// Cool-down over but facts fetched before the danger are not a fresh scan.
	afterCooldown := t0.Add(2 * time.Hour)
	staleScan := cleanFacts(t0.Add(-time.Minute))
	opts := testOptions(CombineMax)
	opts.MaxFactsAge = 0
	s2 := New(opts)
	s2.Evaluate(snap(), bad, t0)
	v = s2.Evaluate(snap(), staleScan, afterCooldown)
	assert.Equal(t, domain.VerdictDanger, v.Status)
	assert.Equal(t, []string{ReasonAwaitingRescan}, v.Reasons)

	// Missing facts after the cool-down keep DANGER as well.
	v = s.Evaluate(snap(), nil, afterCooldown)
	assert.Equal(t, domain.VerdictDanger, v.Status)

	// Fresh clean scan after the cool-down clears it.
	v = s.Evaluate(snap(), cleanFacts(afterCooldown), afterCooldown)
	assert.Equal(t, domain.VerdictSafe, v.Status)
	_, marked := s.DangerSince(mint)
	assert.False(t, marked)
}

func TestEvaluate_RepeatDangerRestartsCooldown(t *testing.T) {
	s := New(testOptions(CombineMax))
	bad := cleanFacts(t0)
	bad.IsBlacklisted = bptr(true)

	s.Evaluate(snap(), bad, t0)
	s.Evaluate(snap(), bad, t0.Add(50*time.Minute))

	since, ok := s.DangerSince(mint)
	require.True(t, ok)
	assert.Equal(t, t0.Add(50*time.Minute).UnixMilli(), since.UnixMilli())

	v := s.Evaluate(snap(), cleanFacts(t0.Add(70*time.Minute)), t0.Add(70*time.Minute))
	assert.Equal(t, domain.VerdictDanger, v.Status, "cool-down counts from the latest hard hit")
}

func TestReset(t *testing.T) {
	s := New(testOptions(CombineMax))
	bad := cleanFacts(t0)
	bad.IsHoneypot = bptr(true)
	s.Evaluate(snap(), bad, t0)

	s.Reset()

	v := s.Evaluate(snap(), cleanFacts(t0), t0)
	assert.Equal(t, domain.VerdictSafe, v.Status)
}

func TestHeldByTopN(t *testing.T) {
	assert.Nil(t, HeldByTopN(nil, 1))
	assert.Nil(t, HeldByTopN([]float64{0.1}, 0))

	pcts := []float64{0.05, 0.3, 0.1}
	assert.InDelta(t, 0.3, *HeldByTopN(pcts, 1), 1e-9)
	assert.InDelta(t, 0.45, *HeldByTopN(pcts, 10), 1e-9)
	assert.Equal(t, []float64{0.05, 0.3, 0.1}, pcts, "input is not reordered")
}
