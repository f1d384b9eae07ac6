// Package screener classifies tokens as SAFE, WARNING or DANGER from raw
// security facts. Hard-reject rules force DANGER; weighted soft rules combine
// into a risk score that yields WARNING above a threshold. DANGER is sticky per
// mint for a cool-down and until a scan fetched after the danger confirms safety.
package screener

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-token-engine/internal/domain"
)

// Combine policies for soft-risk rules.
const (
	CombineAdditive = "additive"
	CombineMax      = "max"
)

// Reasons recorded on verdicts.
const (
	ReasonHoneypot         = "honeypot"
	ReasonBlacklisted      = "blacklisted"
	ReasonTradingPaused    = "trading paused"
	ReasonTakeBackOwner    = "owner can take back ownership"
	ReasonFactsUnavailable = "security facts unavailable"
	ReasonFactsStale       = "security facts stale"
	ReasonCooldown         = "danger cool-down active"
	ReasonAwaitingRescan   = "danger awaiting fresh clean scan"
)

// Weights are the soft-risk contributions of each rule.
type Weights struct {
	Concentration   float64
	MintAuthority   float64
	FreezeAuthority float64
	AntiBot         float64
	TaxFee          float64
	MutableMetadata float64
	Proxy           float64
}

// Options configures a Screener.
type Options struct {
	CombinePolicy    string
	WarningThreshold float64
	MaxTop1Pct       float64 // top-1 holder share above this is a risk, as a fraction
	MaxTaxFee        float64
	DangerCooldown   time.Duration
	MaxFactsAge      time.Duration // facts older than this count as unavailable
	Weights          Weights
	Logger           zerolog.Logger
}

// Screener evaluates security facts. The only state it keeps is the explicit
// per-mint danger_since mapping used for the sticky cool-down.
type Screener struct {
	opts Options
	log  zerolog.Logger

	mu          sync.Mutex
	dangerSince map[string]int64 // mint -> Unix ms of the latest hard-rule hit
}

// New creates a Screener.
func New(opts Options) *Screener {
	if opts.CombinePolicy != CombineAdditive {
		opts.CombinePolicy = CombineMax
	}
	return &Screener{
		opts:        opts,
		log:         opts.Logger.With().Str("component", "screener").Logger(),
		dangerSince: make(map[string]int64),
	}
}

// Evaluate produces a verdict for the snapshot from the given facts.
// facts may be nil, which is treated as unavailable (WARNING, never SAFE).
func (s *Screener) Evaluate(snap *domain.TokenSnapshot, facts *domain.SecurityFacts, now time.Time) *domain.SecurityVerdict {
	nowMs := now.UnixMilli()
	v := &domain.SecurityVerdict{
		Mint:        snap.Mint,
		SnapshotID:  snap.SnapshotID,
		EvaluatedAt: nowMs,
		Status:      domain.VerdictSafe,
	}

	available, reason := s.factsUsable(snap.Mint, facts, nowMs)
	v.FactsAvailable = available
	if available {
		fill(v, facts)
	}

	hard := hardReasons(v)
	if len(hard) > 0 {
		s.markDanger(snap.Mint, nowMs)
		v.Status = domain.VerdictDanger
		v.Reasons = append(v.Reasons, hard...)
		v.RiskScore = 1
		return v
	}

	if since, ok := s.dangerFor(snap.Mint); ok {
		switch {
		case now.Sub(time.UnixMilli(since)) < s.opts.DangerCooldown:
			return sticky(v, ReasonCooldown)
		case !available || facts.FetchedAt <= since:
			return sticky(v, ReasonAwaitingRescan)
		default:
			s.clearDanger(snap.Mint)
			s.log.Info().Str("mint", snap.Mint).Msg("danger cool-down cleared by fresh scan")
		}
	}

	if !available {
		v.Status = domain.VerdictWarning
		v.Reasons = append(v.Reasons, reason)
		return v
	}

	risk, soft := s.softRisk(v)
	v.RiskScore = risk
	if len(soft) > 0 && risk >= s.opts.WarningThreshold {
		v.Status = domain.VerdictWarning
		v.Reasons = append(v.Reasons, soft...)
	}
	return v
}

func (s *Screener) factsUsable(mint string, facts *domain.SecurityFacts, nowMs int64) (bool, string) {
	if facts == nil || (facts.Mint != "" && facts.Mint != mint) {
		return false, ReasonFactsUnavailable
	}
	if s.opts.MaxFactsAge > 0 && nowMs-facts.FetchedAt > s.opts.MaxFactsAge.Milliseconds() {
		return false, ReasonFactsStale
	}
	return true, ""
}

func fill(v *domain.SecurityVerdict, f *domain.SecurityFacts) {
	v.IsHoneypot = isTrue(f.IsHoneypot)
	v.IsBlacklisted = isTrue(f.IsBlacklisted)
	v.IsProxy = isTrue(f.IsProxy)
	v.TradingPaused = isTrue(f.TradingPaused)
	v.CanTakeBackOwnership = isTrue(f.CanTakeBackOwnership)
	v.MintAuthorityExists = isTrue(f.MintAuthorityExists)
	v.FreezeAuthorityExists = isTrue(f.FreezeAuthorityExists)
	v.AntiBot = isTrue(f.AntiBot)
	v.MetadataMutable = isTrue(f.MetadataMutable)
	v.HeldByTop1 = HeldByTopN(f.TopHolderPcts, 1)
	v.HeldByTop5 = HeldByTopN(f.TopHolderPcts, 5)
	v.HeldByTop10 = HeldByTopN(f.TopHolderPcts, 10)
	if f.TaxFee != nil {
		tax := *f.TaxFee
		v.TaxFee = &tax
	}
}

func hardReasons(v *domain.SecurityVerdict) []string {
	var reasons []string
	if v.IsHoneypot {
		reasons = append(reasons, ReasonHoneypot)
	}
	if v.IsBlacklisted {
		reasons = append(reasons, ReasonBlacklisted)
	}
	if v.TradingPaused {
		reasons = append(reasons, ReasonTradingPaused)
	}
	if v.CanTakeBackOwnership {
		reasons = append(reasons, ReasonTakeBackOwner)
	}
	return reasons
}

// softRisk scores each soft rule and combines the scores per policy.
func (s *Screener) softRisk(v *domain.SecurityVerdict) (float64, []string) {
	w := s.opts.Weights
	var (
		scores  []float64
		reasons []string
	)
	add := func(hit bool, weight float64, reason string) {
		if hit && weight > 0 {
			scores = append(scores, weight)
			reasons = append(reasons, reason)
		}
	}

	if v.HeldByTop1 != nil {
		add(*v.HeldByTop1 > s.opts.MaxTop1Pct, w.Concentration,
			fmt.Sprintf("top holder owns %.1f%%", *v.HeldByTop1*100))
	}
	add(v.MintAuthorityExists, w.MintAuthority, "mint authority present")
	add(v.FreezeAuthorityExists, w.FreezeAuthority, "freeze authority present")
	add(v.AntiBot, w.AntiBot, "anti-bot restrictions")
	if v.TaxFee != nil {
		add(*v.TaxFee > s.opts.MaxTaxFee, w.TaxFee, fmt.Sprintf("tax fee %.1f%%", *v.TaxFee*100))
	}
	add(v.MetadataMutable, w.MutableMetadata, "metadata mutable")
	add(v.IsProxy, w.Proxy, "proxy contract")

	return combine(s.opts.CombinePolicy, scores), reasons
}

func combine(policy string, scores []float64) float64 {
	var total float64
	for _, sc := range scores {
		if policy == CombineAdditive {
			total += sc
		} else if sc > total {
			total = sc
		}
	}
	return total
}

func sticky(v *domain.SecurityVerdict, reason string) *domain.SecurityVerdict {
	v.Status = domain.VerdictDanger
	v.Sticky = true
	v.RiskScore = 1
	v.Reasons = append(v.Reasons, reason)
	return v
}

func (s *Screener) markDanger(mint string, nowMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.dangerSince[mint]; !ok {
		s.log.Warn().Str("mint", mint).Msg("mint marked dangerous")
	}
	s.dangerSince[mint] = nowMs
}

func (s *Screener) dangerFor(mint string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	since, ok := s.dangerSince[mint]
	return since, ok
}

func (s *Screener) clearDanger(mint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dangerSince, mint)
}

// DangerSince returns when the mint was last marked dangerous.
func (s *Screener) DangerSince(mint string) (time.Time, bool) {
	since, ok := s.dangerFor(mint)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(since), true
}

// Reset clears every cool-down.
func (s *Screener) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dangerSince = make(map[string]int64)
}

// HeldByTopN returns the combined share of the n largest holders, or nil
// when no holder data is known.
func HeldByTopN(pcts []float64, n int) *float64 {
	if len(pcts) == 0 || n <= 0 {
		return nil
	}
	sorted := append([]float64(nil), pcts...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	if n > len(sorted) {
		n = len(sorted)
	}
	var sum float64
	for _, p := range sorted[:n] {
		sum += p
	}
	return &sum
}

func isTrue(b *bool) bool {
	return b != nil && *b
}
