package engine

import (
	"context"
	"errors"
	"fmt"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/idhash"
	"solana-token-engine/internal/normalize"
	"solana-token-engine/internal/observability"
	"solana-token-engine/internal/window"
)

// Reasons recorded by the engine itself.
const (
	ReasonInsufficientHistory = "insufficient history: spot features only"
	ReasonWindowReset         = "stale data: window reset"
	ReasonBuyCapped           = "buy capped to hold on degraded features"
	ReasonActivePosition      = "active position exists"
	ReasonNoActivePosition    = "no active position"
	ReasonLiquidityBelowMin   = "liquidity below minimum"
	ReasonVolumeBelowMin      = "volume below minimum"
	ReasonKillSwitch          = "kill switch active"
	ReasonLiquidityExit       = "exit: liquidity below minimum"
)

// cycle is the tagged state threaded through the stages. stage names the
// last stage that completed; a stage that cannot continue sets the outcome
// and returns false.
type cycle struct {
	mint    string
	stage   domain.Stage
	payload normalize.Payload

	snap     *domain.TokenSnapshot
	features *domain.FeatureVector
	verdict  *domain.SecurityVerdict
	degraded bool

	action     domain.Action
	confidence float64
	reasons    []string
	scorerID   string
	size       float64
}

func (c *cycle) hold(reason string) {
	c.action = domain.ActionHold
	c.confidence = 0
	c.reasons = append(c.reasons, reason)
}

func (c *cycle) reject(reason string) {
	c.action = domain.ActionReject
	c.confidence = 1
	c.size = 0
	c.reasons = append(c.reasons, reason)
}

// stageFunc advances c. A non-nil error drops the cycle without a decision.
type stageFunc func(ctx context.Context, c *cycle) (bool, error)

func (e *Engine) normalized(ctx context.Context, c *cycle) (bool, error) {
	snap, err := e.opts.Normalizer.Normalize(c.payload)
	if err != nil {
		observability.RecordStageFailure("normalize")
		c.hold("normalize: " + err.Error())
		return false, nil
	}
	c.snap = snap
	c.stage = domain.StageNormalized
	observability.RecordSnapshotIngested(string(snap.Source))

	if e.opts.Snapshots != nil {
		if err := e.opts.Snapshots.InsertBulk(ctx, []*domain.TokenSnapshot{snap}); err != nil {
			e.log.Warn().Err(err).Str("mint", c.mint).Msg("persist snapshot")
		}
	}
	return true, nil
}

func (e *Engine) windowed(_ context.Context, c *cycle) (bool, error) {
	res, err := e.opts.Window.Ingest(c.snap)
	switch {
	case errors.Is(err, window.ErrDuplicateSnapshot):
		observability.RecordSnapshotDropped("duplicate")
		return false, fmt.Errorf("%w: %w", ErrSnapshotDropped, err)
	case errors.Is(err, window.ErrOutOfOrder):
		observability.RecordSnapshotDropped("out_of_order")
		return false, fmt.Errorf("%w: %w", ErrSnapshotDropped, err)
	case err != nil:
		observability.RecordStageFailure("window")
		c.hold("window: " + err.Error())
		return false, nil
	}
	if res.Reset {
		observability.RecordWindowReset()
		c.degraded = true
		c.reasons = append(c.reasons, ReasonWindowReset)
	}

	at := c.snap.ObservedAt
	fv, err := e.opts.Window.Features(c.mint, at)
	switch {
	case errors.Is(err, domain.ErrInsufficientHistory):
		fv, err = e.opts.Window.Spot(c.mint, at)
		if err != nil {
			c.hold("window: " + err.Error())
			return false, nil
		}
		c.degraded = true
		c.reasons = append(c.reasons, ReasonInsufficientHistory)
	case errors.Is(err, domain.ErrStaleData):
		e.opts.Window.Reset(c.mint)
		observability.RecordWindowReset()
		c.hold(ReasonWindowReset)
		return false, nil
	case err != nil:
		observability.RecordStageFailure("window")
		c.hold("window: " + err.Error())
		return false, nil
	}
	c.features = fv
	c.stage = domain.StageWindowed
	return true, nil
}

func (e *Engine) screened(ctx context.Context, c *cycle) (bool, error) {
	var facts *domain.SecurityFacts
	if e.opts.Facts != nil {
		fctx := ctx
		if e.opts.ProviderTimeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(ctx, e.opts.ProviderTimeout)
			defer cancel()
		}
		f, err := e.opts.Facts.Fetch(fctx, c.mint)
		if err != nil {
			observability.RecordStageFailure("security_facts")
			e.log.Warn().Err(err).Str("mint", c.mint).Msg("security facts unavailable")
		} else {
			facts = f
		}
	}

	c.verdict = e.opts.Screener.Evaluate(c.snap, facts, e.now())
	observability.RecordVerdict(string(c.verdict.Status))
	c.stage = domain.StageScreened
	return true, nil
}

func (e *Engine) scored(_ context.Context, c *cycle) (bool, error) {
	rec := e.opts.Scorer.Score(c.features, c.verdict)
	c.scorerID = e.opts.Scorer.ID()
	c.action = rec.Action
	c.confidence = rec.Confidence
	c.reasons = append(c.reasons, rec.Reasons...)
	c.stage = domain.StageScored
	return true, nil
}

// gated applies the policy gates. A DANGER REJECT always passes untouched.
func (e *Engine) gated(_ context.Context, c *cycle) (bool, error) {
	switch c.action {
	case domain.ActionBuy:
		e.gateBuy(c)
	case domain.ActionSell:
		e.gateSell(c)
	case domain.ActionHold, domain.ActionReject:
		e.gateExit(c)
	}
	c.stage = domain.StageGated
	return true, nil
}

func (e *Engine) gateBuy(c *cycle) {
	if pos := e.opts.Ledger.ActivePosition(c.mint); pos != nil {
		c.reject(ReasonActivePosition)
		return
	}
	g := e.opts.Gates
	fv := c.features
	if fv.Liquidity == nil || *fv.Liquidity < g.MinLiquidity {
		c.reject(ReasonLiquidityBelowMin)
		return
	}
	if fv.Volume5m == nil || *fv.Volume5m < g.MinVolume5m {
		c.reject(ReasonVolumeBelowMin)
		return
	}
	if c.degraded {
		c.action = domain.ActionHold
		c.reasons = append(c.reasons, ReasonBuyCapped)
		return
	}
	if ks := e.opts.KillSwitch; ks != nil && ks.IsActive() {
		_, why, _ := ks.Status()
		c.action = domain.ActionHold
		c.reasons = append(c.reasons, fmt.Sprintf("%s: %s", ReasonKillSwitch, why))
		return
	}
	if e.opts.PositionSizeQuote <= 0 || c.snap.Price <= 0 {
		c.hold("position size not configured")
		return
	}
	c.size = e.opts.PositionSizeQuote / c.snap.Price
}

func (e *Engine) gateSell(c *cycle) {
	pos := e.opts.Ledger.ActivePosition(c.mint)
	if pos == nil || pos.State != domain.PositionOpen {
		c.reject(ReasonNoActivePosition)
		return
	}
	c.size = pos.Size
}

// gateExit turns a non-trade outcome into a SELL when an open position's pool
// has drained below the liquidity minimum.
func (e *Engine) gateExit(c *cycle) {
	if c.verdict != nil && c.verdict.Status == domain.VerdictDanger {
		return
	}
	fv := c.features
	if fv == nil || fv.Liquidity == nil || *fv.Liquidity >= e.opts.Gates.MinLiquidity {
		return
	}
	pos := e.opts.Ledger.ActivePosition(c.mint)
	if pos == nil || pos.State != domain.PositionOpen {
		return
	}
	c.action = domain.ActionSell
	c.confidence = 1
	c.size = pos.Size
	c.reasons = append(c.reasons, ReasonLiquidityExit)
}

func decisionID(mint string, cycle uint64, snapshotID string) string {
	return idhash.ComputeDecisionID(mint, cycle, snapshotID)
}
