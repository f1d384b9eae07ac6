// Package engine runs decision cycles: one snapshot in, one Decision out,
// with trade decisions carried through the ledger and the execution adapter.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-token-engine/internal/audit"
	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/execution"
	"solana-token-engine/internal/ledger"
	"solana-token-engine/internal/normalize"
	"solana-token-engine/internal/observability"
	"solana-token-engine/internal/scoring"
	"solana-token-engine/internal/screener"
	"solana-token-engine/internal/storage"
	"solana-token-engine/internal/window"
)

// ErrSnapshotDropped is returned when a snapshot is a duplicate or arrives
// out of order. No decision is produced for it.
var ErrSnapshotDropped = errors.New("snapshot dropped")

// FactsSource fetches security facts for a mint.
type FactsSource interface {
	Fetch(ctx context.Context, mint string) (*domain.SecurityFacts, error)
}

// Sink receives audit events. Publish must not block.
type Sink interface {
	Publish(ev *domain.AuditEvent)
}

// Gates are the policy checks applied after scoring.
type Gates struct {
	MinLiquidity float64
	MinVolume5m  float64
}

// Options wires an Engine. Facts, Decisions, Snapshots, Sink and KillSwitch
// are optional.
type Options struct {
	Normalizer *normalize.Normalizer
	Window     *window.Store
	Screener   *screener.Screener
	Scorer     *scoring.Adapter
	Ledger     *ledger.Ledger
	Executor   execution.Adapter

	Facts      FactsSource
	Decisions  storage.DecisionStore
	Snapshots  storage.SnapshotStore
	Sink       Sink
	KillSwitch *KillSwitch

	Gates             Gates
	PositionSizeQuote float64 // quote amount spent per BUY
	ProviderTimeout   time.Duration
	Now               func() time.Time
	Logger            zerolog.Logger
}

// Engine is safe for concurrent use across mints. Cycles for one mint must
// be serialized by the caller; Pool does that.
type Engine struct {
	opts Options
	now  func() time.Time
	log  zerolog.Logger

	mu     sync.Mutex
	cycles map[string]uint64
}

// New creates an Engine.
func New(opts Options) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.Normalizer == nil {
		opts.Normalizer = normalize.NewNormalizer(now)
	}
	return &Engine{
		opts:   opts,
		now:    now,
		log:    opts.Logger,
		cycles: make(map[string]uint64),
	}
}

// nextCycle returns the next per-mint cycle number. A mint's first cycle in
// this process resumes after the highest cycle in the decision log or the
// ledger, whichever is larger.
func (e *Engine) nextCycle(ctx context.Context, mint string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, seen := e.cycles[mint]
	if !seen && e.opts.Decisions != nil {
		stored, err := e.opts.Decisions.MaxCycle(ctx, mint)
		if err != nil {
			e.log.Warn().Err(err).Str("mint", mint).Msg("load last decision cycle")
		}
		n = stored
	}
	if last := e.opts.Ledger.LastCycle(mint); last > n {
		n = last
	}
	n++
	e.cycles[mint] = n
	return n
}

// Process runs one decision cycle for the payload's mint. Bad data for the
// token degrades the decision to HOLD or REJECT rather than failing. An error
// is returned only when no decision can be attributed: an invalid mint or a
// dropped snapshot.
func (e *Engine) Process(ctx context.Context, p normalize.Payload) (*domain.Decision, error) {
	start := time.Now()
	if p == nil {
		return nil, normalize.ErrUnknownPayload
	}
	mint, err := normalize.CleanMint(p.MintAddress())
	if err != nil {
		observability.RecordSnapshotDropped("invalid_mint")
		return nil, err
	}

	c := &cycle{mint: mint, stage: domain.StageNewSnapshot, payload: p}
	for _, step := range []stageFunc{e.normalized, e.windowed, e.screened, e.scored, e.gated} {
		cont, err := step(ctx, c)
		if err != nil {
			return nil, err
		}
		if !cont {
			break
		}
	}

	d := e.decide(ctx, c)
	observability.RecordDecision(string(d.Action), time.Since(start).Seconds(), e.now().Unix())

	if d.Action.IsTrade() {
		e.execute(ctx, d)
	}
	return d, nil
}

// decide turns the cycle into an immutable Decision. Trade actions are
// accepted by the ledger before the decision is emitted; a refusal turns the
// decision into a REJECT.
func (e *Engine) decide(ctx context.Context, c *cycle) *domain.Decision {
	cycleNo := e.nextCycle(ctx, c.mint)
	snapshotID := ""
	price := 0.0
	if c.snap != nil {
		snapshotID = c.snap.SnapshotID
		price = c.snap.Price
	}

	d := &domain.Decision{
		DecisionID: decisionID(c.mint, cycleNo, snapshotID),
		Mint:       c.mint,
		Cycle:      cycleNo,
		Action:     c.action,
		Confidence: c.confidence,
		Reasons:    c.reasons,
		Stage:      c.stage,
		ScorerID:   c.scorerID,
		Price:      price,
		Size:       c.size,
		CreatedAt:  e.now().UnixMilli(),
	}
	if c.verdict != nil {
		d.VerdictSnapshotID = c.verdict.SnapshotID
		d.VerdictStatus = c.verdict.Status
	}

	if d.Action.IsTrade() {
		if _, err := e.opts.Ledger.Accept(ctx, d); err != nil {
			observability.RecordStageFailure("ledger")
			e.log.Warn().Err(err).Str("mint", d.Mint).Uint64("cycle", d.Cycle).Msg("ledger refused decision")
			d.Action = domain.ActionReject
			d.Confidence = 1
			d.Size = 0
			d.Reasons = append(d.Reasons, "ledger: "+err.Error())
		}
	}
	if c.stage == domain.StageGated {
		d.Stage = domain.StageDecided
	}

	e.emit(ctx, d)
	return d
}

func (e *Engine) emit(ctx context.Context, d *domain.Decision) {
	if e.opts.Decisions != nil {
		if err := e.opts.Decisions.Insert(ctx, d); err != nil {
			e.log.Error().Err(err).Str("decision_id", d.DecisionID).Msg("persist decision")
		}
	}
	if e.opts.Sink != nil {
		e.opts.Sink.Publish(audit.NewDecisionEvent(d))
	}

	ev := e.log.Debug()
	if d.Action.IsTrade() {
		ev = e.log.Info()
	}
	ev.Str("mint", d.Mint).
		Uint64("cycle", d.Cycle).
		Str("decision_id", d.DecisionID).
		Str("action", string(d.Action)).
		Float64("confidence", d.Confidence).
		Str("stage", string(d.Stage)).
		Strs("reasons", d.Reasons).
		Msg("decision")
}

// execute submits an accepted trade decision and settles it in the ledger.
func (e *Engine) execute(ctx context.Context, d *domain.Decision) {
	var res *domain.ExecutionResult
	switch d.Action {
	case domain.ActionBuy:
		res = e.opts.Executor.SubmitBuy(ctx, d.Mint, d.Size)
	case domain.ActionSell:
		res = e.opts.Executor.SubmitSell(ctx, d.Mint, d.Size)
	}

	filled := res.IsAck() && res.FillPrice > 0
	if e.opts.KillSwitch != nil {
		e.opts.KillSwitch.RecordExecution(filled)
	}
	if !filled {
		e.log.Warn().
			Err(domain.ErrExecutionFailed).
			Str("mint", d.Mint).
			Str("decision_id", d.DecisionID).
			Str("status", string(res.Status)).
			Str("reason", res.Reason).
			Msg("execution failed")
	}

	if _, err := e.opts.Ledger.Apply(ctx, d, res); err != nil {
		observability.RecordStageFailure("ledger")
		e.log.Error().Err(err).Str("mint", d.Mint).Str("decision_id", d.DecisionID).Msg("settle decision")
	}
}
