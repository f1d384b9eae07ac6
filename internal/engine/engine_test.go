package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/execution"
	"solana-token-engine/internal/ledger"
	"solana-token-engine/internal/normalize"
	"solana-token-engine/internal/scoring"
	"solana-token-engine/internal/screener"
	"solana-token-engine/internal/storage/memory"
	"solana-token-engine/internal/window"
)

const (
	mintM1 = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	mintM2 = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

var t0 = time.UnixMilli(1_700_000_000_000)

func ptr[T any](v T) *T { return &v }

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fakeFacts struct {
	clock    *clock
	honeypot bool
	err      error
}

func (f *fakeFacts) Fetch(_ context.Context, mint string) (*domain.SecurityFacts, error) {
	if f.err != nil {
		return nil, f.err
	}
	no := false
	return &domain.SecurityFacts{
		Mint:                  mint,
		FetchedAt:             f.clock.now().UnixMilli(),
		IsHoneypot:            ptr(f.honeypot),
		IsBlacklisted:         &no,
		IsProxy:               &no,
		TradingPaused:         &no,
		CanTakeBackOwnership:  &no,
		MintAuthorityExists:   &no,
		FreezeAuthorityExists: &no,
		AntiBot:               &no,
		MetadataMutable:       &no,
		TaxFee:                ptr(0.0),
		TopHolderPcts:         []float64{0.05, 0.03},
	}, nil
}

type scriptedExecutor struct {
	buy, sell domain.ExecutionResult
}

func (s *scriptedExecutor) SubmitBuy(context.Context, string, float64) *domain.ExecutionResult {
	r := s.buy
	return &r
}

func (s *scriptedExecutor) SubmitSell(context.Context, string, float64) *domain.ExecutionResult {
	r := s.sell
	return &r
}

type recordingSink struct {
	mu     sync.Mutex
	events []*domain.AuditEvent
}

func (s *recordingSink) Publish(ev *domain.AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

type fixture struct {
	clock     *clock
	facts     *fakeFacts
	win       *window.Store
	ledger    *ledger.Ledger
	decisions *memory.DecisionStore
	sink      *recordingSink
	engine    *Engine
}

func newFixture(t *testing.T, exec execution.Adapter, ks *KillSwitch) *fixture {
	t.Helper()

	clk := &clock{t: t0}
	f := &fixture{
		clock:     clk,
		facts:     &fakeFacts{clock: clk},
		decisions: memory.NewDecisionStore(),
		sink:      &recordingSink{},
	}
	f.win = window.NewStore(window.Options{
		Lookbacks:    []time.Duration{time.Minute, 5 * time.Minute},
		Retention:    time.Hour,
		MaxStaleness: 10 * time.Minute,
		Capacity:     100,
	})
	f.ledger = ledger.New(memory.NewTransitionLogStore(), ledger.Options{Now: clk.now})
	if exec == nil {
		exec = execution.NewPaperAdapter(f.win, execution.PaperOptions{Now: clk.now})
	}

	f.engine = New(Options{
		Window: f.win,
		Screener: screener.New(screener.Options{
			WarningThreshold: 0.5,
			MaxTop1Pct:       0.2,
			MaxTaxFee:        0.1,
			DangerCooldown:   time.Hour,
			MaxFactsAge:      10 * time.Minute,
			Weights: screener.Weights{
				Concentration: 0.6, MintAuthority: 0.6, FreezeAuthority: 0.6,
				AntiBot: 0.3, TaxFee: 0.6, MutableMetadata: 0.2, Proxy: 0.3,
			},
		}),
		Scorer: scoring.NewAdapter(scoring.NewRuleScorer(scoring.RuleParams{
			MinLiquidity:     1000,
			MinVolume5m:      500,
			BuyConfidence:    0.8,
			HoldConfidence:   0.5,
			ExitConfidence:   0.9,
			WarningPenalty:   0.2,
			MinBuyConfidence: 0.7,
			TakeProfitPct:    0.3,
			StopLossPct:      0.15,
			ExitWindow:       5 * time.Minute,
		})),
		Ledger:            f.ledger,
		Executor:          exec,
		Facts:             f.facts,
		Decisions:         f.decisions,
		Sink:              f.sink,
		KillSwitch:        ks,
		Gates:             Gates{MinLiquidity: 1000, MinVolume5m: 500},
		PositionSizeQuote: 100,
		ProviderTimeout:   time.Second,
		Now:               clk.now,
		Logger:            zerolog.Nop(),
	})
	return f
}

// feed processes a quote observed offset after t0.
func (f *fixture) feed(t *testing.T, mint string, offset time.Duration, price, liquidity, volume float64) *domain.Decision {
	t.Helper()
	at := t0.Add(offset)
	f.clock.set(at)
	d, err := f.engine.Process(context.Background(), &normalize.ManualQuote{
		Mint:       mint,
		ObservedAt: at.UnixMilli(),
		Price:      price,
		Liquidity:  ptr(liquidity),
		Volume5m:   ptr(volume),
	})
	require.NoError(t, err)
	require.NotNil(t, d)
	return d
}

func TestEngine_LifecycleFromRejectToClose(t *testing.T) {
	f := newFixture(t, nil, nil)

	d := f.feed(t, mintM1, 0, 1.0, 50, 0)
	assert.Equal(t, domain.ActionReject, d.Action)
	assert.Contains(t, d.Reasons, scoring.ReasonLiquidityBelowMin)
	assert.Equal(t, uint64(1), d.Cycle)

	d = f.feed(t, mintM1, time.Minute, 1.0, 5000, 2000)
	require.Equal(t, domain.ActionBuy, d.Action, d.Reasons)
	assert.InDelta(t, 0.8, d.Confidence, 1e-9)
	assert.Equal(t, domain.VerdictSafe, d.VerdictStatus)
	assert.Equal(t, domain.StageDecided, d.Stage)
	assert.InDelta(t, 100.0, d.Size, 1e-9)

	pos := f.ledger.ActivePosition(mintM1)
	require.NotNil(t, pos)
	assert.Equal(t, domain.PositionOpen, pos.State)
	assert.Equal(t, 1.0, *pos.EntryPrice)

	d = f.feed(t, mintM1, 6*time.Minute, 1.4, 6000, 3000)
	require.Equal(t, domain.ActionSell, d.Action, d.Reasons)

	pos = f.ledger.Position(mintM1)
	require.NotNil(t, pos)
	assert.Equal(t, domain.PositionClosed, pos.State)
	require.NotNil(t, pos.RealizedPnL)
	assert.InDelta(t, 40.0, *pos.RealizedPnL, 1e-9)

	trs, err := f.ledger.Transitions(context.Background(), mintM1)
	require.NoError(t, err)
	var states []domain.PositionState
	for _, tr := range trs {
		states = append(states, tr.ToState)
	}
	assert.Equal(t, []domain.PositionState{
		domain.PositionPendingOpen, domain.PositionOpen,
		domain.PositionPendingClose, domain.PositionClosed,
	}, states)

	stored, err := f.decisions.GetByMint(context.Background(), mintM1)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
	assert.Len(t, f.sink.events, 3)
	require.NoError(t, f.ledger.Verify(context.Background()))
}

func TestEngine_TimeoutFailsAndSellIsGated(t *testing.T) {
	exec := &scriptedExecutor{buy: domain.ExecutionResult{Status: domain.ExecutionTimeout, Reason: "deadline"}}
	f := newFixture(t, exec, nil)

	d := f.feed(t, mintM1, 0, 1.0, 5000, 2000)
	assert.Equal(t, domain.ActionHold, d.Action)
	assert.Contains(t, d.Reasons, ReasonInsufficientHistory)
	assert.Contains(t, d.Reasons, ReasonBuyCapped)

	d = f.feed(t, mintM1, time.Minute, 1.0, 5000, 2000)
	require.Equal(t, domain.ActionBuy, d.Action)

	pos := f.ledger.Position(mintM1)
	require.NotNil(t, pos)
	assert.Equal(t, domain.PositionFailed, pos.State)
	assert.Zero(t, pos.Size)
	assert.Nil(t, f.ledger.ActivePosition(mintM1))

	d = f.feed(t, mintM1, 6*time.Minute, 1.4, 6000, 3000)
	assert.Equal(t, domain.ActionReject, d.Action)
	assert.Contains(t, d.Reasons, ReasonNoActivePosition)
	assert.Zero(t, d.Size)
}

func TestEngine_DangerForcesReject(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.facts.honeypot = true

	f.feed(t, mintM1, 0, 1.0, 5000, 2000)
	d := f.feed(t, mintM1, time.Minute, 1.0, 5000, 2000)
	assert.Equal(t, domain.ActionReject, d.Action)
	assert.Equal(t, 1.0, d.Confidence)
	assert.Equal(t, domain.VerdictDanger, d.VerdictStatus)
	assert.Equal(t, domain.StageDecided, d.Stage)
	assert.Nil(t, f.ledger.Position(mintM1))

	// Sticky: a clean scan inside the cool-down still rejects.
	f.facts.honeypot = false
	d = f.feed(t, mintM1, 2*time.Minute, 1.0, 5000, 2000)
	assert.Equal(t, domain.ActionReject, d.Action)
	assert.Equal(t, domain.VerdictDanger, d.VerdictStatus)
}

func TestEngine_MissingFactsFailClosed(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.facts.err = errors.New("provider down")

	f.feed(t, mintM1, 0, 1.0, 5000, 2000)
	d := f.feed(t, mintM1, time.Minute, 1.0, 5000, 2000)
	assert.Equal(t, domain.ActionHold, d.Action)
	assert.Equal(t, domain.VerdictWarning, d.VerdictStatus)
	assert.Contains(t, d.Reasons, screener.ReasonFactsUnavailable)
	assert.Nil(t, f.ledger.Position(mintM1))
}

func TestEngine_NoPyramiding(t *testing.T) {
	f := newFixture(t, nil, nil)

	f.feed(t, mintM1, 0, 1.0, 5000, 2000)
	require.Equal(t, domain.ActionBuy, f.feed(t, mintM1, time.Minute, 1.0, 5000, 2000).Action)

	d := f.feed(t, mintM1, 2*time.Minute, 1.0, 5000, 2000)
	assert.Equal(t, domain.ActionReject, d.Action)
	assert.Contains(t, d.Reasons, ReasonActivePosition)

	history := f.ledger.History(mintM1)
	assert.Len(t, history, 1)
}

func TestEngine_StaleGapCapsBuy(t *testing.T) {
	f := newFixture(t, nil, nil)

	f.feed(t, mintM1, 0, 1.0, 5000, 2000)
	d := f.feed(t, mintM1, 20*time.Minute, 1.0, 5000, 2000)
	assert.Equal(t, domain.ActionHold, d.Action)
	assert.Contains(t, d.Reasons, ReasonWindowReset)
	assert.Contains(t, d.Reasons, ReasonBuyCapped)
	assert.Equal(t, 1, f.win.Len(mintM1))
}

func TestEngine_KillSwitchHaltsBuys(t *testing.T) {
	exec := &scriptedExecutor{buy: domain.ExecutionResult{Status: domain.ExecutionRejected}}
	ks := NewKillSwitch(1, zerolog.Nop())
	f := newFixture(t, exec, ks)

	f.feed(t, mintM1, 0, 1.0, 5000, 2000)
	require.Equal(t, domain.ActionBuy, f.feed(t, mintM1, time.Minute, 1.0, 5000, 2000).Action)
	require.True(t, ks.IsActive())

	f.feed(t, mintM2, 2*time.Minute, 1.0, 5000, 2000)
	d := f.feed(t, mintM2, 3*time.Minute, 1.0, 5000, 2000)
	assert.Equal(t, domain.ActionHold, d.Action)
	assert.Contains(t, d.Reasons[len(d.Reasons)-1], ReasonKillSwitch)

	ks.Deactivate()
	assert.False(t, ks.IsActive())
}

func TestEngine_DropsDuplicatesAndInvalidMints(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.feed(t, mintM1, 0, 1.0, 5000, 2000)

	_, err := f.engine.Process(context.Background(), &normalize.ManualQuote{
		Mint: mintM1, ObservedAt: t0.UnixMilli(), Price: 1.0,
	})
	assert.ErrorIs(t, err, ErrSnapshotDropped)
	assert.ErrorIs(t, err, window.ErrDuplicateSnapshot)

	_, err = f.engine.Process(context.Background(), &normalize.ManualQuote{Mint: "BONK", Price: 1})
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
}

func TestEngine_MissingPriceHolds(t *testing.T) {
	f := newFixture(t, nil, nil)

	d, err := f.engine.Process(context.Background(), &normalize.ManualQuote{Mint: mintM1, ObservedAt: t0.UnixMilli()})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionHold, d.Action)
	assert.Equal(t, domain.StageNewSnapshot, d.Stage)
	assert.Empty(t, d.VerdictSnapshotID)
}

func TestEngine_CyclesContinueAfterRestart(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.feed(t, mintM1, 0, 1.0, 5000, 2000)
	buy := f.feed(t, mintM1, time.Minute, 1.0, 5000, 2000)
	require.Equal(t, domain.ActionBuy, buy.Action)

	restarted := New(Options{Ledger: f.ledger})
	assert.Equal(t, buy.Cycle+1, restarted.nextCycle(context.Background(), mintM1))
}

func TestEngine_NonTradeCyclesContinueAfterRestart(t *testing.T) {
	f := newFixture(t, nil, nil)
	for i := 0; i < 3; i++ {
		d := f.feed(t, mintM1, time.Duration(i)*time.Minute, 1.0, 50, 0)
		require.Equal(t, domain.ActionReject, d.Action)
	}

	f.engine = New(f.engine.opts)
	d := f.feed(t, mintM1, 3*time.Minute, 1.0, 50, 0)
	assert.Equal(t, uint64(4), d.Cycle)

	stored, err := f.decisions.GetByMint(context.Background(), mintM1)
	require.NoError(t, err)
	var cycles []uint64
	for _, sd := range stored {
		cycles = append(cycles, sd.Cycle)
	}
	assert.Equal(t, []uint64{1, 2, 3, 4}, cycles)
}

func TestEngine_StopLossFiresWhenPoolDrains(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.feed(t, mintM1, 0, 1.0, 5000, 2000)
	require.Equal(t, domain.ActionBuy, f.feed(t, mintM1, time.Minute, 1.0, 5000, 2000).Action)

	d := f.feed(t, mintM1, 6*time.Minute, 0.5, 100, 0)
	require.Equal(t, domain.ActionSell, d.Action, d.Reasons)
	assert.Contains(t, d.Reasons[0], "stop loss")

	pos := f.ledger.Position(mintM1)
	require.NotNil(t, pos)
	assert.Equal(t, domain.PositionClosed, pos.State)
	require.NotNil(t, pos.RealizedPnL)
	assert.Less(t, *pos.RealizedPnL, 0.0)
}

func TestEngine_LiquidityCollapseExitsOpenPosition(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.feed(t, mintM1, 0, 1.0, 5000, 2000)
	require.Equal(t, domain.ActionBuy, f.feed(t, mintM1, time.Minute, 1.0, 5000, 2000).Action)

	d := f.feed(t, mintM1, 2*time.Minute, 1.0, 100, 0)
	require.Equal(t, domain.ActionSell, d.Action, d.Reasons)
	assert.Contains(t, d.Reasons, scoring.ReasonLiquidityBelowMin)
	assert.Contains(t, d.Reasons, ReasonLiquidityExit)
	assert.Equal(t, domain.PositionClosed, f.ledger.Position(mintM1).State)

	// Without a position the same drained pool is only a REJECT.
	d = f.feed(t, mintM2, 2*time.Minute, 1.0, 100, 0)
	assert.Equal(t, domain.ActionReject, d.Action)
	assert.NotContains(t, d.Reasons, ReasonLiquidityExit)
}
