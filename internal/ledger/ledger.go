// Package ledger owns position state. Every state change is appended to a
// transition log before it becomes visible, so replaying the log always
// reproduces the live positions.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/observability"
	"solana-token-engine/internal/storage"
)

var (
	// ErrNotTradeDecision is returned when a HOLD or REJECT reaches the ledger.
	ErrNotTradeDecision = errors.New("decision does not affect capital")

	// ErrStaleCycle is returned for a decision older than the last accepted one.
	ErrStaleCycle = errors.New("decision cycle not newer than last accepted")

	// ErrNilResult is returned when Apply is called without an execution result.
	ErrNilResult = errors.New("nil execution result")
)

// ReasonNoFillPrice marks an ack that carried no usable fill price. The
// ledger settles it as a rejection.
const ReasonNoFillPrice = "ack without fill price"

// TransitionFunc observes committed transitions. It runs with the ledger
// locked and must not call back into the Ledger.
type TransitionFunc func(t *domain.Transition, pos *domain.Position)

// Options configures a Ledger.
type Options struct {
	Now          func() time.Time
	Logger       zerolog.Logger
	OnTransition TransitionFunc
}

// Ledger is the single writer of positions.
type Ledger struct {
	store        storage.TransitionLogStore
	now          func() time.Time
	log          zerolog.Logger
	onTransition TransitionFunc

	mu        sync.Mutex
	seq       int64
	positions map[string]*domain.Position   // current position per mint
	history   map[string][]*domain.Position // earlier terminal positions per mint
	decisions map[string]domain.PositionState
	cycles    map[string]uint64
	realized  float64
}

// New creates an empty ledger backed by store. Call Restore before use when
// the store already holds transitions.
func New(store storage.TransitionLogStore, opts Options) *Ledger {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		store:        store,
		now:          now,
		log:          opts.Logger,
		onTransition: opts.OnTransition,
		positions:    make(map[string]*domain.Position),
		history:      make(map[string][]*domain.Position),
		decisions:    make(map[string]domain.PositionState),
		cycles:       make(map[string]uint64),
	}
}

func decisionKey(mint, decisionID string) string {
	return mint + "|" + decisionID
}

// Accept records that a trade decision was handed to execution, moving the
// position to PENDING_OPEN or PENDING_CLOSE. Accepting an already accepted
// decision returns the current position unchanged.
func (l *Ledger) Accept(ctx context.Context, d *domain.Decision) (*domain.Position, error) {
	if d == nil || !d.Action.IsTrade() {
		return nil, ErrNotTradeDecision
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, seen := l.decisions[decisionKey(d.Mint, d.DecisionID)]; seen {
		return l.positions[d.Mint].Clone(), nil
	}
	pos, err := l.acceptLocked(ctx, d)
	if err != nil {
		return nil, err
	}
	return pos.Clone(), nil
}

func (l *Ledger) acceptLocked(ctx context.Context, d *domain.Decision) (*domain.Position, error) {
	if last, ok := l.cycles[d.Mint]; ok && d.Cycle <= last {
		return nil, fmt.Errorf("%w: %s cycle %d, last %d", ErrStaleCycle, d.Mint, d.Cycle, last)
	}

	cur := l.positions[d.Mint]
	from := currentState(cur)

	t := &domain.Transition{
		Mint:       d.Mint,
		FromState:  from,
		DecisionID: d.DecisionID,
		Cycle:      d.Cycle,
		Action:     d.Action,
		Timestamp:  l.now().UnixMilli(),
	}

	switch d.Action {
	case domain.ActionBuy:
		if from != domain.PositionNone {
			return nil, fmt.Errorf("%w: BUY on %s while position is %s", domain.ErrInvalidTransition, d.Mint, from)
		}
		t.ToState = domain.PositionPendingOpen
		t.Size = d.Size
	case domain.ActionSell:
		if from != domain.PositionOpen {
			return nil, fmt.Errorf("%w: SELL on %s while position is %s", domain.ErrInvalidTransition, d.Mint, from)
		}
		t.ToState = domain.PositionPendingClose
		t.Size = cur.Size
	}

	return l.commit(ctx, t)
}

// Apply settles a trade decision with its execution result. The decision is
// accepted first when needed. Applying a decision that is already settled is
// a no-op that returns the current position.
func (l *Ledger) Apply(ctx context.Context, d *domain.Decision, res *domain.ExecutionResult) (*domain.Position, error) {
	if d == nil || !d.Action.IsTrade() {
		return nil, ErrNotTradeDecision
	}
	if res == nil {
		return nil, ErrNilResult
	}
	if res.IsAck() && res.FillPrice <= 0 {
		res = &domain.ExecutionResult{
			Status:     domain.ExecutionRejected,
			Reason:     ReasonNoFillPrice,
			ExecutedAt: res.ExecutedAt,
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := decisionKey(d.Mint, d.DecisionID)
	state, seen := l.decisions[key]
	if seen && state != domain.PositionPendingOpen && state != domain.PositionPendingClose {
		l.log.Debug().
			Str("mint", d.Mint).
			Str("decision_id", d.DecisionID).
			Msg("decision already settled")
		return l.positions[d.Mint].Clone(), nil
	}
	if !seen {
		if _, err := l.acceptLocked(ctx, d); err != nil {
			return nil, err
		}
	}

	from := l.positions[d.Mint].State
	t := &domain.Transition{
		Mint:       d.Mint,
		FromState:  from,
		DecisionID: d.DecisionID,
		Cycle:      d.Cycle,
		Action:     d.Action,
		Result:     cloneResult(res),
		Timestamp:  l.now().UnixMilli(),
	}
	switch {
	case !res.IsAck():
		t.ToState = domain.PositionFailed
	case from == domain.PositionPendingOpen:
		t.ToState = domain.PositionOpen
		t.Size = res.FilledSize
	default:
		t.ToState = domain.PositionClosed
		t.Size = res.FilledSize
	}

	pos, err := l.commit(ctx, t)
	if err != nil {
		return nil, err
	}
	return pos.Clone(), nil
}

// commit validates t against the current position, appends it to the log and
// only then updates memory. Caller holds l.mu.
func (l *Ledger) commit(ctx context.Context, t *domain.Transition) (*domain.Position, error) {
	t.Seq = l.seq + 1
	next, err := reduce(l.positions[t.Mint], t)
	if err != nil {
		return nil, err
	}
	if err := l.store.Append(ctx, t); err != nil {
		return nil, fmt.Errorf("append transition: %w", err)
	}
	l.install(t, next)

	l.log.Info().
		Int64("seq", t.Seq).
		Str("mint", t.Mint).
		Str("from", string(t.FromState)).
		Str("to", string(t.ToState)).
		Str("decision_id", t.DecisionID).
		Msg("position transition")

	observability.RecordTransition(string(t.ToState))
	observability.UpdateLedgerGauges(l.activeLocked(), l.realized)
	if l.onTransition != nil {
		l.onTransition(cloneTransition(t), next.Clone())
	}
	return next, nil
}

// install makes a reduced transition visible. Shared by live commits and replay.
func (l *Ledger) install(t *domain.Transition, next *domain.Position) {
	if prev := l.positions[t.Mint]; prev != nil && prev.State.IsTerminal() && t.ToState == domain.PositionPendingOpen {
		l.history[t.Mint] = append(l.history[t.Mint], prev)
	}
	l.positions[t.Mint] = next
	l.decisions[decisionKey(t.Mint, t.DecisionID)] = t.ToState
	if last, ok := l.cycles[t.Mint]; !ok || t.Cycle > last {
		l.cycles[t.Mint] = t.Cycle
	}
	if t.ToState == domain.PositionClosed && next.RealizedPnL != nil {
		l.realized = addDecimal(l.realized, *next.RealizedPnL)
	}
	l.seq = t.Seq
}

func (l *Ledger) activeLocked() int {
	n := 0
	for _, p := range l.positions {
		if p.State.IsActive() {
			n++
		}
	}
	return n
}

// ActivePosition returns the mint's position if it is PENDING_OPEN, OPEN or
// PENDING_CLOSE, and nil otherwise.
func (l *Ledger) ActivePosition(mint string) *domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p := l.positions[mint]; p != nil && p.State.IsActive() {
		return p.Clone()
	}
	return nil
}

// Position returns the latest position for mint, terminal or not.
func (l *Ledger) Position(mint string) *domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.positions[mint].Clone()
}

// Positions returns the latest position of every mint ordered by mint.
func (l *Ledger) Positions() []*domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]*domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		result = append(result, p.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Mint < result[j].Mint })
	return result
}

// History returns every position ever held for mint, oldest first.
func (l *Ledger) History(mint string) []*domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	var result []*domain.Position
	for _, p := range l.history[mint] {
		result = append(result, p.Clone())
	}
	if p := l.positions[mint]; p != nil {
		result = append(result, p.Clone())
	}
	return result
}

// All returns every position across all mints, ordered by mint then age.
func (l *Ledger) All() []*domain.Position {
	l.mu.Lock()
	mints := make([]string, 0, len(l.positions))
	for m := range l.positions {
		mints = append(mints, m)
	}
	l.mu.Unlock()

	sort.Strings(mints)
	var result []*domain.Position
	for _, m := range mints {
		result = append(result, l.History(m)...)
	}
	return result
}

// RealizedPnLTotal returns the sum of realized P&L over closed positions.
func (l *Ledger) RealizedPnLTotal() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.realized
}

// LastCycle returns the cycle of the mint's last accepted decision.
func (l *Ledger) LastCycle(mint string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cycles[mint]
}

// Seq returns the sequence number of the last committed transition.
func (l *Ledger) Seq() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// Transitions reads the mint's log entries from the backing store.
func (l *Ledger) Transitions(ctx context.Context, mint string) ([]*domain.Transition, error) {
	return l.store.GetByMint(ctx, mint)
}

func cloneResult(r *domain.ExecutionResult) *domain.ExecutionResult {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func cloneTransition(t *domain.Transition) *domain.Transition {
	c := *t
	c.Result = cloneResult(t.Result)
	return &c
}
