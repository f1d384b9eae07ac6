package ledger

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"solana-token-engine/internal/domain"
)

// Restore rebuilds memory from the transition log. Any entry that cannot be
// reduced onto the state built so far makes the whole log corrupt.
func (l *Ledger) Restore(ctx context.Context) error {
	entries, err := l.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list transitions: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.reset()
	for _, t := range entries {
		if t.Seq <= l.seq {
			return fmt.Errorf("%w: seq %d after %d", domain.ErrCorruptLedger, t.Seq, l.seq)
		}
		if state, seen := l.decisions[decisionKey(t.Mint, t.DecisionID)]; seen && state == t.ToState {
			l.log.Warn().
				Int64("seq", t.Seq).
				Str("mint", t.Mint).
				Str("decision_id", t.DecisionID).
				Err(domain.ErrReplayConflict).
				Msg("skipping repeated transition")
			continue
		}
		next, err := reduce(l.positions[t.Mint], t)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrCorruptLedger, err)
		}
		l.install(t, next)
	}

	l.log.Info().
		Int("transitions", len(entries)).
		Int("mints", len(l.positions)).
		Int("active", l.activeLocked()).
		Msg("ledger restored")
	return nil
}

func (l *Ledger) reset() {
	l.seq = 0
	l.realized = 0
	l.positions = make(map[string]*domain.Position)
	l.history = make(map[string][]*domain.Position)
	l.decisions = make(map[string]domain.PositionState)
	l.cycles = make(map[string]uint64)
}

// Recover fails every position left PENDING_OPEN or PENDING_CLOSE by an
// interrupted process. The outcome of those orders is unknown, so they are
// recorded as timed out. Returns the number of positions recovered.
func (l *Ledger) Recover(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var pending []*domain.Position
	for _, p := range l.positions {
		if p.State == domain.PositionPendingOpen || p.State == domain.PositionPendingClose {
			pending = append(pending, p)
		}
	}

	n := 0
	for _, p := range pending {
		decisionID := p.OpenDecisionID
		action := domain.ActionBuy
		if p.State == domain.PositionPendingClose {
			decisionID = p.CloseDecisionID
			action = domain.ActionSell
		}
		now := l.now().UnixMilli()
		t := &domain.Transition{
			Mint:       p.Mint,
			FromState:  p.State,
			ToState:    domain.PositionFailed,
			DecisionID: decisionID,
			Cycle:      p.LastCycle,
			Action:     action,
			Result: &domain.ExecutionResult{
				Status:     domain.ExecutionTimeout,
				Reason:     "interrupted",
				ExecutedAt: now,
			},
			Timestamp: now,
		}
		if _, err := l.commit(ctx, t); err != nil {
			return n, fmt.Errorf("recover %s: %w", p.Mint, err)
		}
		n++
	}
	return n, nil
}

// ErrDiverged is returned by Verify when replay disagrees with live state.
var ErrDiverged = errors.New("live state diverges from transition log")

// Verify replays the backing log into a fresh ledger and compares the result
// with the live state.
func (l *Ledger) Verify(ctx context.Context) error {
	fresh := New(l.store, Options{Now: l.now})
	if err := fresh.Restore(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.seq != fresh.seq {
		return fmt.Errorf("%w: seq %d, replayed %d", ErrDiverged, l.seq, fresh.seq)
	}
	if !reflect.DeepEqual(l.positions, fresh.positions) {
		return fmt.Errorf("%w: positions", ErrDiverged)
	}
	if !reflect.DeepEqual(l.history, fresh.history) {
		return fmt.Errorf("%w: history", ErrDiverged)
	}
	if !reflect.DeepEqual(l.decisions, fresh.decisions) {
		return fmt.Errorf("%w: decisions", ErrDiverged)
	}
	return nil
}
