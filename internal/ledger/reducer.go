package ledger

import (
	"fmt"

	"solana-token-engine/internal/domain"
)

// allowedEdge reports whether the position state machine permits from -> to.
func allowedEdge(from, to domain.PositionState) bool {
	switch from {
	case domain.PositionNone:
		return to == domain.PositionPendingOpen
	case domain.PositionPendingOpen:
		return to == domain.PositionOpen || to == domain.PositionFailed
	case domain.PositionOpen:
		return to == domain.PositionPendingClose
	case domain.PositionPendingClose:
		return to == domain.PositionClosed || to == domain.PositionFailed
	}
	return false
}

// currentState is the state a new transition must start from. Terminal
// positions are history; the next BUY starts from NONE.
func currentState(pos *domain.Position) domain.PositionState {
	if pos == nil || pos.State.IsTerminal() {
		return domain.PositionNone
	}
	return pos.State
}

// reduce applies one transition to the mint's current position and returns
// the resulting position. The input is never modified. Live application and
// replay both go through reduce, which is what makes the log reducible.
func reduce(pos *domain.Position, t *domain.Transition) (*domain.Position, error) {
	from := currentState(pos)
	if t.FromState != from {
		return nil, fmt.Errorf("%w: %s expects %s, position is %s",
			domain.ErrInvalidTransition, describe(t), t.FromState, from)
	}
	if !allowedEdge(t.FromState, t.ToState) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidTransition, describe(t))
	}

	var next *domain.Position
	if from == domain.PositionNone {
		next = &domain.Position{Mint: t.Mint, State: domain.PositionNone}
	} else {
		next = pos.Clone()
	}

	switch t.ToState {
	case domain.PositionPendingOpen:
		if t.Action != domain.ActionBuy || t.Size <= 0 {
			return nil, fmt.Errorf("%w: %s needs a BUY with positive size", domain.ErrInvalidTransition, describe(t))
		}
		next.RequestedSize = t.Size
		next.OpenDecisionID = t.DecisionID
		next.LastCycle = t.Cycle

	case domain.PositionOpen:
		if err := requireAck(t); err != nil {
			return nil, err
		}
		if t.DecisionID != next.OpenDecisionID {
			return nil, fmt.Errorf("%w: %s settles a different decision", domain.ErrInvalidTransition, describe(t))
		}
		entry := t.Result.FillPrice
		size := t.Result.FilledSize
		if size <= 0 {
			size = next.RequestedSize
		}
		next.EntryPrice = &entry
		next.Size = size
		next.Fees = addDecimal(next.Fees, t.Result.Fees)
		opened := settledAt(t)
		next.OpenedAt = &opened

	case domain.PositionPendingClose:
		if t.Action != domain.ActionSell {
			return nil, fmt.Errorf("%w: %s needs a SELL", domain.ErrInvalidTransition, describe(t))
		}
		next.CloseDecisionID = t.DecisionID
		next.LastCycle = t.Cycle

	case domain.PositionClosed:
		if err := requireAck(t); err != nil {
			return nil, err
		}
		if t.DecisionID != next.CloseDecisionID {
			return nil, fmt.Errorf("%w: %s settles a different decision", domain.ErrInvalidTransition, describe(t))
		}
		exit := t.Result.FillPrice
		next.ExitPrice = &exit
		next.Fees = addDecimal(next.Fees, t.Result.Fees)
		closed := settledAt(t)
		next.ClosedAt = &closed
		pnl := RealizedPnL(*next.EntryPrice, exit, next.Size, next.Fees)
		next.RealizedPnL = &pnl

	case domain.PositionFailed:
		if t.Result == nil || t.Result.IsAck() {
			return nil, fmt.Errorf("%w: %s needs a failed execution result", domain.ErrInvalidTransition, describe(t))
		}
		pending := next.OpenDecisionID
		if from == domain.PositionPendingClose {
			pending = next.CloseDecisionID
		}
		if t.DecisionID != pending {
			return nil, fmt.Errorf("%w: %s fails a different decision", domain.ErrInvalidTransition, describe(t))
		}
		next.Size = 0
		closed := settledAt(t)
		next.ClosedAt = &closed
		next.FailureReason = failureReason(t.Result)
	}

	next.State = t.ToState
	return next, nil
}

func requireAck(t *domain.Transition) error {
	if !t.Result.IsAck() || t.Result.FillPrice <= 0 {
		return fmt.Errorf("%w: %s needs an ack with a fill price", domain.ErrInvalidTransition, describe(t))
	}
	return nil
}

func settledAt(t *domain.Transition) int64 {
	if t.Result != nil && t.Result.ExecutedAt > 0 {
		return t.Result.ExecutedAt
	}
	return t.Timestamp
}

func failureReason(r *domain.ExecutionResult) string {
	if r.Reason != "" {
		return fmt.Sprintf("%s: %s", r.Status, r.Reason)
	}
	return string(r.Status)
}

func describe(t *domain.Transition) string {
	return fmt.Sprintf("seq %d %s %s->%s (decision %s)", t.Seq, t.Mint, t.FromState, t.ToState, shortID(t.DecisionID))
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
