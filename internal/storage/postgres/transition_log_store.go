package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/storage"
)

// TransitionLogStore is the durable ledger log in position_transitions.
type TransitionLogStore struct {
	pool *Pool
}

func NewTransitionLogStore(pool *Pool) *TransitionLogStore {
	return &TransitionLogStore{pool: pool}
}

var _ storage.TransitionLogStore = (*TransitionLogStore)(nil)

// Append inserts one transition. A repeated seq or (mint, decision_id,
// to_state) is ErrDuplicateKey.
func (s *TransitionLogStore) Append(ctx context.Context, t *domain.Transition) (err error) {
	if t == nil || t.Mint == "" || t.DecisionID == "" || !t.ToState.IsValid() {
		return storage.ErrInvalidInput
	}
	defer observe("append_transition", time.Now(), &err)

	var (
		status        *string
		price, filled *float64
		fees          *float64
		reason        *string
		executedAt    *int64
	)
	if r := t.Result; r != nil {
		st := string(r.Status)
		status, reason = &st, &r.Reason
		price, filled, fees = &r.FillPrice, &r.FilledSize, &r.Fees
		executedAt = &r.ExecutedAt
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO position_transitions (
			seq, mint, from_state, to_state, decision_id, cycle, action, size,
			result_status, fill_price, filled_size, fees, result_reason, executed_at, ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		t.Seq, t.Mint, string(t.FromState), string(t.ToState), t.DecisionID, int64(t.Cycle), string(t.Action), t.Size,
		status, price, filled, fees, reason, executedAt, t.Timestamp,
	)
	if isDuplicateKeyError(err) {
		return storage.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

const transitionColumns = `
	seq, mint, from_state, to_state, decision_id, cycle, action, size,
	result_status, fill_price, filled_size, fees, result_reason, executed_at, ts`

func (s *TransitionLogStore) List(ctx context.Context) (_ []*domain.Transition, err error) {
	defer observe("list_transitions", time.Now(), &err)
	rows, err := s.pool.Query(ctx, `SELECT `+transitionColumns+` FROM position_transitions ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	return scanTransitions(rows)
}

func (s *TransitionLogStore) GetByMint(ctx context.Context, mint string) (_ []*domain.Transition, err error) {
	defer observe("transitions_by_mint", time.Now(), &err)
	rows, err := s.pool.Query(ctx, `SELECT `+transitionColumns+` FROM position_transitions WHERE mint = $1 ORDER BY seq ASC`, mint)
	if err != nil {
		return nil, fmt.Errorf("query transitions by mint: %w", err)
	}
	return scanTransitions(rows)
}

func scanTransitions(rows pgx.Rows) ([]*domain.Transition, error) {
	defer rows.Close()

	var out []*domain.Transition
	for rows.Next() {
		var (
			t                   domain.Transition
			from, to, action    string
			cycle               int64
			status, reason      *string
			price, filled, fees *float64
			executedAt          *int64
		)
		if err := rows.Scan(
			&t.Seq, &t.Mint, &from, &to, &t.DecisionID, &cycle, &action, &t.Size,
			&status, &price, &filled, &fees, &reason, &executedAt, &t.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.FromState = domain.PositionState(from)
		t.ToState = domain.PositionState(to)
		t.Action = domain.Action(action)
		t.Cycle = uint64(cycle)
		if status != nil {
			t.Result = &domain.ExecutionResult{Status: domain.ExecutionStatus(*status)}
			if price != nil {
				t.Result.FillPrice = *price
			}
			if filled != nil {
				t.Result.FilledSize = *filled
			}
			if fees != nil {
				t.Result.Fees = *fees
			}
			if reason != nil {
				t.Result.Reason = *reason
			}
			if executedAt != nil {
				t.Result.ExecutedAt = *executedAt
			}
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
