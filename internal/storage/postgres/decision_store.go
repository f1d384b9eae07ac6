package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/storage"
)

// DecisionStore persists emitted decisions in the decisions table.
type DecisionStore struct {
	pool *Pool
}

func NewDecisionStore(pool *Pool) *DecisionStore {
	return &DecisionStore{pool: pool}
}

var _ storage.DecisionStore = (*DecisionStore)(nil)

const decisionColumns = `
	decision_id, mint, cycle, action, confidence, reasons, verdict_snapshot_id,
	verdict_status, stage, scorer_id, price, size, created_at`

// Insert adds a decision. Returns ErrDuplicateKey if decision_id or
// (mint, cycle) exists.
func (s *DecisionStore) Insert(ctx context.Context, d *domain.Decision) (err error) {
	if d == nil || d.DecisionID == "" || d.Mint == "" {
		return storage.ErrInvalidInput
	}
	defer observe("insert_decision", time.Now(), &err)

	reasons := d.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO decisions (`+decisionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		d.DecisionID, d.Mint, int64(d.Cycle), string(d.Action), d.Confidence, reasons, d.VerdictSnapshotID,
		string(d.VerdictStatus), string(d.Stage), d.ScorerID, d.Price, d.Size, d.CreatedAt,
	)
	if isDuplicateKeyError(err) {
		return storage.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// MaxCycle returns the highest stored cycle for mint, 0 if none.
func (s *DecisionStore) MaxCycle(ctx context.Context, mint string) (_ uint64, err error) {
	defer observe("decision_max_cycle", time.Now(), &err)
	var top int64
	err = s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(cycle), 0) FROM decisions WHERE mint = $1`, mint).Scan(&top)
	if err != nil {
		return 0, fmt.Errorf("query max cycle: %w", err)
	}
	return uint64(top), nil
}

// GetByID returns ErrNotFound for an unknown id.
func (s *DecisionStore) GetByID(ctx context.Context, decisionID string) (_ *domain.Decision, err error) {
	defer observe("decision_by_id", time.Now(), &err)
	rows, err := s.pool.Query(ctx, `SELECT `+decisionColumns+` FROM decisions WHERE decision_id = $1`, decisionID)
	if err != nil {
		return nil, fmt.Errorf("query decision: %w", err)
	}
	out, err := scanDecisions(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, storage.ErrNotFound
	}
	return out[0], nil
}

// GetByMint returns a mint's decisions ordered by cycle.
func (s *DecisionStore) GetByMint(ctx context.Context, mint string) (_ []*domain.Decision, err error) {
	defer observe("decisions_by_mint", time.Now(), &err)
	rows, err := s.pool.Query(ctx, `SELECT `+decisionColumns+` FROM decisions WHERE mint = $1 ORDER BY cycle ASC`, mint)
	if err != nil {
		return nil, fmt.Errorf("query decisions by mint: %w", err)
	}
	return scanDecisions(rows)
}

// GetByTimeRange returns decisions created within [start, end].
func (s *DecisionStore) GetByTimeRange(ctx context.Context, start, end int64) (_ []*domain.Decision, err error) {
	defer observe("decisions_by_time", time.Now(), &err)
	rows, err := s.pool.Query(ctx, `SELECT `+decisionColumns+` FROM decisions
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at ASC, mint ASC, cycle ASC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query decisions by time: %w", err)
	}
	return scanDecisions(rows)
}

func scanDecisions(rows pgx.Rows) ([]*domain.Decision, error) {
	defer rows.Close()

	var out []*domain.Decision
	for rows.Next() {
		var (
			d                            domain.Decision
			cycle                        int64
			action, verdictStatus, stage string
		)
		if err := rows.Scan(
			&d.DecisionID, &d.Mint, &cycle, &action, &d.Confidence, &d.Reasons, &d.VerdictSnapshotID,
			&verdictStatus, &stage, &d.ScorerID, &d.Price, &d.Size, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d.Cycle = uint64(cycle)
		d.Action = domain.Action(action)
		d.VerdictStatus = domain.VerdictStatus(verdictStatus)
		d.Stage = domain.Stage(stage)
		out = append(out, &d)
	}
	return out, rows.Err()
}
