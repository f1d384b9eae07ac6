package sqlite

import (
	"encoding/json"

	"solana-token-engine/internal/domain"
)

type transitionRow struct {
	Seq          int64  `gorm:"primaryKey;autoIncrement:false"`
	Mint         string `gorm:"not null;uniqueIndex:idx_transition_key,priority:1;index:idx_transition_mint,priority:1"`
	DecisionID   string `gorm:"not null;uniqueIndex:idx_transition_key,priority:2"`
	ToState      string `gorm:"not null;uniqueIndex:idx_transition_key,priority:3"`
	FromState    string `gorm:"not null"`
	Cycle        uint64
	Action       string
	Size         float64
	ResultStatus *string
	FillPrice    *float64
	FilledSize   *float64
	Fees         *float64
	ResultReason *string
	ExecutedAt   *int64
	Ts           int64 `gorm:"not null"`
}

func (transitionRow) TableName() string { return "position_transitions" }

func toTransitionRow(t *domain.Transition) *transitionRow {
	row := &transitionRow{
		Seq:        t.Seq,
		Mint:       t.Mint,
		DecisionID: t.DecisionID,
		ToState:    string(t.ToState),
		FromState:  string(t.FromState),
		Cycle:      t.Cycle,
		Action:     string(t.Action),
		Size:       t.Size,
		Ts:         t.Timestamp,
	}
	if r := t.Result; r != nil {
		status := string(r.Status)
		row.ResultStatus = &status
		row.FillPrice, row.FilledSize, row.Fees = &r.FillPrice, &r.FilledSize, &r.Fees
		row.ResultReason = &r.Reason
		row.ExecutedAt = &r.ExecutedAt
	}
	return row
}

func (r *transitionRow) toDomain() *domain.Transition {
	t := &domain.Transition{
		Seq:        r.Seq,
		Mint:       r.Mint,
		FromState:  domain.PositionState(r.FromState),
		ToState:    domain.PositionState(r.ToState),
		DecisionID: r.DecisionID,
		Cycle:      r.Cycle,
		Action:     domain.Action(r.Action),
		Size:       r.Size,
		Timestamp:  r.Ts,
	}
	if r.ResultStatus != nil {
		res := &domain.ExecutionResult{Status: domain.ExecutionStatus(*r.ResultStatus)}
		if r.FillPrice != nil {
			res.FillPrice = *r.FillPrice
		}
		if r.FilledSize != nil {
			res.FilledSize = *r.FilledSize
		}
		if r.Fees != nil {
			res.Fees = *r.Fees
		}
		if r.ResultReason != nil {
			res.Reason = *r.ResultReason
		}
		if r.ExecutedAt != nil {
			res.ExecutedAt = *r.ExecutedAt
		}
		t.Result = res
	}
	return t
}

type decisionRow struct {
	DecisionID        string `gorm:"primaryKey"`
	Mint              string `gorm:"not null;uniqueIndex:idx_decision_mint_cycle,priority:1"`
	Cycle             uint64 `gorm:"uniqueIndex:idx_decision_mint_cycle,priority:2"`
	Action            string `gorm:"not null"`
	Confidence        float64
	Reasons           string `gorm:"type:text"` // JSON array
	VerdictSnapshotID string
	VerdictStatus     string
	Stage             string
	ScorerID          string
	Price             float64
	Size              float64
	CreatedAtMs       int64 `gorm:"column:created_at;index"`
}

func (decisionRow) TableName() string { return "decisions" }

func toDecisionRow(d *domain.Decision) (*decisionRow, error) {
	reasons := d.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	encoded, err := json.Marshal(reasons)
	if err != nil {
		return nil, err
	}
	return &decisionRow{
		DecisionID:        d.DecisionID,
		Mint:              d.Mint,
		Cycle:             d.Cycle,
		Action:            string(d.Action),
		Confidence:        d.Confidence,
		Reasons:           string(encoded),
		VerdictSnapshotID: d.VerdictSnapshotID,
		VerdictStatus:     string(d.VerdictStatus),
		Stage:             string(d.Stage),
		ScorerID:          d.ScorerID,
		Price:             d.Price,
		Size:              d.Size,
		CreatedAtMs:       d.CreatedAt,
	}, nil
}

func (r *decisionRow) toDomain() (*domain.Decision, error) {
	var reasons []string
	if r.Reasons != "" {
		if err := json.Unmarshal([]byte(r.Reasons), &reasons); err != nil {
			return nil, err
		}
	}
	return &domain.Decision{
		DecisionID:        r.DecisionID,
		Mint:              r.Mint,
		Cycle:             r.Cycle,
		Action:            domain.Action(r.Action),
		Confidence:        r.Confidence,
		Reasons:           reasons,
		VerdictSnapshotID: r.VerdictSnapshotID,
		VerdictStatus:     domain.VerdictStatus(r.VerdictStatus),
		Stage:             domain.Stage(r.Stage),
		ScorerID:          r.ScorerID,
		Price:             r.Price,
		Size:              r.Size,
		CreatedAt:         r.CreatedAtMs,
	}, nil
}

type discoveryProgressRow struct {
	ID        uint `gorm:"primaryKey;autoIncrement:false"`
	Slot      uint64
	Signature string
}

func (discoveryProgressRow) TableName() string { return "discovery_progress" }

type seenMintRow struct {
	Mint string `gorm:"primaryKey"`
}

func (seenMintRow) TableName() string { return "discovery_seen_mints" }
