package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/storage"
)

// DecisionStore implements storage.DecisionStore.
type DecisionStore struct {
	db *gorm.DB
}

func NewDecisionStore(db *gorm.DB) *DecisionStore {
	return &DecisionStore{db: db}
}

var _ storage.DecisionStore = (*DecisionStore)(nil)

func (s *DecisionStore) Insert(ctx context.Context, d *domain.Decision) (err error) {
	if d == nil || d.DecisionID == "" || d.Mint == "" {
		return storage.ErrInvalidInput
	}
	defer observe("insert_decision", time.Now(), &err)

	row, err := toDecisionRow(d)
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&decisionRow{}).
			Where("decision_id = ? OR (mint = ? AND cycle = ?)", row.DecisionID, row.Mint, row.Cycle).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return errDuplicate
		}
		return tx.Create(row).Error
	})
	if errors.Is(err, errDuplicate) || isDuplicate(err) {
		return storage.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

func (s *DecisionStore) GetByID(ctx context.Context, decisionID string) (_ *domain.Decision, err error) {
	defer observe("decision_by_id", time.Now(), &err)
	var row decisionRow
	err = s.db.WithContext(ctx).Where("decision_id = ?", decisionID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("decision by id: %w", err)
	}
	return row.toDomain()
}

func (s *DecisionStore) MaxCycle(ctx context.Context, mint string) (_ uint64, err error) {
	defer observe("decision_max_cycle", time.Now(), &err)
	var top sql.NullInt64
	err = s.db.WithContext(ctx).Model(&decisionRow{}).
		Select("MAX(cycle)").
		Where("mint = ?", mint).
		Row().Scan(&top)
	if err != nil {
		return 0, fmt.Errorf("decision max cycle: %w", err)
	}
	return uint64(top.Int64), nil
}

// GetByMint returns a mint's decisions ordered by cycle.
func (s *DecisionStore) GetByMint(ctx context.Context, mint string) (_ []*domain.Decision, err error) {
	defer observe("decisions_by_mint", time.Now(), &err)
	var rows []decisionRow
	if err := s.db.WithContext(ctx).Where("mint = ?", mint).Order("cycle ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("decisions by mint: %w", err)
	}
	return decisionsFromRows(rows)
}

func (s *DecisionStore) GetByTimeRange(ctx context.Context, start, end int64) (_ []*domain.Decision, err error) {
	defer observe("decisions_by_time", time.Now(), &err)
	var rows []decisionRow
	if err := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at <= ?", start, end).
		Order("created_at ASC").Order("mint ASC").Order("cycle ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("decisions by time: %w", err)
	}
	return decisionsFromRows(rows)
}

func decisionsFromRows(rows []decisionRow) ([]*domain.Decision, error) {
	out := make([]*domain.Decision, 0, len(rows))
	for i := range rows {
		d, err := rows[i].toDomain()
		if err != nil {
			return nil, fmt.Errorf("decode decision %s: %w", rows[i].DecisionID, err)
		}
		out = append(out, d)
	}
	return out, nil
}
