package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/storage"
)

// TransitionLogStore implements storage.TransitionLogStore.
type TransitionLogStore struct {
	db *gorm.DB
}

func NewTransitionLogStore(db *gorm.DB) *TransitionLogStore {
	return &TransitionLogStore{db: db}
}

var _ storage.TransitionLogStore = (*TransitionLogStore)(nil)

var errDuplicate = errors.New("duplicate")

// Append inserts one transition. A repeated seq or (mint, decision_id,
// to_state) is ErrDuplicateKey.
func (s *TransitionLogStore) Append(ctx context.Context, t *domain.Transition) (err error) {
	if t == nil || t.Mint == "" || t.DecisionID == "" || !t.ToState.IsValid() {
		return storage.ErrInvalidInput
	}
	defer observe("append_transition", time.Now(), &err)

	row := toTransitionRow(t)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&transitionRow{}).
			Where("seq = ? OR (mint = ? AND decision_id = ? AND to_state = ?)", row.Seq, row.Mint, row.DecisionID, row.ToState).
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
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

func (s *TransitionLogStore) List(ctx context.Context) (_ []*domain.Transition, err error) {
	defer observe("list_transitions", time.Now(), &err)
	var rows []transitionRow
	if err := s.db.WithContext(ctx).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	return transitionsFromRows(rows), nil
}

func (s *TransitionLogStore) GetByMint(ctx context.Context, mint string) (_ []*domain.Transition, err error) {
	defer observe("transitions_by_mint", time.Now(), &err)
	var rows []transitionRow
	if err := s.db.WithContext(ctx).Where("mint = ?", mint).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("transitions by mint: %w", err)
	}
	return transitionsFromRows(rows), nil
}

func transitionsFromRows(rows []transitionRow) []*domain.Transition {
	out := make([]*domain.Transition, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out
}
