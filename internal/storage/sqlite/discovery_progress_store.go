package sqlite

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"solana-token-engine/internal/storage"
)

// DiscoveryProgressStore implements storage.DiscoveryProgressStore.
type DiscoveryProgressStore struct {
	db *gorm.DB
}

func NewDiscoveryProgressStore(db *gorm.DB) *DiscoveryProgressStore {
	return &DiscoveryProgressStore{db: db}
}

var _ storage.DiscoveryProgressStore = (*DiscoveryProgressStore)(nil)

func (s *DiscoveryProgressStore) GetLastProcessed(ctx context.Context) (*storage.DiscoveryProgress, error) {
	var row discoveryProgressRow
	err := s.db.WithContext(ctx).Where("id = ?", 1).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &storage.DiscoveryProgress{Slot: row.Slot, Signature: row.Signature}, nil
}

func (s *DiscoveryProgressStore) SetLastProcessed(ctx context.Context, progress *storage.DiscoveryProgress) error {
	if progress == nil {
		return storage.ErrInvalidInput
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&discoveryProgressRow{ID: 1, Slot: progress.Slot, Signature: progress.Signature}).Error
}

func (s *DiscoveryProgressStore) IsMintSeen(ctx context.Context, mint string) (bool, error) {
	if mint == "" {
		return false, storage.ErrInvalidInput
	}
	var n int64
	err := s.db.WithContext(ctx).Model(&seenMintRow{}).Where("mint = ?", mint).Count(&n).Error
	return n > 0, err
}

func (s *DiscoveryProgressStore) MarkMintSeen(ctx context.Context, mint string) error {
	if mint == "" {
		return storage.ErrInvalidInput
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&seenMintRow{Mint: mint}).Error
}

func (s *DiscoveryProgressStore) LoadSeenMints(ctx context.Context) ([]string, error) {
	var mints []string
	err := s.db.WithContext(ctx).Model(&seenMintRow{}).Order("mint ASC").Pluck("mint", &mints).Error
	return mints, err
}
