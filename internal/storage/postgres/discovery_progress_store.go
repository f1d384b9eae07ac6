package postgres

import (
	"context"
	"fmt"
	"time"

	"solana-token-engine/internal/storage"
)

// DiscoveryProgressStore keeps the launch discovery resume point in a single
// discovery_progress row and announced mints in discovery_seen_mints.
type DiscoveryProgressStore struct {
	pool *Pool
}

func NewDiscoveryProgressStore(pool *Pool) *DiscoveryProgressStore {
	return &DiscoveryProgressStore{pool: pool}
}

// GetLastProcessed returns storage.ErrNotFound before the first checkpoint.
func (s *DiscoveryProgressStore) GetLastProcessed(ctx context.Context) (_ *storage.DiscoveryProgress, err error) {
	defer observe("discovery_progress", time.Now(), &err)

	var (
		slot int64
		sig  string
	)
	err = s.pool.QueryRow(ctx, `SELECT slot, signature FROM discovery_progress WHERE id = 1`).Scan(&slot, &sig)
	if isNotFoundError(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query discovery progress: %w", err)
	}
	return &storage.DiscoveryProgress{Slot: uint64(slot), Signature: sig}, nil
}

// SetLastProcessed overwrites the checkpoint row.
func (s *DiscoveryProgressStore) SetLastProcessed(ctx context.Context, progress *storage.DiscoveryProgress) (err error) {
	if progress == nil {
		return storage.ErrInvalidInput
	}
	defer observe("set_discovery_progress", time.Now(), &err)

	_, err = s.pool.Exec(ctx, `
		INSERT INTO discovery_progress (id, slot, signature, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET slot = EXCLUDED.slot, signature = EXCLUDED.signature, updated_at = NOW()
	`, int64(progress.Slot), progress.Signature)
	if err != nil {
		return fmt.Errorf("save discovery progress: %w", err)
	}
	return nil
}

func (s *DiscoveryProgressStore) IsMintSeen(ctx context.Context, mint string) (seen bool, err error) {
	if mint == "" {
		return false, storage.ErrInvalidInput
	}
	defer observe("mint_seen", time.Now(), &err)

	err = s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM discovery_seen_mints WHERE mint = $1)`, mint).Scan(&seen)
	return seen, err
}

// MarkMintSeen is idempotent.
func (s *DiscoveryProgressStore) MarkMintSeen(ctx context.Context, mint string) (err error) {
	if mint == "" {
		return storage.ErrInvalidInput
	}
	defer observe("mark_mint_seen", time.Now(), &err)

	_, err = s.pool.Exec(ctx, `
		INSERT INTO discovery_seen_mints (mint, seen_at)
		VALUES ($1, NOW())
		ON CONFLICT (mint) DO NOTHING
	`, mint)
	return err
}

func (s *DiscoveryProgressStore) LoadSeenMints(ctx context.Context) (_ []string, err error) {
	defer observe("seen_mints", time.Now(), &err)

	rows, err := s.pool.Query(ctx, `SELECT mint FROM discovery_seen_mints ORDER BY mint`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mints []string
	for rows.Next() {
		var mint string
		if err = rows.Scan(&mint); err != nil {
			return nil, err
		}
		mints = append(mints, mint)
	}
	err = rows.Err()
	return mints, err
}

var _ storage.DiscoveryProgressStore = (*DiscoveryProgressStore)(nil)
