package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore on the token_snapshots table.
type SnapshotStore struct {
	conn *Conn
}

func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)

const snapshotColumns = `
	snapshot_id, mint, observed_at, price, liquidity, pooled_base, pooled_quote,
	volume_5m, volume_1h, volume_6h, volume_24h, market_cap, fdv,
	buy_count_5m, sell_count_5m, holders, total_supply, pair_address, pair_created,
	source, source_label`

// InsertBulk writes snapshots in one batch. ClickHouse does not enforce
// uniqueness, so duplicate ids are checked against the batch and the table
// first and fail the whole batch.
func (s *SnapshotStore) InsertBulk(ctx context.Context, snaps []*domain.TokenSnapshot) (err error) {
	if len(snaps) == 0 {
		return nil
	}
	defer observe("insert_snapshots", time.Now(), &err)

	ids := make([]string, 0, len(snaps))
	seen := make(map[string]struct{}, len(snaps))
	for _, snap := range snaps {
		if snap == nil || snap.SnapshotID == "" || snap.Mint == "" {
			return storage.ErrInvalidInput
		}
		if _, dup := seen[snap.SnapshotID]; dup {
			return storage.ErrDuplicateKey
		}
		seen[snap.SnapshotID] = struct{}{}
		ids = append(ids, snap.SnapshotID)
	}

	var existing uint64
	if err := s.conn.QueryRow(ctx,
		`SELECT count() FROM token_snapshots WHERE snapshot_id IN ?`, ids,
	).Scan(&existing); err != nil {
		return fmt.Errorf("check existing snapshots: %w", err)
	}
	if existing > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO token_snapshots (`+snapshotColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, snap := range snaps {
		if err := batch.Append(
			snap.SnapshotID, snap.Mint, snap.ObservedAt, snap.Price,
			snap.Liquidity, snap.PooledBase, snap.PooledQuote,
			snap.Volume5m, snap.Volume1h, snap.Volume6h, snap.Volume24h,
			snap.MarketCap, snap.FDV,
			snap.BuyCount5m, snap.SellCount5m, snap.Holders, snap.TotalSupply,
			snap.PairAddress, snap.PairCreated,
			string(snap.Source), snap.SourceLabel,
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange returns a mint's snapshots within [start, end].
func (s *SnapshotStore) GetByTimeRange(ctx context.Context, mint string, start, end int64) (_ []*domain.TokenSnapshot, err error) {
	defer observe("snapshots_by_time", time.Now(), &err)
	rows, err := s.conn.Query(ctx, `SELECT `+snapshotColumns+` FROM token_snapshots FINAL
		WHERE mint = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC, snapshot_id ASC`, mint, start, end)
	if err != nil {
		return nil, fmt.Errorf("query snapshots by time range: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

// GetSince returns snapshots of every mint observed at or after since.
func (s *SnapshotStore) GetSince(ctx context.Context, since int64) (_ []*domain.TokenSnapshot, err error) {
	defer observe("snapshots_since", time.Now(), &err)
	rows, err := s.conn.Query(ctx, `SELECT `+snapshotColumns+` FROM token_snapshots FINAL
		WHERE observed_at >= ?
		ORDER BY observed_at ASC, mint ASC, snapshot_id ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("query snapshots since: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

func scanSnapshots(rows chRows) ([]*domain.TokenSnapshot, error) {
	var out []*domain.TokenSnapshot
	for rows.Next() {
		var snap domain.TokenSnapshot
		var source string
		if err := rows.Scan(
			&snap.SnapshotID, &snap.Mint, &snap.ObservedAt, &snap.Price,
			&snap.Liquidity, &snap.PooledBase, &snap.PooledQuote,
			&snap.Volume5m, &snap.Volume1h, &snap.Volume6h, &snap.Volume24h,
			&snap.MarketCap, &snap.FDV,
			&snap.BuyCount5m, &snap.SellCount5m, &snap.Holders, &snap.TotalSupply,
			&snap.PairAddress, &snap.PairCreated,
			&source, &snap.SourceLabel,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snap.Source = domain.Source(source)
		out = append(out, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return out, nil
}
