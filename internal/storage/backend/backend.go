// Package backend opens the store set selected by configuration.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"solana-token-engine/internal/config"
	"solana-token-engine/internal/storage"
	chstore "solana-token-engine/internal/storage/clickhouse"
	"solana-token-engine/internal/storage/memory"
	"solana-token-engine/internal/storage/migrations"
	pgstore "solana-token-engine/internal/storage/postgres"
	"solana-token-engine/internal/storage/sqlite"
)

// Stores is the full set of stores one process uses.
type Stores struct {
	Transitions storage.TransitionLogStore
	Decisions   storage.DecisionStore
	Snapshots   storage.SnapshotStore
	Audit       storage.AuditEventStore
	Discovery   storage.DiscoveryProgressStore

	closers []func() error
}

// Close releases every open connection.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Open builds stores for cfg.Backend and applies migrations. The ledger,
// decisions and discovery progress live in the selected backend. Snapshots
// and audit events go to ClickHouse when a DSN is set, memory otherwise.
func Open(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (*Stores, error) {
	s := &Stores{
		Transitions: memory.NewTransitionLogStore(),
		Decisions:   memory.NewDecisionStore(),
		Snapshots:   memory.NewSnapshotStore(),
		Audit:       memory.NewAuditEventStore(),
		Discovery:   memory.NewDiscoveryProgressStore(),
	}

	switch cfg.Backend {
	case config.BackendMemory, "":
		log.Warn().Msg("memory storage: ledger will not survive a restart")
		return s, nil
	case config.BackendPostgres:
		if err := s.openPostgres(ctx, cfg.PostgresDSN); err != nil {
			_ = s.Close()
			return nil, err
		}
	case config.BackendSQLite:
		if err := s.openSQLite(cfg.SQLitePath); err != nil {
			_ = s.Close()
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	log.Info().Str("backend", cfg.Backend).Msg("ledger storage ready")

	if cfg.ClickhouseDSN != "" {
		if err := s.openClickhouse(ctx, cfg.ClickhouseDSN); err != nil {
			_ = s.Close()
			return nil, err
		}
		log.Info().Msg("clickhouse snapshot and audit storage ready")
	}
	return s, nil
}

func (s *Stores) openPostgres(ctx context.Context, dsn string) error {
	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, func() error { pool.Close(); return nil })

	if err := migrations.RunPostgres(ctx, pool); err != nil {
		return fmt.Errorf("postgres migrations: %w", err)
	}
	s.Transitions = pgstore.NewTransitionLogStore(pool)
	s.Decisions = pgstore.NewDecisionStore(pool)
	s.Discovery = pgstore.NewDiscoveryProgressStore(pool)
	return nil
}

func (s *Stores) openSQLite(path string) error {
	db, err := sqlite.Open(path)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, func() error { return sqlite.Close(db) })

	s.Transitions = sqlite.NewTransitionLogStore(db)
	s.Decisions = sqlite.NewDecisionStore(db)
	s.Discovery = sqlite.NewDiscoveryProgressStore(db)
	return nil
}

func (s *Stores) openClickhouse(ctx context.Context, dsn string) error {
	if err := chstore.EnsureDatabase(ctx, dsn); err != nil {
		return err
	}
	conn, err := chstore.NewConn(ctx, dsn)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, conn.Close)

	if err := migrations.RunClickhouse(ctx, conn); err != nil {
		return fmt.Errorf("clickhouse migrations: %w", err)
	}
	s.Snapshots = chstore.NewSnapshotStore(conn)
	s.Audit = chstore.NewAuditEventStore(conn)
	return nil
}
