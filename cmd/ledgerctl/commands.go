package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"solana-token-engine/internal/config"
	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/ledger"
	"solana-token-engine/internal/logging"
	"solana-token-engine/internal/reporting"
	"solana-token-engine/internal/storage/backend"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "ledgerctl",
		Short:        "Inspect and export the position ledger",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("ENGINE_CONFIG"), "path to YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(newReplayCmd(opts))
	root.AddCommand(newPositionsCmd(opts))
	root.AddCommand(newReportCmd(opts))
	return root
}

// session is a restored ledger over the configured stores.
type session struct {
	stores *backend.Stores
	ledger *ledger.Ledger
	log    zerolog.Logger
}

func openSession(ctx context.Context, opts *rootOptions, errOut *os.File) (*session, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	log := logging.New(opts.logLevel, errOut)

	stores, err := backend.Open(ctx, cfg.Storage, log)
	if err != nil {
		return nil, err
	}
	l := ledger.New(stores.Transitions, ledger.Options{Logger: log})
	if err := l.Restore(ctx); err != nil {
		_ = stores.Close()
		return nil, err
	}
	return &session{stores: stores, ledger: l, log: log}, nil
}

func (s *session) Close() {
	_ = s.stores.Close()
}

func newReplayCmd(opts *rootOptions) *cobra.Command {
	var recoverPending bool
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild the ledger from the transition log and verify it",
		Long: `Replays every transition from durable storage, failing on any entry that
cannot be applied, then verifies the rebuilt state against a second replay.
With --recover, positions left pending by an interrupted process are failed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts, os.Stderr)
			if err != nil {
				return err
			}
			defer s.Close()

			if recoverPending {
				n, err := s.ledger.Recover(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "recovered %d pending positions\n", n)
			}
			if err := s.ledger.Verify(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "transitions: %d\n", s.ledger.Seq())
			fmt.Fprintf(out, "mints: %d\n", len(s.ledger.Positions()))
			fmt.Fprintf(out, "realized_pnl: %.6f\n", s.ledger.RealizedPnLTotal())
			fmt.Fprintln(out, "ledger OK")
			return nil
		},
	}
	cmd.Flags().BoolVar(&recoverPending, "recover", false, "fail positions left pending by a crash")
	return cmd
}

func newPositionsCmd(opts *rootOptions) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "positions [MINT]",
		Short: "Print positions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), opts, os.Stderr)
			if err != nil {
				return err
			}
			defer s.Close()

			var positions []*domain.Position
			switch {
			case len(args) == 1:
				positions = s.ledger.History(args[0])
			case all:
				positions = s.ledger.All()
			default:
				positions = s.ledger.Positions()
			}
			return printPositions(cmd, positions)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include earlier terminal positions of each mint")
	return cmd
}

func printPositions(cmd *cobra.Command, positions []*domain.Position) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MINT\tSTATE\tSIZE\tENTRY\tEXIT\tPNL\tREASON")
	for _, p := range positions {
		fmt.Fprintf(tw, "%s\t%s\t%g\t%s\t%s\t%s\t%s\n",
			p.Mint, p.State, p.Size, optFloat(p.EntryPrice), optFloat(p.ExitPrice), optFloat(p.RealizedPnL), p.FailureReason)
	}
	return tw.Flush()
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *v)
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var (
		outDir string
		since  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write positions.csv, decisions.csv and SUMMARY.md",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts, os.Stderr)
			if err != nil {
				return err
			}
			defer s.Close()

			now := time.Now()
			var start int64
			if since > 0 {
				start = now.Add(-since).UnixMilli()
			}
			decisions, err := s.stores.Decisions.GetByTimeRange(ctx, start, now.UnixMilli())
			if err != nil {
				return fmt.Errorf("load decisions: %w", err)
			}
			positions := s.ledger.All()

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			if err := writeFile(filepath.Join(outDir, "positions.csv"), func(f *os.File) error {
				return reporting.WritePositionsCSV(f, positions)
			}); err != nil {
				return err
			}
			if err := writeFile(filepath.Join(outDir, "decisions.csv"), func(f *os.File) error {
				return reporting.WriteDecisionsCSV(f, decisions)
			}); err != nil {
				return err
			}
			summary := reporting.Summary(reporting.Build(positions, decisions, now))
			if err := os.WriteFile(filepath.Join(outDir, "SUMMARY.md"), []byte(summary), 0o644); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d positions and %d decisions to %s\n", len(positions), len(decisions), outDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "output", "output directory")
	cmd.Flags().DurationVar(&since, "since", 0, "only include decisions newer than this (0 = all)")
	return cmd
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
