// Command engine runs the token evaluation and trading decision service:
// watchlist polling, trending imports and launch discovery feed a sharded
// decision pipeline whose BUY/SELL decisions go through the position ledger.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"solana-token-engine/internal/config"
	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/logging"
)

func main() {
	configPath := flag.String("config", os.Getenv("ENGINE_CONFIG"), "path to YAML config file")
	shutdownTimeout := flag.Duration("shutdown-timeout", 30*time.Second, "grace period for in-flight work on shutdown")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := logging.New("info", os.Stderr)
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logging.New(cfg.App.LogLevel, os.Stdout).With().Str("app", cfg.App.Name).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *shutdownTimeout); err != nil {
		if errors.Is(err, domain.ErrCorruptLedger) {
			log.Fatal().Err(err).Msg("refusing to start with a corrupt ledger")
		}
		log.Fatal().Err(err).Msg("engine stopped with error")
	}
	log.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger, shutdownTimeout time.Duration) error {
	app, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	srv := newStatusServer(cfg.App.MetricsAddr, app, log)
	srv.Start()

	app.Start(ctx)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("engine running")

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown")
	}
	return app.Shutdown(shutdownCtx)
}
