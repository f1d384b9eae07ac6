package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-token-engine/internal/audit"
	"solana-token-engine/internal/config"
	"solana-token-engine/internal/domain"
	"solana-token-engine/internal/engine"
	"solana-token-engine/internal/execution"
	"solana-token-engine/internal/ingestion"
	"solana-token-engine/internal/ledger"
	"solana-token-engine/internal/logging"
	"solana-token-engine/internal/normalize"
	"solana-token-engine/internal/screener"
	"solana-token-engine/internal/scoring"
	"solana-token-engine/internal/solana"
	"solana-token-engine/internal/storage/backend"
	"solana-token-engine/internal/window"
)

// app owns every long-lived component of the service.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	startedAt time.Time

	stores     *backend.Stores
	dispatcher *audit.Dispatcher
	ledger     *ledger.Ledger
	window     *window.Store
	killSwitch *engine.KillSwitch
	engine     *engine.Engine
	watchlist  *ingestion.Watchlist

	pool      *engine.Pool
	poller    *ingestion.Poller
	trending  *ingestion.TrendingFeed
	discovery *ingestion.WSDiscovery
	ws        solana.WSClient

	wg sync.WaitGroup
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, startedAt: time.Now()}

	stores, err := backend.Open(ctx, cfg.Storage, logging.Component(log, "storage"))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.stores = stores

	writers := []audit.Writer{
		audit.NewLogWriter(logging.Component(log, "audit")),
		audit.NewStoreWriter(stores.Audit),
	}
	if cfg.Alerts.TelegramToken != "" {
		tg, err := audit.NewTelegramWriter(cfg.Alerts.TelegramToken, cfg.Alerts.TelegramChatID)
		if err != nil {
			_ = stores.Close()
			return nil, fmt.Errorf("telegram alerts: %w", err)
		}
		writers = append(writers, tg)
	}
	a.dispatcher = audit.NewDispatcher(audit.DispatcherOptions{
		BufferSize: cfg.Alerts.BufferSize,
		Logger:     logging.Component(log, "dispatcher"),
	}, writers...)

	a.watchlist = ingestion.NewWatchlist(cfg.Providers.WatchTTL, nil)
	for _, raw := range cfg.Providers.Watchlist {
		mint, err := normalize.CleanMint(raw)
		if err != nil {
			log.Warn().Str("mint", raw).Err(err).Msg("skipping invalid watchlist entry")
			continue
		}
		a.watchlist.Pin(mint, domain.SourceWatchlist, "config")
	}

	a.ledger = ledger.New(stores.Transitions, ledger.Options{
		Logger: logging.Component(log, "ledger"),
		OnTransition: func(t *domain.Transition, pos *domain.Position) {
			a.dispatcher.Publish(audit.NewTransitionEvent(t, pos))
			holdWhileActive(a.watchlist, t)
		},
	})
	if err := a.restoreLedger(ctx); err != nil {
		a.closeStores()
		return nil, err
	}

	a.window = window.NewStore(window.Options{
		Lookbacks:    cfg.Window.Lookbacks,
		Retention:    cfg.Window.Retention,
		MaxStaleness: cfg.Window.MaxStaleness,
		Capacity:     cfg.Window.Capacity,
		Logger:       logging.Component(log, "window"),
	})
	since := time.Now().Add(-cfg.Window.WarmupWindow).UnixMilli()
	if n, err := a.window.Warm(ctx, stores.Snapshots, since); err != nil {
		log.Warn().Err(err).Msg("window warm-up failed, starting cold")
	} else {
		log.Info().Int("snapshots", n).Msg("windows warmed")
	}

	scorer, err := scoring.FromConfig(scoringConfig(cfg))
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("build scorer: %w", err)
	}

	executor, err := execution.FromOptions(execution.Options{
		Mode:        cfg.Execution.Mode,
		SlippageBps: cfg.Execution.SlippageBps,
		FeeBps:      cfg.Execution.FeeBps,
		ExecutorURL: cfg.Execution.ExecutorURL,
		Timeout:     cfg.Engine.ExecutionTimeout,
		Logger:      logging.Component(log, "execution"),
	}, a.window)
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("build executor: %w", err)
	}

	a.killSwitch = engine.NewKillSwitch(cfg.Engine.MaxFailures, logging.Component(log, "kill_switch"))

	var rpc solana.RPCClient
	if cfg.Providers.RPCEndpoint != "" {
		rpc = solana.NewHTTPClient(cfg.Providers.RPCEndpoint, solana.WithLogger(logging.Component(log, "rpc")))
	}

	a.engine = engine.New(engine.Options{
		Window:            a.window,
		Screener:          screener.New(screenerOptions(cfg, logging.Component(log, "screener"))),
		Scorer:            scorer,
		Ledger:            a.ledger,
		Executor:          executor,
		Facts:             factsSource(cfg, rpc, log),
		Decisions:         stores.Decisions,
		Snapshots:         stores.Snapshots,
		Sink:              a.dispatcher,
		KillSwitch:        a.killSwitch,
		Gates:             engine.Gates{MinLiquidity: cfg.Gates.MinLiquidity, MinVolume5m: cfg.Gates.MinVolume5m},
		PositionSizeQuote: cfg.Engine.PositionSizeQuote,
		ProviderTimeout:   cfg.Engine.ProviderTimeout,
		Logger:            logging.Component(log, "engine"),
	})

	// Positions restored from the log must keep being priced for exits.
	for _, p := range a.ledger.Positions() {
		if p.State.IsActive() {
			a.watchlist.Hold(p.Mint, domain.SourceWatchlist, "open position")
		}
	}

	if cfg.Providers.WSEndpoint != "" && rpc != nil {
		ws, err := solana.NewWSClient(ctx, cfg.Providers.WSEndpoint, &solana.WSConfig{Logger: logging.Component(log, "ws")})
		if err != nil {
			log.Warn().Err(err).Msg("websocket unavailable, launch discovery disabled")
		} else {
			a.ws = ws
			a.discovery = ingestion.NewWSDiscovery(ws, rpc, a.watchlist, ingestion.DiscoveryOptions{
				Progress: stores.Discovery,
				Logger:   log,
			})
		}
	}
	return a, nil
}

// holdWhileActive keeps a mint on the watchlist from the moment a position
// is accepted until it reaches a terminal state.
func holdWhileActive(w *ingestion.Watchlist, t *domain.Transition) {
	switch {
	case t.ToState.IsActive():
		w.Hold(t.Mint, domain.SourceWatchlist, "open position")
	case t.ToState.IsTerminal():
		w.Release(t.Mint)
	}
}

// restoreLedger replays the transition log and fails dangling pending
// positions. A corrupt log is fatal.
func (a *app) restoreLedger(ctx context.Context) error {
	if err := a.ledger.Restore(ctx); err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}
	recovered, err := a.ledger.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recover ledger: %w", err)
	}
	a.log.Info().
		Int64("seq", a.ledger.Seq()).
		Int("positions", len(a.ledger.Positions())).
		Int("recovered", recovered).
		Msg("ledger restored")
	return nil
}

// Start launches the pool and every ingestion loop.
func (a *app) Start(ctx context.Context) {
	cfg := a.cfg
	// Cycles already queued finish after the signal; Shutdown drains them.
	a.pool = engine.NewPool(context.WithoutCancel(ctx), a.engine, engine.PoolOptions{
		Workers:   cfg.Engine.Workers,
		QueueSize: cfg.Engine.QueueSize,
		Logger:    logging.Component(a.log, "pool"),
	})

	dex := ingestion.NewDexscreenerSource(ingestion.DexscreenerOptions{
		BaseURL:     cfg.Providers.DexscreenerURL,
		Timeout:     cfg.Engine.ProviderTimeout,
		MinInterval: cfg.Providers.DexscreenerSpacing,
		Logger:      logging.Component(a.log, "dexscreener"),
	})
	var backfill ingestion.Backfill
	if cfg.Providers.BackfillWindow > 0 {
		gecko := ingestion.NewGeckoTerminalSource(ingestion.GeckoOptions{
			BaseURL:     cfg.Providers.GeckoTerminalURL,
			Timeout:     cfg.Engine.ProviderTimeout,
			MinInterval: cfg.Providers.GeckoSpacing,
			Logger:      logging.Component(a.log, "geckoterminal"),
		})
		backfill = ingestion.NewBackfiller(gecko, a.window, ingestion.BackfillOptions{
			Lookback:  cfg.Providers.BackfillWindow,
			Snapshots: a.stores.Snapshots,
			Logger:    logging.Component(a.log, "backfill"),
		})
	}
	a.poller = ingestion.NewPoller(a.watchlist, dex, a.pool, ingestion.PollerOptions{
		Interval: cfg.Engine.PollInterval,
		Backfill: backfill,
		Logger:   logging.Component(a.log, "poller"),
	})
	a.goRun(ctx, "poller", a.poller.Run)

	if len(cfg.Providers.TrendingFiles) > 0 {
		files := make([]ingestion.TrendingFile, 0, len(cfg.Providers.TrendingFiles))
		for _, f := range cfg.Providers.TrendingFiles {
			files = append(files, ingestion.TrendingFile{Path: f.Path, Label: f.Label})
		}
		src := ingestion.NewTrendingFileSource(files, a.log)
		a.trending = ingestion.NewTrendingFeed(src, a.watchlist, a.pool, cfg.Providers.TrendingInterval, a.log).
			WithBackfill(backfill)
		a.goRun(ctx, "trending", a.trending.Run)
	}

	if a.discovery != nil {
		a.goRun(ctx, "discovery", a.discovery.Run)
	}
}

func (a *app) goRun(ctx context.Context, name string, fn func(context.Context) error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			a.log.Error().Err(err).Str("loop", name).Msg("ingestion loop exited")
		}
	}()
}

// Shutdown waits for ingestion loops, drains the pool, flushes audit events
// and closes storage.
func (a *app) Shutdown(ctx context.Context) error {
	if a.ws != nil {
		_ = a.ws.Close()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		if a.pool != nil {
			a.pool.Close()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn().Msg("timed out waiting for in-flight cycles")
	}

	if err := a.dispatcher.Close(ctx); err != nil {
		a.log.Warn().Err(err).Msg("audit dispatcher did not drain")
	}
	return a.stores.Close()
}

func (a *app) closeStores() {
	_ = a.dispatcher.Close(context.Background())
	_ = a.stores.Close()
}

func scoringConfig(cfg *config.Config) scoring.Config {
	r := cfg.Scoring.Rule
	return scoring.Config{
		Kind: cfg.Scoring.Kind,
		Rule: scoring.RuleParams{
			MinLiquidity:     r.MinLiquidity,
			MinVolume5m:      r.MinVolume5m,
			MaxAge:           r.MaxAge,
			BuyConfidence:    r.BuyConfidence,
			HoldConfidence:   r.HoldConfidence,
			ExitConfidence:   r.ExitConfidence,
			WarningPenalty:   r.WarningPenalty,
			MinBuyConfidence: r.MinBuyConfidence,
			TakeProfitPct:    r.TakeProfitPct,
			StopLossPct:      r.StopLossPct,
			ExitWindow:       r.ExitWindow,
		},
		ParamsPath: cfg.Scoring.Learned.ParamsPath,
	}
}

func screenerOptions(cfg *config.Config, log zerolog.Logger) screener.Options {
	s := cfg.Screener
	return screener.Options{
		CombinePolicy:    s.CombinePolicy,
		WarningThreshold: s.WarningThreshold,
		MaxTop1Pct:       s.MaxTop1Pct,
		MaxTaxFee:        s.MaxTaxFee,
		DangerCooldown:   s.DangerCooldown,
		MaxFactsAge:      s.MaxFactsAge,
		Weights: screener.Weights{
			Concentration:   s.ConcentrationRisk,
			MintAuthority:   s.MintAuthorityRisk,
			FreezeAuthority: s.FreezeRisk,
			AntiBot:         s.AntiBotRisk,
			TaxFee:          s.TaxRisk,
			MutableMetadata: s.MutableMetaRisk,
			Proxy:           s.ProxyRisk,
		},
		Logger: log,
	}
}

// factsSource merges GoPlus with on-chain facts when an RPC endpoint is set.
func factsSource(cfg *config.Config, rpc solana.RPCClient, log zerolog.Logger) engine.FactsSource {
	sources := []ingestion.FactsSource{
		ingestion.NewGoPlusSource(ingestion.GoPlusOptions{
			BaseURL:     cfg.Providers.GoPlusURL,
			APIKey:      cfg.Providers.GoPlusAPIKey,
			Timeout:     cfg.Engine.ProviderTimeout,
			MinInterval: cfg.Providers.GoPlusSpacing,
			Logger:      logging.Component(log, "goplus"),
		}),
	}
	if rpc != nil {
		sources = append(sources, ingestion.NewRPCSecuritySource(rpc, nil, log))
	}
	return ingestion.NewCompositeFactsSource(logging.Component(log, "facts"), sources...)
}
