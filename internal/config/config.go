// Package config loads the engine configuration from YAML and the environment.
// A Config is immutable once loaded; components receive copies of the sections they need.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Combine policies for soft security risks.
const (
	CombineAdditive = "additive"
	CombineMax      = "max"
)

// Execution modes.
const (
	ModePaper = "paper"
	ModeLive  = "live"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Scorer kinds.
const (
	ScorerRule    = "rule"
	ScorerLearned = "learned"
)

// Config is the full set of recognized options.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Window    WindowConfig    `yaml:"window"`
	Screener  ScreenerConfig  `yaml:"screener"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Gates     GatesConfig     `yaml:"gates"`
	Engine    EngineConfig    `yaml:"engine"`
	Execution ExecutionConfig `yaml:"execution"`
	Storage   StorageConfig   `yaml:"storage"`
	Providers ProvidersConfig `yaml:"providers"`
	Alerts    AlertsConfig    `yaml:"alerts"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`
}

type WindowConfig struct {
	Lookbacks    []time.Duration `yaml:"lookbacks"`
	Retention    time.Duration   `yaml:"retention"`
	MaxStaleness time.Duration   `yaml:"max_staleness"`
	Capacity     int             `yaml:"capacity"`
	WarmupWindow time.Duration   `yaml:"warmup_window"`
}

type ScreenerConfig struct {
	CombinePolicy     string        `yaml:"combine_policy"`
	WarningThreshold  float64       `yaml:"warning_threshold"`
	MaxTop1Pct        float64       `yaml:"max_top1_pct"`
	MaxTaxFee         float64       `yaml:"max_tax_fee"`
	DangerCooldown    time.Duration `yaml:"danger_cooldown"`
	MaxFactsAge       time.Duration `yaml:"max_facts_age"`
	ConcentrationRisk float64       `yaml:"concentration_weight"`
	MintAuthorityRisk float64       `yaml:"mint_authority_weight"`
	FreezeRisk        float64       `yaml:"freeze_authority_weight"`
	AntiBotRisk       float64       `yaml:"anti_bot_weight"`
	TaxRisk           float64       `yaml:"tax_fee_weight"`
	MutableMetaRisk   float64       `yaml:"mutable_metadata_weight"`
	ProxyRisk         float64       `yaml:"proxy_weight"`
}

type ScoringConfig struct {
	Kind    string            `yaml:"kind"`
	Rule    RuleScorerConfig  `yaml:"rule"`
	Learned LearnedScorerConf `yaml:"learned"`
}

type RuleScorerConfig struct {
	MinLiquidity     float64       `yaml:"min_liquidity"`
	MinVolume5m      float64       `yaml:"min_volume_5m"`
	MaxAge           time.Duration `yaml:"max_age"`
	BuyConfidence    float64       `yaml:"buy_confidence"`
	HoldConfidence   float64       `yaml:"hold_confidence"`
	ExitConfidence   float64       `yaml:"exit_confidence"`
	WarningPenalty   float64       `yaml:"warning_penalty"`
	MinBuyConfidence float64       `yaml:"min_buy_confidence"`
	TakeProfitPct    float64       `yaml:"take_profit_pct"`
	StopLossPct      float64       `yaml:"stop_loss_pct"`
	ExitWindow       time.Duration `yaml:"exit_window"`
}

type LearnedScorerConf struct {
	ParamsPath string `yaml:"params_path"`
}

type GatesConfig struct {
	MinLiquidity float64 `yaml:"min_liquidity"`
	MinVolume5m  float64 `yaml:"min_volume_5m"`
}

type EngineConfig struct {
	Workers           int           `yaml:"workers"`
	QueueSize         int           `yaml:"queue_size"`
	ProviderTimeout   time.Duration `yaml:"provider_timeout"`
	ExecutionTimeout  time.Duration `yaml:"execution_timeout"`
	PositionSizeQuote float64       `yaml:"position_size_quote"`
	PollInterval      time.Duration `yaml:"poll_interval"`
	MaxFailures       int           `yaml:"max_consecutive_failures"`
}

type ExecutionConfig struct {
	Mode        string  `yaml:"mode"`
	SlippageBps float64 `yaml:"slippage_bps"`
	FeeBps      float64 `yaml:"fee_bps"`
	ExecutorURL string  `yaml:"executor_url"`
}

type StorageConfig struct {
	Backend       string `yaml:"backend"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	SQLitePath    string `yaml:"sqlite_path"`
}

type ProvidersConfig struct {
	DexscreenerURL     string         `yaml:"dexscreener_url"`
	GoPlusURL          string         `yaml:"goplus_url"`
	GoPlusAPIKey       string         `yaml:"goplus_api_key"`
	RPCEndpoint        string         `yaml:"rpc_endpoint"`
	WSEndpoint         string         `yaml:"ws_endpoint"`
	DexscreenerSpacing time.Duration  `yaml:"dexscreener_min_interval"`
	GoPlusSpacing      time.Duration  `yaml:"goplus_min_interval"`
	GeckoTerminalURL   string         `yaml:"geckoterminal_url"`
	GeckoSpacing       time.Duration  `yaml:"geckoterminal_min_interval"`
	BackfillWindow     time.Duration  `yaml:"backfill_window"` // negative disables OHLCV backfill
	TrendingFiles      []TrendingFile `yaml:"trending_files"`
	TrendingInterval   time.Duration  `yaml:"trending_interval"`
	Watchlist          []string       `yaml:"watchlist"`
	WatchTTL           time.Duration  `yaml:"watch_ttl"`
}

// TrendingFile is one trending export with the label recorded as snapshot source.
type TrendingFile struct {
	Path  string `yaml:"path"`
	Label string `yaml:"label"`
}

type AlertsConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
	BufferSize     int    `yaml:"buffer_size"`
}

// Load reads an optional .env file, the YAML file at path, applies environment
// overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Storage.PostgresDSN, "POSTGRES_DSN")
	setString(&cfg.Storage.ClickhouseDSN, "CLICKHOUSE_DSN")
	setString(&cfg.Storage.Backend, "STORAGE_BACKEND")
	setString(&cfg.Providers.RPCEndpoint, "SOLANA_RPC_ENDPOINT")
	setString(&cfg.Providers.WSEndpoint, "SOLANA_WS_ENDPOINT")
	setString(&cfg.Providers.GoPlusAPIKey, "GOPLUS_API_KEY")
	setString(&cfg.Execution.ExecutorURL, "EXECUTOR_URL")
	setString(&cfg.Execution.Mode, "EXECUTION_MODE")
	setString(&cfg.Alerts.TelegramToken, "TELEGRAM_BOT_TOKEN")
	setString(&cfg.App.LogLevel, "LOG_LEVEL")
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Alerts.TelegramChatID = id
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setDefaults fills unset options. Defaults lean restrictive: short staleness,
// long cool-down, paper execution, in-memory storage.
func setDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "token-engine"
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.MetricsAddr == "" {
		cfg.App.MetricsAddr = ":9090"
	}

	if len(cfg.Window.Lookbacks) == 0 {
		cfg.Window.Lookbacks = []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute, time.Hour}
	}
	if cfg.Window.Retention == 0 {
		cfg.Window.Retention = 24 * time.Hour
	}
	if cfg.Window.MaxStaleness == 0 {
		cfg.Window.MaxStaleness = 5 * time.Minute
	}
	if cfg.Window.Capacity == 0 {
		cfg.Window.Capacity = 2880 // 24h at 30s sampling
	}
	if cfg.Window.WarmupWindow == 0 {
		cfg.Window.WarmupWindow = time.Hour
	}

	s := &cfg.Screener
	if s.CombinePolicy == "" {
		s.CombinePolicy = CombineMax
	}
	if s.WarningThreshold == 0 {
		s.WarningThreshold = 0.5
	}
	if s.MaxTop1Pct == 0 {
		s.MaxTop1Pct = 0.2
	}
	if s.MaxTaxFee == 0 {
		s.MaxTaxFee = 0.05
	}
	if s.DangerCooldown == 0 {
		s.DangerCooldown = 24 * time.Hour
	}
	if s.MaxFactsAge == 0 {
		s.MaxFactsAge = 15 * time.Minute
	}
	if s.ConcentrationRisk == 0 {
		s.ConcentrationRisk = 0.6
	}
	if s.MintAuthorityRisk == 0 {
		s.MintAuthorityRisk = 0.7
	}
	if s.FreezeRisk == 0 {
		s.FreezeRisk = 0.7
	}
	if s.AntiBotRisk == 0 {
		s.AntiBotRisk = 0.5
	}
	if s.TaxRisk == 0 {
		s.TaxRisk = 0.5
	}
	if s.MutableMetaRisk == 0 {
		s.MutableMetaRisk = 0.3
	}
	if s.ProxyRisk == 0 {
		s.ProxyRisk = 0.4
	}

	if cfg.Scoring.Kind == "" {
		cfg.Scoring.Kind = ScorerRule
	}
	r := &cfg.Scoring.Rule
	if r.MinLiquidity == 0 {
		r.MinLiquidity = 1000
	}
	if r.MinVolume5m == 0 {
		r.MinVolume5m = 1000
	}
	if r.MaxAge == 0 {
		r.MaxAge = 72 * time.Hour
	}
	if r.BuyConfidence == 0 {
		r.BuyConfidence = 0.8
	}
	if r.HoldConfidence == 0 {
		r.HoldConfidence = 0.5
	}
	if r.ExitConfidence == 0 {
		r.ExitConfidence = 0.9
	}
	if r.WarningPenalty == 0 {
		r.WarningPenalty = 0.2
	}
	if r.MinBuyConfidence == 0 {
		r.MinBuyConfidence = 0.7
	}
	if r.TakeProfitPct == 0 {
		r.TakeProfitPct = 0.3
	}
	if r.StopLossPct == 0 {
		r.StopLossPct = 0.15
	}
	if r.ExitWindow == 0 {
		r.ExitWindow = 5 * time.Minute
	}

	if cfg.Gates.MinLiquidity == 0 {
		cfg.Gates.MinLiquidity = 1000
	}
	if cfg.Gates.MinVolume5m == 0 {
		cfg.Gates.MinVolume5m = 500
	}

	e := &cfg.Engine
	if e.Workers == 0 {
		e.Workers = 8
	}
	if e.QueueSize == 0 {
		e.QueueSize = 64
	}
	if e.ProviderTimeout == 0 {
		e.ProviderTimeout = 10 * time.Second
	}
	if e.ExecutionTimeout == 0 {
		e.ExecutionTimeout = 30 * time.Second
	}
	if e.PositionSizeQuote == 0 {
		e.PositionSizeQuote = 10
	}
	if e.PollInterval == 0 {
		e.PollInterval = 30 * time.Second
	}
	if e.MaxFailures == 0 {
		e.MaxFailures = 3
	}

	if cfg.Execution.Mode == "" {
		cfg.Execution.Mode = ModePaper
	}
	if cfg.Execution.SlippageBps == 0 {
		cfg.Execution.SlippageBps = 100
	}
	if cfg.Execution.FeeBps == 0 {
		cfg.Execution.FeeBps = 25
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendMemory
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/ledger.db"
	}

	p := &cfg.Providers
	if p.DexscreenerURL == "" {
		p.DexscreenerURL = "https://api.dexscreener.com"
	}
	if p.GoPlusURL == "" {
		p.GoPlusURL = "https://api.gopluslabs.io"
	}
	if p.DexscreenerSpacing == 0 {
		p.DexscreenerSpacing = 250 * time.Millisecond
	}
	if p.GoPlusSpacing == 0 {
		p.GoPlusSpacing = 2100 * time.Millisecond // 30 requests/minute
	}
	if p.GeckoTerminalURL == "" {
		p.GeckoTerminalURL = "https://api.geckoterminal.com/api/v2"
	}
	if p.GeckoSpacing == 0 {
		p.GeckoSpacing = 2100 * time.Millisecond
	}
	if p.BackfillWindow == 0 {
		p.BackfillWindow = cfg.Window.WarmupWindow
	}
	if p.TrendingInterval == 0 {
		p.TrendingInterval = 5 * time.Minute
	}
	if p.WatchTTL == 0 {
		p.WatchTTL = 6 * time.Hour
	}

	if cfg.Alerts.BufferSize == 0 {
		cfg.Alerts.BufferSize = 1024
	}
}

// Validate rejects impossible option combinations.
func (c *Config) Validate() error {
	for i, lb := range c.Window.Lookbacks {
		if lb <= 0 {
			return fmt.Errorf("window.lookbacks[%d] must be positive", i)
		}
	}
	if c.Window.MaxStaleness < c.SmallestLookback() {
		return fmt.Errorf("window.max_staleness (%v) must be >= smallest lookback (%v)", c.Window.MaxStaleness, c.SmallestLookback())
	}
	if c.Window.Retention < c.LargestLookback() {
		return fmt.Errorf("window.retention (%v) must be >= largest lookback (%v)", c.Window.Retention, c.LargestLookback())
	}
	if c.Window.Capacity < 2 {
		return fmt.Errorf("window.capacity must be >= 2")
	}
	switch c.Screener.CombinePolicy {
	case CombineAdditive, CombineMax:
	default:
		return fmt.Errorf("unknown screener.combine_policy %q", c.Screener.CombinePolicy)
	}
	if c.Screener.WarningThreshold < 0 {
		return fmt.Errorf("screener.warning_threshold must be >= 0")
	}
	switch c.Scoring.Kind {
	case ScorerRule:
	case ScorerLearned:
		if c.Scoring.Learned.ParamsPath == "" {
			return fmt.Errorf("scoring.learned.params_path is required for learned scorer")
		}
	default:
		return fmt.Errorf("unknown scoring.kind %q", c.Scoring.Kind)
	}
	if c.Scoring.Rule.BuyConfidence < 0 || c.Scoring.Rule.BuyConfidence > 1 {
		return fmt.Errorf("scoring.rule.buy_confidence must be within [0,1]")
	}
	if c.Engine.Workers < 1 {
		return fmt.Errorf("engine.workers must be >= 1")
	}
	if c.Engine.PositionSizeQuote <= 0 {
		return fmt.Errorf("engine.position_size_quote must be positive")
	}
	switch c.Execution.Mode {
	case ModePaper:
	case ModeLive:
		if c.Execution.ExecutorURL == "" {
			return fmt.Errorf("execution.executor_url is required in live mode")
		}
	default:
		return fmt.Errorf("unknown execution.mode %q", c.Execution.Mode)
	}
	switch c.Storage.Backend {
	case BackendMemory, BackendSQLite:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if c.Alerts.TelegramToken != "" && c.Alerts.TelegramChatID == 0 {
		return fmt.Errorf("alerts.telegram_chat_id is required when telegram_token is set")
	}
	return nil
}

// SmallestLookback returns the shortest configured lookback window.
func (c *Config) SmallestLookback() time.Duration {
	var min time.Duration
	for _, lb := range c.Window.Lookbacks {
		if min == 0 || lb < min {
			min = lb
		}
	}
	return min
}

// LargestLookback returns the longest configured lookback window.
func (c *Config) LargestLookback() time.Duration {
	var max time.Duration
	for _, lb := range c.Window.Lookbacks {
		if lb > max {
			max = lb
		}
	}
	return max
}
