package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ExchangeConfig ExchangeConfig `json:"exchange"`
	EngineConfig   EngineConfig   `json:"engine"`
	ScannerConfig  ScannerConfig  `json:"scanner"`
	RiskConfig     RiskConfig     `json:"risk"`
	PositionConfig PositionConfig `json:"position"`
	ServerConfig   ServerConfig   `json:"server"`
	DatabaseConfig DatabaseConfig `json:"database"`
	RedisConfig    RedisConfig    `json:"redis"`
	LoggingConfig  LoggingConfig  `json:"logging"`
}

// ExchangeConfig holds market-data and order-routing settings.
type ExchangeConfig struct {
	BaseURL      string  `json:"base_url"`
	WebsocketURL string  `json:"websocket_url"`
	APIKey       string  `json:"api_key"`
	SecretKey    string  `json:"secret_key"`
	DryRun       bool    `json:"dry_run"`       // route orders to the paper broker
	PaperBalance float64 `json:"paper_balance"` // starting balance for dry runs
}

// EngineConfig holds the per-instrument pipeline cadence.
type EngineConfig struct {
	Instrument       string        `json:"instrument"`
	TriggerTimeframe string        `json:"trigger_timeframe"`
	TradingTimeframe string        `json:"trading_timeframe"`
	StructTimeframe  string        `json:"struct_timeframe"`
	CandleLimit      int           `json:"candle_limit"`
	ScanInterval     time.Duration `json:"scan_interval"`
	ManageInterval   time.Duration `json:"manage_interval"`
	FetchTimeout     time.Duration `json:"fetch_timeout"`
	SizePrecision    int           `json:"size_precision"`
}

// ScannerConfig holds structural analysis thresholds.
type ScannerConfig struct {
	SwingLookback         int     `json:"swing_lookback"`
	ZoneTolerancePct      float64 `json:"zone_tolerance_pct"`
	ZoneProximityPct      float64 `json:"zone_proximity_pct"`
	MomentumWindow        int     `json:"momentum_window"`
	MinQualityScore       int     `json:"min_quality_score"`
	TrapMagnitudeRatio    float64 `json:"trap_magnitude_ratio"`
	TrapReversalBodyRatio float64 `json:"trap_reversal_body_ratio"`
}

// RiskConfig holds the hard risk limits.
type RiskConfig struct {
	RiskPerTradePct      float64 `json:"risk_per_trade_pct"`
	MaxSessionRiskPct    float64 `json:"max_session_risk_pct"`
	MaxPositions         int     `json:"max_positions"`
	MaxTotalExposurePct  float64 `json:"max_total_exposure_pct"`
	ConsecutiveLossLimit int     `json:"consecutive_loss_limit"`
	SafetyMargin         float64 `json:"safety_margin"`
}

// PositionConfig holds the trade management rules.
type PositionConfig struct {
	BreakevenAtR    float64       `json:"breakeven_at_r"`
	PartialExitPct  float64       `json:"partial_exit_pct"`
	MaxHold         time.Duration `json:"max_hold"`
	TimeExitMaxAbsR float64       `json:"time_exit_max_abs_r"`
	CommissionRate  float64       `json:"commission_rate"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Enabled        bool     `json:"enabled"`
	Host           string   `json:"host"`
	Port           int      `json:"port"`
	ProductionMode bool     `json:"production_mode"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// DatabaseConfig holds the PostgreSQL audit store settings.
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds position-state persistence settings.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type LoggingConfig struct {
	Level      string `json:"level"`       // DEBUG, INFO, WARN, ERROR
	Output     string `json:"output"`      // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format"` // Output as JSON
}

func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ExchangeConfig.BaseURL == "" {
		cfg.ExchangeConfig.BaseURL = "https://api.binance.com"
	}
	if cfg.ExchangeConfig.WebsocketURL == "" {
		cfg.ExchangeConfig.WebsocketURL = "wss://stream.binance.com:9443"
	}
	if cfg.ExchangeConfig.PaperBalance <= 0 {
		cfg.ExchangeConfig.PaperBalance = 10_000
	}

	if cfg.EngineConfig.Instrument == "" {
		cfg.EngineConfig.Instrument = "ETHUSDT"
	}
	if cfg.EngineConfig.TriggerTimeframe == "" {
		cfg.EngineConfig.TriggerTimeframe = "1m"
	}
	if cfg.EngineConfig.TradingTimeframe == "" {
		cfg.EngineConfig.TradingTimeframe = "3m"
	}
	if cfg.EngineConfig.StructTimeframe == "" {
		cfg.EngineConfig.StructTimeframe = "30m"
	}
	if cfg.EngineConfig.CandleLimit <= 0 {
		cfg.EngineConfig.CandleLimit = 100
	}
	if cfg.EngineConfig.ScanInterval <= 0 {
		cfg.EngineConfig.ScanInterval = 30 * time.Second
	}
	if cfg.EngineConfig.ManageInterval <= 0 {
		cfg.EngineConfig.ManageInterval = 15 * time.Second
	}
	if cfg.EngineConfig.FetchTimeout <= 0 {
		cfg.EngineConfig.FetchTimeout = 5 * time.Second
	}
	if cfg.EngineConfig.SizePrecision <= 0 {
		cfg.EngineConfig.SizePrecision = 3
	}

	if cfg.ScannerConfig.SwingLookback <= 0 {
		cfg.ScannerConfig.SwingLookback = 3
	}
	if cfg.ScannerConfig.ZoneTolerancePct <= 0 {
		cfg.ScannerConfig.ZoneTolerancePct = 0.1
	}
	if cfg.ScannerConfig.ZoneProximityPct <= 0 {
		cfg.ScannerConfig.ZoneProximityPct = 0.2
	}
	if cfg.ScannerConfig.MomentumWindow <= 0 {
		cfg.ScannerConfig.MomentumWindow = 14
	}
	if cfg.ScannerConfig.MinQualityScore <= 0 {
		cfg.ScannerConfig.MinQualityScore = 7
	}
	if cfg.ScannerConfig.TrapMagnitudeRatio <= 0 {
		cfg.ScannerConfig.TrapMagnitudeRatio = 1.0
	}
	if cfg.ScannerConfig.TrapReversalBodyRatio <= 0 {
		cfg.ScannerConfig.TrapReversalBodyRatio = 0.5
	}

	if cfg.RiskConfig.RiskPerTradePct <= 0 {
		cfg.RiskConfig.RiskPerTradePct = 1.0
	}
	if cfg.RiskConfig.MaxSessionRiskPct <= 0 {
		cfg.RiskConfig.MaxSessionRiskPct = 3.0
	}
	if cfg.RiskConfig.MaxPositions <= 0 {
		cfg.RiskConfig.MaxPositions = 3
	}
	if cfg.RiskConfig.MaxTotalExposurePct <= 0 {
		cfg.RiskConfig.MaxTotalExposurePct = 3.0
	}
	if cfg.RiskConfig.ConsecutiveLossLimit <= 0 {
		cfg.RiskConfig.ConsecutiveLossLimit = 5
	}
	if cfg.RiskConfig.SafetyMargin <= 0 || cfg.RiskConfig.SafetyMargin > 1 {
		cfg.RiskConfig.SafetyMargin = 0.95
	}

	if cfg.PositionConfig.BreakevenAtR <= 0 {
		cfg.PositionConfig.BreakevenAtR = 1.0
	}
	if cfg.PositionConfig.PartialExitPct <= 0 {
		cfg.PositionConfig.PartialExitPct = 50
	}
	if cfg.PositionConfig.MaxHold <= 0 {
		cfg.PositionConfig.MaxHold = 2 * time.Hour
	}
	if cfg.PositionConfig.TimeExitMaxAbsR <= 0 {
		cfg.PositionConfig.TimeExitMaxAbsR = 0.5
	}
	if cfg.PositionConfig.CommissionRate <= 0 {
		cfg.PositionConfig.CommissionRate = 0.0004
	}

	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.Port <= 0 {
		cfg.ServerConfig.Port = 8080
	}

	if cfg.DatabaseConfig.Host == "" {
		cfg.DatabaseConfig.Host = "localhost"
	}
	if cfg.DatabaseConfig.Port <= 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}

	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}

	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "INFO"
	}
	if cfg.LoggingConfig.Output == "" {
		cfg.LoggingConfig.Output = "stdout"
	}
}

// applyEnvOverrides applies environment variable overrides; these take
// precedence over the config file.
func applyEnvOverrides(cfg *Config) {
	cfg.ExchangeConfig.BaseURL = getEnvOrDefault("EXCHANGE_BASE_URL", cfg.ExchangeConfig.BaseURL)
	cfg.ExchangeConfig.WebsocketURL = getEnvOrDefault("EXCHANGE_WS_URL", cfg.ExchangeConfig.WebsocketURL)
	cfg.ExchangeConfig.APIKey = getEnvOrDefault("EXCHANGE_API_KEY", cfg.ExchangeConfig.APIKey)
	cfg.ExchangeConfig.SecretKey = getEnvOrDefault("EXCHANGE_SECRET_KEY", cfg.ExchangeConfig.SecretKey)
	if v := os.Getenv("TRADING_DRY_RUN"); v != "" {
		cfg.ExchangeConfig.DryRun = v == "true"
	}
	cfg.ExchangeConfig.PaperBalance = getEnvFloatOrDefault("PAPER_BALANCE", cfg.ExchangeConfig.PaperBalance)

	cfg.EngineConfig.Instrument = getEnvOrDefault("TRADING_INSTRUMENT", cfg.EngineConfig.Instrument)
	cfg.EngineConfig.ScanInterval = getEnvDurationOrDefault("SCAN_INTERVAL", cfg.EngineConfig.ScanInterval)
	cfg.EngineConfig.ManageInterval = getEnvDurationOrDefault("MANAGE_INTERVAL", cfg.EngineConfig.ManageInterval)
	cfg.EngineConfig.FetchTimeout = getEnvDurationOrDefault("FETCH_TIMEOUT", cfg.EngineConfig.FetchTimeout)

	cfg.RiskConfig.RiskPerTradePct = getEnvFloatOrDefault("RISK_PER_TRADE_PCT", cfg.RiskConfig.RiskPerTradePct)
	cfg.RiskConfig.MaxSessionRiskPct = getEnvFloatOrDefault("MAX_SESSION_RISK_PCT", cfg.RiskConfig.MaxSessionRiskPct)
	cfg.RiskConfig.MaxPositions = getEnvIntOrDefault("MAX_POSITIONS", cfg.RiskConfig.MaxPositions)
	cfg.RiskConfig.MaxTotalExposurePct = getEnvFloatOrDefault("MAX_TOTAL_EXPOSURE_PCT", cfg.RiskConfig.MaxTotalExposurePct)

	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", cfg.ServerConfig.Port)
	if v := os.Getenv("SERVER_ENABLED"); v != "" {
		cfg.ServerConfig.Enabled = v == "true"
	}

	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	if v := os.Getenv("DB_ENABLED"); v != "" {
		cfg.DatabaseConfig.Enabled = v == "true"
	}

	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.RedisConfig.Enabled = v == "true"
	}

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	if v := os.Getenv("LOG_JSON"); v != "" {
		cfg.LoggingConfig.JSONFormat = v == "true"
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
