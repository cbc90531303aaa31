package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.RiskConfig.RiskPerTradePct != 1.0 {
		t.Errorf("risk per trade default = %v, want 1.0", cfg.RiskConfig.RiskPerTradePct)
	}
	if cfg.RiskConfig.MaxPositions != 3 {
		t.Errorf("max positions default = %d, want 3", cfg.RiskConfig.MaxPositions)
	}
	if cfg.PositionConfig.MaxHold != 2*time.Hour {
		t.Errorf("max hold default = %v, want 2h", cfg.PositionConfig.MaxHold)
	}
	if cfg.ScannerConfig.MinQualityScore != 7 {
		t.Errorf("min quality score default = %d, want 7", cfg.ScannerConfig.MinQualityScore)
	}
	if cfg.EngineConfig.ScanInterval != 30*time.Second {
		t.Errorf("scan interval default = %v, want 30s", cfg.EngineConfig.ScanInterval)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RISK_PER_TRADE_PCT", "0.5")
	t.Setenv("MAX_POSITIONS", "2")
	t.Setenv("TRADING_INSTRUMENT", "BTCUSDT")
	t.Setenv("SCAN_INTERVAL", "10s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.RiskConfig.RiskPerTradePct != 0.5 {
		t.Errorf("risk per trade = %v, want 0.5", cfg.RiskConfig.RiskPerTradePct)
	}
	if cfg.RiskConfig.MaxPositions != 2 {
		t.Errorf("max positions = %d, want 2", cfg.RiskConfig.MaxPositions)
	}
	if cfg.EngineConfig.Instrument != "BTCUSDT" {
		t.Errorf("instrument = %q, want BTCUSDT", cfg.EngineConfig.Instrument)
	}
	if cfg.EngineConfig.ScanInterval != 10*time.Second {
		t.Errorf("scan interval = %v, want 10s", cfg.EngineConfig.ScanInterval)
	}
}

func TestEnvOverrideBadValueFallsBack(t *testing.T) {
	t.Setenv("MAX_POSITIONS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RiskConfig.MaxPositions != 3 {
		t.Errorf("max positions = %d, want default 3", cfg.RiskConfig.MaxPositions)
	}
}
