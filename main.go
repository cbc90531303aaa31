package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"price-action-bot/config"
	"price-action-bot/internal/api"
	"price-action-bot/internal/database"
	"price-action-bot/internal/engine"
	"price-action-bot/internal/logging"
	"price-action-bot/internal/market"
	"price-action-bot/internal/position"
	"price-action-bot/internal/risk"
	"price-action-bot/internal/setups"
)

// settlingRecorder books realized PnL against the paper account before
// forwarding the record to the audit store.
type settlingRecorder struct {
	broker *market.PaperBroker
	next   position.TradeRecorder
}

func (r *settlingRecorder) RecordTrade(ctx context.Context, rec position.TradeRecord) error {
	r.broker.ApplyPnL(rec.NetPnL)
	if r.next != nil {
		return r.next.RecordTrade(ctx, rec)
	}
	return nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	})
	logger.Info().Str("instrument", cfg.EngineConfig.Instrument).Msg("starting price action bot")

	ctx := context.Background()

	feed := market.NewExchangeFeed(cfg.ExchangeConfig.BaseURL, cfg.ExchangeConfig.WebsocketURL, logger)
	defer feed.Close()

	if err := feed.StreamKlines(cfg.EngineConfig.Instrument, []market.Timeframe{
		market.Timeframe(cfg.EngineConfig.TriggerTimeframe),
		market.Timeframe(cfg.EngineConfig.TradingTimeframe),
		market.Timeframe(cfg.EngineConfig.StructTimeframe),
	}); err != nil {
		logger.Warn().Err(err).Msg("kline stream unavailable, candles fall back to REST polling")
	}

	broker := market.NewPaperBroker(cfg.ExchangeConfig.PaperBalance, logger)
	if !cfg.ExchangeConfig.DryRun {
		logger.Warn().Msg("live order routing is not configured, orders go to the paper broker")
	}

	// optional PostgreSQL audit store
	var db *database.DB
	var auditRepo *database.AuditRepository
	if cfg.DatabaseConfig.Enabled {
		db, err = database.NewDB(database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("database connection failed")
		}
		defer db.Close()
		if err := db.RunMigrations(ctx); err != nil {
			logger.Fatal().Err(err).Msg("database migrations failed")
		}
		auditRepo = database.NewAuditRepository(db)
		logger.Info().Msg("audit store connected")
	}

	var auditRecorder position.TradeRecorder
	if auditRepo != nil {
		auditRecorder = auditRepo
	}
	recorder := &settlingRecorder{broker: broker, next: auditRecorder}

	positions := position.NewManager(position.Config{
		MaxPositions:    cfg.RiskConfig.MaxPositions,
		BreakevenAtR:    cfg.PositionConfig.BreakevenAtR,
		PartialExitPct:  cfg.PositionConfig.PartialExitPct,
		MaxHold:         cfg.PositionConfig.MaxHold,
		TimeExitMaxAbsR: cfg.PositionConfig.TimeExitMaxAbsR,
		CommissionRate:  cfg.PositionConfig.CommissionRate,
		SwingLookback:   cfg.ScannerConfig.SwingLookback,
	}, broker, recorder, logger)

	// optional Redis position-state persistence
	if cfg.RedisConfig.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		stateRepo := database.NewPositionStateRepository(client, logger)
		positions.SetStateStore(stateRepo)
		if persisted, err := stateRepo.LoadPositions(ctx); err != nil {
			logger.Warn().Err(err).Msg("could not load persisted positions")
		} else if len(persisted) > 0 {
			positions.Restore(persisted)
		}
	}

	scanner := setups.NewScanner(setups.Config{
		SwingLookback:    cfg.ScannerConfig.SwingLookback,
		ZoneTolerancePct: cfg.ScannerConfig.ZoneTolerancePct,
		ZoneProximityPct: cfg.ScannerConfig.ZoneProximityPct,
		MomentumWindow:   cfg.ScannerConfig.MomentumWindow,
		MinQualityScore:  cfg.ScannerConfig.MinQualityScore,
		Trap: setups.TrapConfig{
			MagnitudeRatio:    cfg.ScannerConfig.TrapMagnitudeRatio,
			ReversalBodyRatio: cfg.ScannerConfig.TrapReversalBodyRatio,
		},
	}, nil, logger)

	riskMgr := risk.NewManager(risk.Limits{
		RiskPerTradePct:      cfg.RiskConfig.RiskPerTradePct,
		MaxSessionRiskPct:    cfg.RiskConfig.MaxSessionRiskPct,
		MaxPositions:         cfg.RiskConfig.MaxPositions,
		MaxTotalExposurePct:  cfg.RiskConfig.MaxTotalExposurePct,
		ConsecutiveLossLimit: cfg.RiskConfig.ConsecutiveLossLimit,
	}, logger)

	var audit engine.AuditSink
	if auditRepo != nil {
		audit = auditRepo
	}

	eng := engine.New(engine.Config{
		Instrument:       cfg.EngineConfig.Instrument,
		TriggerTimeframe: market.Timeframe(cfg.EngineConfig.TriggerTimeframe),
		TradingTimeframe: market.Timeframe(cfg.EngineConfig.TradingTimeframe),
		StructTimeframe:  market.Timeframe(cfg.EngineConfig.StructTimeframe),
		CandleLimit:      cfg.EngineConfig.CandleLimit,
		ScanInterval:     cfg.EngineConfig.ScanInterval,
		ManageInterval:   cfg.EngineConfig.ManageInterval,
		FetchTimeout:     cfg.EngineConfig.FetchTimeout,
		RiskPerTradePct:  cfg.RiskConfig.RiskPerTradePct,
		SafetyMargin:     cfg.RiskConfig.SafetyMargin,
		SizePrecision:    cfg.EngineConfig.SizePrecision,
	}, feed, feed, broker, scanner, riskMgr, positions, audit, logger)

	eng.Start()

	var server *api.Server
	if cfg.ServerConfig.Enabled {
		var history api.TradeHistory
		if auditRepo != nil {
			history = auditRepo
		}
		server = api.NewServer(api.ServerConfig{
			Host:           cfg.ServerConfig.Host,
			Port:           cfg.ServerConfig.Port,
			ProductionMode: cfg.ServerConfig.ProductionMode,
			AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
		}, eng, positions, history, logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error().Err(err).Msg("api server stopped")
			}
		}()
	}

	waitForShutdown(logger)

	eng.Stop()
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("api server shutdown failed")
		}
	}
	logger.Info().Msg("shutdown complete")
}

func waitForShutdown(logger zerolog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
}
