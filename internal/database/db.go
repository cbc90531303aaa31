// Package database persists the audit trail (setups, risk decisions, trade
// records) in PostgreSQL and position snapshots in Redis.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool.
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Config holds database configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection pool and verifies it.
func NewDB(cfg Config, logger zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log := logger.With().Str("component", "database").Logger()
	log.Info().Str("database", cfg.Database).Msg("connected to PostgreSQL")

	return &DB{Pool: pool, logger: log}, nil
}

// Close closes the database connection pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("database connection closed")
	}
}

// RunMigrations creates the audit tables.
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info().Msg("running database migrations")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS trade_records (
			trade_id UUID PRIMARY KEY,
			position_id UUID NOT NULL,
			instrument VARCHAR(20) NOT NULL,
			setup_type VARCHAR(32) NOT NULL,
			direction VARCHAR(5) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			exit_price DECIMAL(20, 8) NOT NULL,
			entry_time TIMESTAMPTZ NOT NULL,
			exit_time TIMESTAMPTZ NOT NULL,
			size DECIMAL(20, 8) NOT NULL,
			gross_pnl DECIMAL(20, 8) NOT NULL,
			commission DECIMAL(20, 8) NOT NULL,
			net_pnl DECIMAL(20, 8) NOT NULL,
			r_multiple DECIMAL(10, 4) NOT NULL,
			exit_type VARCHAR(16) NOT NULL,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_records_instrument ON trade_records(instrument)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_records_exit_time ON trade_records(exit_time)`,

		`CREATE TABLE IF NOT EXISTS setup_events (
			id UUID PRIMARY KEY,
			instrument VARCHAR(20) NOT NULL,
			setup_type VARCHAR(32) NOT NULL,
			direction VARCHAR(5) NOT NULL,
			trigger_price DECIMAL(20, 8) NOT NULL,
			stop_loss DECIMAL(20, 8) NOT NULL,
			target_1 DECIMAL(20, 8),
			target_2 DECIMAL(20, 8),
			quality_score INT NOT NULL,
			actionable BOOLEAN NOT NULL,
			supporting_factors JSONB,
			risks JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_setup_events_instrument ON setup_events(instrument)`,
		`CREATE INDEX IF NOT EXISTS idx_setup_events_created_at ON setup_events(created_at)`,

		`CREATE TABLE IF NOT EXISTS risk_decisions (
			id UUID PRIMARY KEY,
			instrument VARCHAR(20) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			stop_loss DECIMAL(20, 8) NOT NULL,
			units DECIMAL(20, 8) NOT NULL,
			risk_pct DECIMAL(10, 4) NOT NULL,
			approved BOOLEAN NOT NULL,
			emergency BOOLEAN NOT NULL,
			reasons JSONB,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_risk_decisions_instrument ON risk_decisions(instrument)`,
		`CREATE INDEX IF NOT EXISTS idx_risk_decisions_created_at ON risk_decisions(created_at)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info().Msg("database migrations completed")
	return nil
}
