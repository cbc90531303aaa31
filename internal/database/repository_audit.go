package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"price-action-bot/internal/position"
	"price-action-bot/internal/risk"
	"price-action-bot/internal/setups"
)

// AuditRepository is the append-only sink for everything the engine decides:
// setups surfaced, risk verdicts, and completed trades.
type AuditRepository struct {
	db *DB
}

func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// RecordTrade appends a completed (or partially completed) trade.
func (r *AuditRepository) RecordTrade(ctx context.Context, rec position.TradeRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO trade_records (
			trade_id, position_id, instrument, setup_type, direction,
			entry_price, exit_price, entry_time, exit_time, size,
			gross_pnl, commission, net_pnl, r_multiple, exit_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		rec.TradeID, rec.PositionID, rec.Instrument, rec.SetupType, rec.Direction,
		rec.EntryPrice, rec.ExitPrice, rec.EntryTime, rec.ExitTime, rec.Size,
		rec.GrossPnL, rec.Commission, rec.NetPnL, rec.RMultiple, rec.ExitType,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade record: %w", err)
	}
	return nil
}

// RecordSetup appends a setup the scanner surfaced.
func (r *AuditRepository) RecordSetup(ctx context.Context, s setups.Setup) error {
	factors, err := json.Marshal(s.SupportingFactors)
	if err != nil {
		return fmt.Errorf("failed to marshal supporting factors: %w", err)
	}
	risks, err := json.Marshal(s.Risks)
	if err != nil {
		return fmt.Errorf("failed to marshal risks: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO setup_events (
			id, instrument, setup_type, direction, trigger_price, stop_loss,
			target_1, target_2, quality_score, actionable,
			supporting_factors, risks, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.Instrument, s.Type, s.Direction, s.TriggerPrice, s.StopLoss,
		s.Target1, s.Target2, s.QualityScore, s.Actionable,
		factors, risks, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert setup event: %w", err)
	}
	return nil
}

// RecordRiskDecision appends a risk verdict with all gate reasons.
func (r *AuditRepository) RecordRiskDecision(ctx context.Context, req risk.TradeRequest, v risk.Verdict) error {
	reasons, err := json.Marshal(v.Reasons())
	if err != nil {
		return fmt.Errorf("failed to marshal reasons: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO risk_decisions (
			id, instrument, entry_price, stop_loss, units, risk_pct,
			approved, emergency, reasons
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New().String(), req.Instrument, req.Entry, req.Stop, req.Units, req.RiskPct,
		v.Approved, v.Emergency, reasons,
	)
	if err != nil {
		return fmt.Errorf("failed to insert risk decision: %w", err)
	}
	return nil
}

// RecentTrades returns the latest trade records, newest first.
func (r *AuditRepository) RecentTrades(ctx context.Context, limit int) ([]position.TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT trade_id, position_id, instrument, setup_type, direction,
		       entry_price, exit_price, entry_time, exit_time, size,
		       gross_pnl, commission, net_pnl, r_multiple, exit_type
		FROM trade_records
		ORDER BY exit_time DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade records: %w", err)
	}
	defer rows.Close()

	var out []position.TradeRecord
	for rows.Next() {
		var rec position.TradeRecord
		if err := rows.Scan(
			&rec.TradeID, &rec.PositionID, &rec.Instrument, &rec.SetupType, &rec.Direction,
			&rec.EntryPrice, &rec.ExitPrice, &rec.EntryTime, &rec.ExitTime, &rec.Size,
			&rec.GrossPnL, &rec.Commission, &rec.NetPnL, &rec.RMultiple, &rec.ExitType,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
