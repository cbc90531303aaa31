package setups

import (
	"context"

	"github.com/rs/zerolog"

	"price-action-bot/internal/analysis"
	"price-action-bot/internal/market"
)

// Config tunes the scanner's structural analysis and pattern thresholds.
type Config struct {
	SwingLookback    int
	ZoneTolerancePct float64
	ZoneProximityPct float64
	MomentumWindow   int
	MinQualityScore  int
	Trap             TrapConfig
}

// Snapshot is the full analysis output of one scan pass. The engine caches it
// per cycle and the API serves it read-only.
type Snapshot struct {
	Trend          analysis.TrendState
	StructureBreak bool
	Support        []analysis.Zone
	Resistance     []analysis.Zone
	Strength       analysis.StrengthReport
	Setups         []Setup
	// SizeModifier scales position size when the news gate asks for reduced
	// exposure. 1 when unrestricted.
	SizeModifier float64
}

// Scanner runs the pattern families over candle series and scores the
// results. It holds no market state between passes.
type Scanner struct {
	cfg    Config
	gate   market.NewsGate
	logger zerolog.Logger
}

// NewScanner builds a scanner, filling zero config fields with defaults. The
// news gate may be nil, in which case trading is always allowed.
func NewScanner(cfg Config, gate market.NewsGate, logger zerolog.Logger) *Scanner {
	if cfg.SwingLookback <= 0 {
		cfg.SwingLookback = 3
	}
	if cfg.ZoneTolerancePct <= 0 {
		cfg.ZoneTolerancePct = 0.1
	}
	if cfg.ZoneProximityPct <= 0 {
		cfg.ZoneProximityPct = 0.2
	}
	if cfg.MomentumWindow <= 0 {
		cfg.MomentumWindow = 14
	}
	if cfg.MinQualityScore <= 0 {
		cfg.MinQualityScore = 7
	}
	if cfg.Trap.MagnitudeRatio <= 0 {
		cfg.Trap = DefaultTrapConfig()
	}
	return &Scanner{
		cfg:    cfg,
		gate:   gate,
		logger: logger.With().Str("component", "setup_scanner").Logger(),
	}
}

// Scan analyzes one instrument across three series: swings, zones, trend and
// strength come from the structural candles, pullback and trap patterns run
// on the trading candles, and the weak-point family runs on the fine-grained
// trigger candles. Setups are unioned and scored. Returns a pattern-free
// snapshot (no error) when the news gate blocks trading.
func (s *Scanner) Scan(ctx context.Context, instrument string, trigger, trading, structural []market.Candle) (Snapshot, error) {
	if err := market.ValidateSeries(trigger); err != nil {
		return Snapshot{}, err
	}
	if err := market.ValidateSeries(trading); err != nil {
		return Snapshot{}, err
	}
	if err := market.ValidateSeries(structural); err != nil {
		return Snapshot{}, err
	}

	highs, lows := analysis.DetectSwings(structural, s.cfg.SwingLookback)
	snap := Snapshot{
		Trend:      analysis.ClassifyTrend(highs, lows),
		Support:    analysis.AggregateZones(lows, analysis.ZoneSupport, s.cfg.ZoneTolerancePct),
		Resistance: analysis.AggregateZones(highs, analysis.ZoneResistance, s.cfg.ZoneTolerancePct),
	}
	snap.Strength = analysis.AnalyzeStrength(structural, snap.Trend.Direction, s.cfg.MomentumWindow)
	if len(structural) > 0 {
		snap.StructureBreak = analysis.DetectStructureBreak(snap.Trend, structural[len(structural)-1].Close)
	}

	snap.SizeModifier = 1
	if s.gate != nil {
		status, err := s.gate.Status(ctx, instrument)
		if err != nil {
			s.logger.Warn().Err(err).Str("instrument", instrument).Msg("news gate unavailable, skipping scan")
			return snap, nil
		}
		if !status.TradingAllowed {
			s.logger.Info().Str("instrument", instrument).Str("reason", status.Reason).Msg("trading blocked by news gate")
			return snap, nil
		}
		if status.SizeModifier > 0 {
			snap.SizeModifier = status.SizeModifier
		}
	}

	zones := append(append([]analysis.Zone(nil), snap.Support...), snap.Resistance...)

	var candidates []Setup
	candidates = append(candidates, DetectPullbackToStructure(instrument, trading, snap.Trend, zones, snap.Strength, s.cfg.ZoneProximityPct)...)
	candidates = append(candidates, DetectWeakPoint(instrument, trigger, snap.Trend, snap.Strength)...)

	tradingHighs, tradingLows := analysis.DetectSwings(trading, s.cfg.SwingLookback)
	candidates = append(candidates, DetectThreeSwingTrap(instrument, trading, tradingHighs, tradingLows, s.cfg.Trap, snap.Strength)...)

	for i := range candidates {
		ScoreSetup(&candidates[i], s.scoreContext(candidates[i], snap), s.cfg.MinQualityScore)
		s.logger.Debug().
			Str("instrument", instrument).
			Str("type", string(candidates[i].Type)).
			Str("direction", string(candidates[i].Direction)).
			Int("quality", candidates[i].QualityScore).
			Bool("actionable", candidates[i].Actionable).
			Msg("setup detected")
	}

	snap.Setups = candidates
	return snap, nil
}

func (s *Scanner) scoreContext(setup Setup, snap Snapshot) ScoreContext {
	ctx := ScoreContext{
		TrendStrength: snap.Trend.Strength,
		FibConfluence: HasFibConfluence(setup.TriggerPrice, snap.Strength.FibLevels),
	}
	zones := snap.Support
	if setup.Direction == Short {
		zones = snap.Resistance
	}
	if z, _, ok := analysis.NearestZone(zones, setup.TriggerPrice); ok {
		ctx.ZoneStrength = z.Strength
	}
	return ctx
}
