// Package engine orchestrates the per-cycle pipeline: fetch candles, scan
// for setups, gate entries through risk, and run position management.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"price-action-bot/internal/market"
	"price-action-bot/internal/position"
	"price-action-bot/internal/risk"
	"price-action-bot/internal/setups"
)

// AuditSink receives structured records of scanner and risk activity.
// Recording failures are logged and dropped, never retried.
type AuditSink interface {
	RecordSetup(ctx context.Context, s setups.Setup) error
	RecordRiskDecision(ctx context.Context, req risk.TradeRequest, v risk.Verdict) error
}

// Config tunes the engine's cadence and sizing. Timeframes split three ways:
// trigger candles drive entry-level patterns and the cache cycle id, trading
// candles carry the pattern families, structural candles define the market
// structure.
type Config struct {
	Instrument       string
	TriggerTimeframe market.Timeframe
	TradingTimeframe market.Timeframe
	StructTimeframe  market.Timeframe
	CandleLimit      int
	ScanInterval     time.Duration
	ManageInterval   time.Duration
	FetchTimeout     time.Duration
	RiskPerTradePct  float64
	SafetyMargin     float64
	SizePrecision    int
}

// DefaultConfig returns the baseline cadence for one instrument.
func DefaultConfig(instrument string) Config {
	return Config{
		Instrument:       instrument,
		TriggerTimeframe: market.Timeframe1m,
		TradingTimeframe: market.Timeframe3m,
		StructTimeframe:  market.Timeframe30m,
		CandleLimit:      100,
		ScanInterval:     30 * time.Second,
		ManageInterval:   15 * time.Second,
		FetchTimeout:     5 * time.Second,
		RiskPerTradePct:  1.0,
		SafetyMargin:     0.95,
		SizePrecision:    3,
	}
}

// Engine drives the decision pipeline for a single instrument. Scanning and
// management run on independent tickers; both stop together.
type Engine struct {
	cfg       Config
	candles   market.CandleFeed
	quotes    market.QuoteFeed
	account   market.AccountProvider
	scanner   *setups.Scanner
	riskMgr   *risk.Manager
	positions *position.Manager
	audit     AuditSink
	cache     *CycleCache
	logger    zerolog.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup

	mu       sync.RWMutex
	snapshot setups.Snapshot
	halted   bool
	haltedBy string
}

// New wires an engine. The audit sink may be nil.
func New(cfg Config, candles market.CandleFeed, quotes market.QuoteFeed, account market.AccountProvider,
	scanner *setups.Scanner, riskMgr *risk.Manager, positions *position.Manager,
	audit AuditSink, logger zerolog.Logger) *Engine {
	if cfg.TriggerTimeframe == "" {
		cfg.TriggerTimeframe = market.Timeframe1m
	}
	if cfg.TradingTimeframe == "" {
		cfg.TradingTimeframe = market.Timeframe3m
	}
	if cfg.StructTimeframe == "" {
		cfg.StructTimeframe = market.Timeframe30m
	}
	if cfg.CandleLimit <= 0 {
		cfg.CandleLimit = 100
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 30 * time.Second
	}
	if cfg.ManageInterval <= 0 {
		cfg.ManageInterval = 15 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	if cfg.RiskPerTradePct <= 0 {
		cfg.RiskPerTradePct = 1.0
	}
	if cfg.SafetyMargin <= 0 || cfg.SafetyMargin > 1 {
		cfg.SafetyMargin = 0.95
	}
	return &Engine{
		cfg:       cfg,
		candles:   candles,
		quotes:    quotes,
		account:   account,
		scanner:   scanner,
		riskMgr:   riskMgr,
		positions: positions,
		audit:     audit,
		cache:     NewCycleCache(),
		logger:    logger.With().Str("component", "engine").Str("instrument", cfg.Instrument).Logger(),
		stopChan:  make(chan struct{}),
	}
}

// Start launches the scan and management loops.
func (e *Engine) Start() {
	e.logger.Info().
		Dur("scan_interval", e.cfg.ScanInterval).
		Dur("manage_interval", e.cfg.ManageInterval).
		Msg("engine starting")

	e.wg.Add(2)
	go e.scanLoop()
	go e.manageLoop()
}

// Stop shuts both loops down and waits for in-flight cycles to finish. A
// cycle has no side effects until its final decision, so interrupting
// between cycles is always safe.
func (e *Engine) Stop() {
	close(e.stopChan)
	e.wg.Wait()
	e.logger.Info().Msg("engine stopped")
}

func (e *Engine) scanLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.runScanCycle(context.Background())
		}
	}
}

func (e *Engine) manageLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.ManageInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.runManageCycle(context.Background())
		}
	}
}

// runScanCycle is one full pass: fetch, scan (or reuse the cached snapshot
// for the same candle cycle), then attempt entries for actionable setups.
// Any fetch problem degrades to a no-op for this cycle.
func (e *Engine) runScanCycle(ctx context.Context) {
	if e.Halted() {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()

	trigger, err := e.candles.Candles(cctx, e.cfg.Instrument, e.cfg.TriggerTimeframe, e.cfg.CandleLimit)
	if err != nil {
		e.logger.Warn().Err(err).Msg("trigger candles unavailable this cycle")
		return
	}
	trading, err := e.candles.Candles(cctx, e.cfg.Instrument, e.cfg.TradingTimeframe, e.cfg.CandleLimit)
	if err != nil {
		e.logger.Warn().Err(err).Msg("trading candles unavailable this cycle")
		return
	}
	structural, err := e.candles.Candles(cctx, e.cfg.Instrument, e.cfg.StructTimeframe, e.cfg.CandleLimit)
	if err != nil {
		e.logger.Warn().Err(err).Msg("structural candles unavailable this cycle")
		return
	}
	if len(trigger) == 0 || len(trading) == 0 || len(structural) == 0 {
		return
	}

	cycleID := trigger[len(trigger)-1].CloseTime
	snap, cached := e.cache.Get(e.cfg.Instrument, e.cfg.TriggerTimeframe, cycleID)
	if !cached {
		snap, err = e.scanner.Scan(ctx, e.cfg.Instrument, trigger, trading, structural)
		if err != nil {
			e.logger.Warn().Err(err).Msg("scan rejected input, skipping cycle")
			return
		}
		e.cache.Put(e.cfg.Instrument, e.cfg.TriggerTimeframe, cycleID, snap)
		for _, s := range snap.Setups {
			e.recordSetup(ctx, s)
		}
	}

	e.mu.Lock()
	e.snapshot = snap
	e.mu.Unlock()

	if cached {
		return // entries were already attempted for this candle cycle
	}

	for _, s := range snap.Setups {
		if !s.Actionable {
			continue
		}
		e.tryEnter(ctx, s, snap.SizeModifier)
	}
}

// tryEnter sizes a setup, runs the risk gates against a fresh account
// snapshot, and opens the position when approved. A session-level breach
// triggers the emergency flatten and halts new entries.
func (e *Engine) tryEnter(ctx context.Context, s setups.Setup, sizeModifier float64) {
	actx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()

	acct, err := e.account.Account(actx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("account snapshot unavailable, entry skipped")
		return
	}

	sized, err := risk.PositionSize(acct.Balance, e.cfg.RiskPerTradePct, s.TriggerPrice, s.StopLoss, e.cfg.SafetyMargin, e.cfg.SizePrecision)
	if err != nil {
		e.logger.Error().Err(err).Str("setup_id", s.ID).Msg("sizing rejected setup")
		return
	}
	units := sized.Units
	riskPct := sized.RiskPct
	if sizeModifier > 0 && sizeModifier < 1 {
		units = units * sizeModifier
		// the gates and the audit trail must see the risk actually taken
		riskPct = units * sized.StopDistance / acct.Balance * 100
	}
	if units <= 0 {
		return
	}

	req := risk.TradeRequest{
		Instrument: s.Instrument,
		Entry:      s.TriggerPrice,
		Stop:       s.StopLoss,
		Units:      units,
		RiskPct:    riskPct,
	}
	sess := risk.SessionState{
		Balance:           acct.Balance,
		SessionPnLPct:     acct.SessionPnLPct,
		OpenPositions:     e.positions.Count(),
		OpenRiskPct:       e.positions.OpenRiskPct(acct.Balance),
		AvailableMargin:   acct.Balance, // spot-style: full balance collateralizes
		RequiredMargin:    s.TriggerPrice * units,
		ConsecutiveLosses: e.positions.ConsecutiveLosses(),
	}

	verdict := e.riskMgr.Validate(req, sess)
	e.recordRiskDecision(ctx, req, verdict)

	if verdict.Emergency {
		e.triggerEmergency(ctx, "session loss limit breached")
		return
	}
	if !verdict.Approved {
		return
	}

	if _, err := e.positions.Open(ctx, s, units); err != nil {
		e.logger.Error().Err(err).Str("setup_id", s.ID).Msg("entry failed")
	}
}

// runManageCycle fetches a quote and walks every open position through the
// management rules. It also watches the session P&L so a breach flattens
// the book even when no entry is being attempted.
func (e *Engine) runManageCycle(ctx context.Context) {
	if e.positions.Count() == 0 {
		return
	}

	qctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()

	quote, err := e.quotes.Quote(qctx, e.cfg.Instrument)
	if err != nil {
		e.logger.Warn().Err(err).Msg("quote unavailable, management skipped this cycle")
		return
	}

	acct, err := e.account.Account(qctx)
	if err == nil && acct.SessionPnLPct <= -e.riskMgr.Limits().MaxSessionRiskPct {
		e.triggerEmergency(ctx, "session loss limit breached")
		return
	}

	trading, err := e.candles.Candles(qctx, e.cfg.Instrument, e.cfg.TradingTimeframe, e.cfg.CandleLimit)
	if err != nil {
		trading = nil // trailing degrades, stops and targets still apply
	}

	e.positions.ManageAll(ctx,
		map[string]float64{e.cfg.Instrument: quote.Last},
		map[string][]market.Candle{e.cfg.Instrument: trading},
		time.Now().UTC())
}

// triggerEmergency flattens all positions and halts new entries until the
// process restarts.
func (e *Engine) triggerEmergency(ctx context.Context, reason string) {
	e.mu.Lock()
	if e.halted {
		e.mu.Unlock()
		return
	}
	e.halted = true
	e.haltedBy = reason
	e.mu.Unlock()

	e.logger.Error().Str("reason", reason).Msg("emergency stop")

	prices := map[string]float64{}
	qctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()
	if quote, err := e.quotes.Quote(qctx, e.cfg.Instrument); err == nil {
		prices[e.cfg.Instrument] = quote.Last
	}
	e.positions.EmergencyCloseAll(ctx, prices, reason)
}

// Halted reports whether the engine has stopped taking new entries.
func (e *Engine) Halted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.halted
}

// HaltReason returns why the engine halted, empty when running.
func (e *Engine) HaltReason() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.haltedBy
}

// Snapshot returns the latest analysis snapshot for read-only consumers.
func (e *Engine) Snapshot() setups.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshot
}

func (e *Engine) recordSetup(ctx context.Context, s setups.Setup) {
	if e.audit == nil {
		return
	}
	if err := e.audit.RecordSetup(ctx, s); err != nil {
		e.logger.Error().Err(err).Str("setup_id", s.ID).Msg("setup record not persisted")
	}
}

func (e *Engine) recordRiskDecision(ctx context.Context, req risk.TradeRequest, v risk.Verdict) {
	if e.audit == nil {
		return
	}
	if err := e.audit.RecordRiskDecision(ctx, req, v); err != nil {
		e.logger.Error().Err(err).Msg("risk decision not persisted")
	}
}
