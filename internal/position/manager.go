package position

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"price-action-bot/internal/analysis"
	"price-action-bot/internal/market"
	"price-action-bot/internal/setups"
)

// Config tunes the management rules.
type Config struct {
	MaxPositions    int
	BreakevenAtR    float64
	PartialExitPct  float64
	MaxHold         time.Duration
	TimeExitMaxAbsR float64
	CommissionRate  float64
	SwingLookback   int
}

// DefaultConfig returns the baseline management posture.
func DefaultConfig() Config {
	return Config{
		MaxPositions:    3,
		BreakevenAtR:    1.0,
		PartialExitPct:  50,
		MaxHold:         2 * time.Hour,
		TimeExitMaxAbsR: 0.5,
		CommissionRate:  0.0004,
		SwingLookback:   3,
	}
}

// ErrMaxPositions guards the position-count invariant at the manager
// boundary. The risk gates should have rejected the trade before it gets
// here, so hitting this is a sequencing bug worth a loud log.
var ErrMaxPositions = errors.New("position limit already reached")

// TradeRecorder receives the audit record for every exit. Recording failures
// are logged, never retried, and never block trade management.
type TradeRecorder interface {
	RecordTrade(ctx context.Context, rec TradeRecord) error
}

// StateStore persists open-position snapshots so a restart can resume
// managing live positions. Persistence failures are logged, never fatal.
type StateStore interface {
	SavePosition(ctx context.Context, p Position) error
	DeletePosition(ctx context.Context, id string) error
}

// Manager owns all open positions for one account. All state transitions for
// a position happen inside the manager's lock, so a management pass sees a
// consistent price/stop pair.
type Manager struct {
	mu        sync.RWMutex
	positions map[string]*Position

	// consecutiveLosses counts realized losing exits since the last winner.
	// Session-scoped, feeds the loss-streak risk gate.
	consecutiveLosses int

	cfg      Config
	exec     market.OrderExecutor
	recorder TradeRecorder
	store    StateStore
	logger   zerolog.Logger
}

// NewManager builds a manager. The executor may be nil for paper trading and
// the recorder may be nil to skip auditing.
func NewManager(cfg Config, exec market.OrderExecutor, recorder TradeRecorder, logger zerolog.Logger) *Manager {
	if cfg.MaxPositions <= 0 {
		cfg.MaxPositions = 3
	}
	if cfg.BreakevenAtR <= 0 {
		cfg.BreakevenAtR = 1.0
	}
	if cfg.PartialExitPct <= 0 || cfg.PartialExitPct >= 100 {
		cfg.PartialExitPct = 50
	}
	if cfg.MaxHold <= 0 {
		cfg.MaxHold = 2 * time.Hour
	}
	if cfg.TimeExitMaxAbsR <= 0 {
		cfg.TimeExitMaxAbsR = 0.5
	}
	if cfg.CommissionRate <= 0 {
		cfg.CommissionRate = 0.0004
	}
	if cfg.SwingLookback <= 0 {
		cfg.SwingLookback = 3
	}
	return &Manager{
		positions: make(map[string]*Position),
		cfg:       cfg,
		exec:      exec,
		recorder:  recorder,
		logger:    logger.With().Str("component", "position_manager").Logger(),
	}
}

// SetStateStore enables position-state persistence. Call before Start-time
// wiring completes; the manager does not guard against mid-flight swaps.
func (m *Manager) SetStateStore(store StateStore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = store
}

// Restore re-adopts positions persisted by a previous run. Closed snapshots
// are skipped; anything past the position cap is dropped with a log.
func (m *Manager) Restore(positions []Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range positions {
		p := positions[i]
		if p.Status == StatusClosed || p.RemainingSize <= 0 {
			continue
		}
		if len(m.positions) >= m.cfg.MaxPositions {
			m.logger.Warn().
				Str("position_id", p.ID).
				Msg("persisted position dropped, position cap reached")
			continue
		}
		m.positions[p.ID] = &p
		m.logger.Info().
			Str("position_id", p.ID).
			Str("instrument", p.Instrument).
			Float64("remaining", p.RemainingSize).
			Msg("position restored from state store")
	}
}

func (m *Manager) saveLocked(ctx context.Context, p *Position) {
	if m.store == nil {
		return
	}
	if err := m.store.SavePosition(ctx, *p); err != nil {
		m.logger.Error().Err(err).Str("position_id", p.ID).Msg("position state not persisted")
	}
}

func (m *Manager) deleteStateLocked(ctx context.Context, id string) {
	if m.store == nil {
		return
	}
	if err := m.store.DeletePosition(ctx, id); err != nil {
		m.logger.Error().Err(err).Str("position_id", id).Msg("position state not removed")
	}
}

// Open enters a new position from an actionable setup. The entry order goes
// through the executor when one is configured; a non-fill means the trade is
// simply not taken. Refuses to exceed the position cap.
func (m *Manager) Open(ctx context.Context, s setups.Setup, units float64) (*Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.positions) >= m.cfg.MaxPositions {
		m.logger.Error().
			Str("instrument", s.Instrument).
			Int("open", len(m.positions)).
			Msg("entry attempted past the position cap")
		return nil, ErrMaxPositions
	}

	entryPrice := s.TriggerPrice
	if m.exec != nil {
		side := market.Buy
		if s.Direction == setups.Short {
			side = market.Sell
		}
		res, err := m.exec.PlaceOrder(ctx, market.OrderRequest{
			Instrument: s.Instrument,
			Side:       side,
			Size:       units,
			OrderType:  "LIMIT",
			Price:      s.TriggerPrice,
		})
		if err != nil {
			return nil, err
		}
		if !res.Filled {
			m.logger.Info().
				Str("instrument", s.Instrument).
				Str("reason", res.Reason).
				Msg("entry order not filled, trade not taken")
			return nil, nil
		}
		entryPrice = res.FillPrice
	}

	p := &Position{
		ID:            uuid.New().String(),
		Instrument:    s.Instrument,
		SetupType:     s.Type,
		Direction:     s.Direction,
		EntryPrice:    entryPrice,
		InitialStop:   s.StopLoss,
		CurrentStop:   s.StopLoss,
		Size:          units,
		RemainingSize: units,
		Target1:       s.Target1,
		Target2:       s.Target2,
		EntryTime:     time.Now().UTC(),
		Status:        StatusActive,
	}
	m.positions[p.ID] = p
	m.saveLocked(ctx, p)

	m.logger.Info().
		Str("position_id", p.ID).
		Str("instrument", p.Instrument).
		Str("direction", string(p.Direction)).
		Str("setup", string(p.SetupType)).
		Float64("entry", p.EntryPrice).
		Float64("stop", p.CurrentStop).
		Float64("size", p.Size).
		Msg("position opened")
	return p, nil
}

// Manage runs one management pass over a single position, applying the rules
// in strict priority order: stop hit, breakeven, partial at target, trailing
// stop, time exit. At most one exit fires per pass; stop moves may combine
// with nothing else.
func (m *Manager) Manage(ctx context.Context, id string, price float64, candles []market.Candle, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.positions[id]
	if !ok {
		return nil
	}

	// 1. stop hit closes everything immediately
	if p.StopHit(price) {
		return m.closePortionLocked(ctx, p, price, p.RemainingSize, ExitStopLoss, now)
	}

	// 2. breakeven once unrealized gain covers initial risk
	if !p.AtBreakeven() && p.RMultiple(price) >= m.cfg.BreakevenAtR {
		if err := p.MoveStop(p.EntryPrice); err != nil {
			m.logger.Error().Err(err).Str("position_id", p.ID).Msg("breakeven move rejected")
		} else {
			m.logger.Info().
				Str("position_id", p.ID).
				Float64("stop", p.CurrentStop).
				Msg("stop moved to breakeven")
		}
	}

	// 3. partial profit at the first target
	if !p.PartialTaken && p.TargetReached(price) {
		size := p.RemainingSize * m.cfg.PartialExitPct / 100
		if err := m.closePortionLocked(ctx, p, price, size, ExitPartial, now); err != nil {
			return err
		}
		return nil
	}

	// 4. trail behind structure once the partial is banked
	if p.PartialTaken && p.Status == StatusPartial {
		m.trailLocked(p, candles)
	}

	// 5. stale position with no progress goes flat
	if p.HeldFor(now) > m.cfg.MaxHold {
		if r := p.RMultiple(price); r > -m.cfg.TimeExitMaxAbsR && r < m.cfg.TimeExitMaxAbsR {
			return m.closePortionLocked(ctx, p, price, p.RemainingSize, ExitTime, now)
		}
	}

	// refreshes the persisted snapshot even when nothing moved, which also
	// extends the state TTL while the position stays open
	m.saveLocked(ctx, p)
	return nil
}

// ManageAll runs a management pass over every open position at the given
// price per instrument. Positions with no quote this cycle are skipped.
func (m *Manager) ManageAll(ctx context.Context, prices map[string]float64, candles map[string][]market.Candle, now time.Time) {
	for _, id := range m.ids() {
		m.mu.RLock()
		p, ok := m.positions[id]
		var instrument string
		if ok {
			instrument = p.Instrument
		}
		m.mu.RUnlock()
		if !ok {
			continue
		}
		price, ok := prices[instrument]
		if !ok {
			continue
		}
		if err := m.Manage(ctx, id, price, candles[instrument], now); err != nil {
			m.logger.Error().Err(err).Str("position_id", id).Msg("management pass failed")
		}
	}
}

// EmergencyCloseAll flattens every open position at the supplied prices.
// Instruments without a price still close at their current stop as the best
// known level; getting flat matters more than the mark.
func (m *Manager) EmergencyCloseAll(ctx context.Context, prices map[string]float64, reason string) {
	m.logger.Error().Str("reason", reason).Msg("emergency close of all positions")
	for _, id := range m.ids() {
		m.mu.Lock()
		p, ok := m.positions[id]
		if !ok {
			m.mu.Unlock()
			continue
		}
		price, havePrice := prices[p.Instrument]
		if !havePrice {
			price = p.CurrentStop
		}
		if err := m.closePortionLocked(ctx, p, price, p.RemainingSize, ExitEmergency, time.Now().UTC()); err != nil {
			m.logger.Error().Err(err).Str("position_id", id).Msg("emergency close failed")
		}
		m.mu.Unlock()
	}
}

// trailLocked moves the stop to the latest structural swing when that level
// is strictly more favorable than the current stop.
func (m *Manager) trailLocked(p *Position, candles []market.Candle) {
	highs, lows := analysis.DetectSwings(candles, m.cfg.SwingLookback)

	var level float64
	var have bool
	if p.Direction == setups.Long && len(lows) > 0 {
		level = lows[len(lows)-1].Price
		have = level > p.CurrentStop
	} else if p.Direction == setups.Short && len(highs) > 0 {
		level = highs[len(highs)-1].Price
		have = level < p.CurrentStop
	}
	if !have {
		return
	}
	if err := p.MoveStop(level); err != nil {
		m.logger.Error().Err(err).Str("position_id", p.ID).Msg("trailing move rejected")
		return
	}
	m.logger.Info().
		Str("position_id", p.ID).
		Float64("stop", p.CurrentStop).
		Msg("stop trailed to structure")
}

// closePortionLocked exits size units at price, emits the audit record, and
// retires the position when nothing remains. Callers hold the lock.
func (m *Manager) closePortionLocked(ctx context.Context, p *Position, price float64, size float64, exitType ExitType, now time.Time) error {
	if size <= 0 || size > p.RemainingSize {
		size = p.RemainingSize
	}

	exitPrice := price
	if m.exec != nil {
		side := market.Sell
		if p.Direction == setups.Short {
			side = market.Buy
		}
		res, err := m.exec.PlaceOrder(ctx, market.OrderRequest{
			Instrument: p.Instrument,
			Side:       side,
			Size:       size,
			OrderType:  "MARKET",
			Price:      price,
		})
		if err != nil {
			return err
		}
		if res.Filled {
			exitPrice = res.FillPrice
		}
	}

	gross, commission, net, rMultiple := closeAccounting(p, exitPrice, size, m.cfg.CommissionRate)
	p.RemainingSize -= size
	p.RealizedPnL += net

	if net < 0 {
		m.consecutiveLosses++
	} else {
		m.consecutiveLosses = 0
	}

	rec := TradeRecord{
		TradeID:    uuid.New().String(),
		PositionID: p.ID,
		Instrument: p.Instrument,
		SetupType:  p.SetupType,
		Direction:  p.Direction,
		EntryPrice: p.EntryPrice,
		ExitPrice:  exitPrice,
		EntryTime:  p.EntryTime,
		ExitTime:   now,
		Size:       size,
		GrossPnL:   gross,
		Commission: commission,
		NetPnL:     net,
		RMultiple:  rMultiple,
		ExitType:   exitType,
	}

	if exitType == ExitPartial && p.RemainingSize > 0 {
		p.PartialTaken = true
		p.Status = StatusPartial
		m.saveLocked(ctx, p)
	} else {
		p.Status = StatusClosed
		delete(m.positions, p.ID)
		m.deleteStateLocked(ctx, p.ID)
	}

	m.logger.Info().
		Str("position_id", p.ID).
		Str("exit_type", string(exitType)).
		Float64("exit_price", exitPrice).
		Float64("size", size).
		Float64("net_pnl", net).
		Float64("r_multiple", rMultiple).
		Str("status", string(p.Status)).
		Msg("position exit")

	if m.recorder != nil {
		if err := m.recorder.RecordTrade(ctx, rec); err != nil {
			m.logger.Error().Err(err).Str("trade_id", rec.TradeID).Msg("trade record not persisted")
		}
	}
	return nil
}

func (m *Manager) ids() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.positions))
	for id := range m.positions {
		out = append(out, id)
	}
	return out
}

// Count returns the number of open positions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.positions)
}

// ConsecutiveLosses reports the realized losing streak since the last
// winning exit.
func (m *Manager) ConsecutiveLosses() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.consecutiveLosses
}

// Active returns value snapshots of all open positions.
func (m *Manager) Active() []Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	return out
}

// OpenRiskPct sums the remaining risk of open positions as a percent of
// balance, measured against current stops.
func (m *Manager) OpenRiskPct(balance float64) float64 {
	if balance <= 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total float64
	for _, p := range m.positions {
		d := p.EntryPrice - p.CurrentStop
		if d < 0 {
			d = -d
		}
		if p.AtBreakeven() {
			d = 0
		}
		total += d * p.RemainingSize
	}
	return total / balance * 100
}

// Get returns a snapshot of one position.
func (m *Manager) Get(id string) (Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[id]
	if !ok {
		return Position{}, false
	}
	return *p, true
}
