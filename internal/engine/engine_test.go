package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"price-action-bot/internal/market"
	"price-action-bot/internal/position"
	"price-action-bot/internal/risk"
	"price-action-bot/internal/setups"
)

type stubFeeds struct {
	candles    []market.Candle
	quote      market.Quote
	account    market.AccountSnapshot
	candleErr  error
	quoteErr   error
	fetchCount int
}

func (f *stubFeeds) Candles(context.Context, string, market.Timeframe, int) ([]market.Candle, error) {
	f.fetchCount++
	return f.candles, f.candleErr
}

func (f *stubFeeds) Quote(context.Context, string) (market.Quote, error) {
	return f.quote, f.quoteErr
}

func (f *stubFeeds) Account(context.Context) (market.AccountSnapshot, error) {
	return f.account, nil
}

func flatCandles(n int) []market.Candle {
	candles := make([]market.Candle, n)
	base := 2500.0
	for i := range candles {
		drift := float64(i%5) - 2
		candles[i] = market.Candle{
			OpenTime:  int64(i) * 60_000,
			Open:      base + drift,
			High:      base + drift + 2,
			Low:       base + drift - 2,
			Close:     base + drift + 1,
			Volume:    50,
			CloseTime: int64(i)*60_000 + 59_999,
		}
	}
	return candles
}

func newTestEngine(feeds *stubFeeds) *Engine {
	scanner := setups.NewScanner(setups.Config{}, nil, zerolog.Nop())
	riskMgr := risk.NewManager(risk.DefaultLimits(), zerolog.Nop())
	posMgr := position.NewManager(position.DefaultConfig(), nil, nil, zerolog.Nop())
	return New(DefaultConfig("ETHUSDT"), feeds, feeds, feeds, scanner, riskMgr, posMgr, nil, zerolog.Nop())
}

func TestCycleCacheInvalidatesOnNewCandle(t *testing.T) {
	c := NewCycleCache()
	snap := setups.Snapshot{SizeModifier: 1}

	c.Put("ETHUSDT", market.Timeframe1m, 1000, snap)
	if _, ok := c.Get("ETHUSDT", market.Timeframe1m, 1000); !ok {
		t.Errorf("same cycle must hit the cache")
	}
	if _, ok := c.Get("ETHUSDT", market.Timeframe1m, 2000); ok {
		t.Errorf("new candle close must miss the cache")
	}
	if _, ok := c.Get("BTCUSDT", market.Timeframe1m, 1000); ok {
		t.Errorf("other instruments must not share entries")
	}
}

func TestScanCycleCachesPerCandleClose(t *testing.T) {
	feeds := &stubFeeds{
		candles: flatCandles(60),
		account: market.AccountSnapshot{Balance: 100000},
	}
	e := newTestEngine(feeds)

	e.runScanCycle(context.Background())
	snap := e.Snapshot()
	if snap.SizeModifier != 1 {
		t.Fatalf("first cycle must produce a snapshot")
	}

	// same candle set: snapshot comes from cache, no rescan needed
	cycleID := feeds.candles[len(feeds.candles)-1].CloseTime
	if _, ok := e.cache.Get("ETHUSDT", market.Timeframe1m, cycleID); !ok {
		t.Errorf("snapshot must be cached under the candle close id")
	}
	e.runScanCycle(context.Background())
}

func TestScanCycleDegradesOnFetchError(t *testing.T) {
	feeds := &stubFeeds{candleErr: context.DeadlineExceeded}
	e := newTestEngine(feeds)

	e.runScanCycle(context.Background())
	if e.Halted() {
		t.Errorf("a fetch timeout is a skipped cycle, not a halt")
	}
}

func TestManageCycleTriggersEmergencyOnSessionBreach(t *testing.T) {
	feeds := &stubFeeds{
		candles: flatCandles(60),
		quote:   market.Quote{Last: 2500, Time: time.Now()},
		account: market.AccountSnapshot{Balance: 97000, SessionPnLPct: -3.0},
	}
	e := newTestEngine(feeds)

	// put one position on the book first
	_, err := e.positions.Open(context.Background(), setups.Setup{
		Type:         setups.PullbackToStructure,
		Instrument:   "ETHUSDT",
		Direction:    setups.Long,
		TriggerPrice: 2500,
		StopLoss:     2480,
		Target1:      2530,
	}, 1)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	e.runManageCycle(context.Background())

	if !e.Halted() {
		t.Fatalf("session breach must halt the engine")
	}
	if e.positions.Count() != 0 {
		t.Errorf("emergency must flatten all positions, %d left", e.positions.Count())
	}

	// halted engine refuses further scan work
	before := feeds.fetchCount
	e.runScanCycle(context.Background())
	if feeds.fetchCount != before {
		t.Errorf("halted engine must not fetch for new scans")
	}
}

type stubAudit struct {
	reqs     []risk.TradeRequest
	verdicts []risk.Verdict
}

func (a *stubAudit) RecordSetup(context.Context, setups.Setup) error { return nil }

func (a *stubAudit) RecordRiskDecision(_ context.Context, req risk.TradeRequest, v risk.Verdict) error {
	a.reqs = append(a.reqs, req)
	a.verdicts = append(a.verdicts, v)
	return nil
}

func newAuditedEngine(feeds *stubFeeds, audit *stubAudit) *Engine {
	scanner := setups.NewScanner(setups.Config{}, nil, zerolog.Nop())
	riskMgr := risk.NewManager(risk.DefaultLimits(), zerolog.Nop())
	posMgr := position.NewManager(position.DefaultConfig(), nil, nil, zerolog.Nop())
	return New(DefaultConfig("ETHUSDT"), feeds, feeds, feeds, scanner, riskMgr, posMgr, audit, zerolog.Nop())
}

func entrySetup() setups.Setup {
	return setups.Setup{
		ID:           "e1",
		Type:         setups.PullbackToStructure,
		Instrument:   "ETHUSDT",
		Direction:    setups.Long,
		TriggerPrice: 2500,
		StopLoss:     2480,
		Target1:      2530,
		Actionable:   true,
	}
}

func TestLossStreakBlocksNewEntries(t *testing.T) {
	feeds := &stubFeeds{
		candles: flatCandles(60),
		account: market.AccountSnapshot{Balance: 100000},
	}
	audit := &stubAudit{}
	e := newAuditedEngine(feeds, audit)
	ctx := context.Background()

	// five straight stop-outs
	for i := 0; i < 5; i++ {
		p, err := e.positions.Open(ctx, entrySetup(), 1)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if err := e.positions.Manage(ctx, p.ID, 2479, nil, time.Now()); err != nil {
			t.Fatalf("manage %d: %v", i, err)
		}
	}
	if got := e.positions.ConsecutiveLosses(); got != 5 {
		t.Fatalf("streak = %d, want 5", got)
	}

	e.tryEnter(ctx, entrySetup(), 1)

	if len(audit.verdicts) != 1 {
		t.Fatalf("risk decisions recorded = %d, want 1", len(audit.verdicts))
	}
	v := audit.verdicts[0]
	if v.Approved {
		t.Fatalf("sixth entry after five losses must be rejected")
	}
	if v.Emergency {
		t.Errorf("loss streak is an ordinary rejection, not an emergency")
	}
	if !strings.Contains(strings.Join(v.Reasons(), "; "), "consecutive losses") {
		t.Errorf("reasons = %v, want a consecutive-loss reason", v.Reasons())
	}
	if e.positions.Count() != 0 {
		t.Errorf("rejected entry must not open a position")
	}
}

func TestNewsModifierScalesAuditedRisk(t *testing.T) {
	feeds := &stubFeeds{
		candles: flatCandles(60),
		account: market.AccountSnapshot{Balance: 100000},
	}
	audit := &stubAudit{}
	e := newAuditedEngine(feeds, audit)

	e.tryEnter(context.Background(), entrySetup(), 0.5)

	if len(audit.reqs) != 1 {
		t.Fatalf("risk decisions recorded = %d, want 1", len(audit.reqs))
	}
	req := audit.reqs[0]

	// full size: 100000 * 1% / 20 * 0.95 = 47.5 units; halved by the modifier
	wantUnits := 23.75
	if req.Units != wantUnits {
		t.Errorf("units = %v, want %v", req.Units, wantUnits)
	}
	wantRisk := wantUnits * 20.0 / 100000 * 100
	if req.RiskPct != wantRisk {
		t.Errorf("audited risk = %v%%, want %v%%", req.RiskPct, wantRisk)
	}
	if !audit.verdicts[0].Approved {
		t.Fatalf("scaled entry should pass the gates: %v", audit.verdicts[0].Reasons())
	}
	if e.positions.Count() != 1 {
		t.Errorf("approved entry must open a position")
	}
}
