package position

import (
	"math"
	"testing"

	"price-action-bot/internal/setups"
)

func TestCloseAccountingRoundTrip(t *testing.T) {
	p := &Position{
		Direction:   setups.Long,
		EntryPrice:  2486.50,
		InitialStop: 2466.50,
	}
	gross, commission, net, r := closeAccounting(p, 2510.00, 0.42, 0.0004)

	if math.Abs(gross-9.87) > 1e-9 {
		t.Errorf("gross = %v, want 9.87", gross)
	}
	// taker fee on both legs: (2486.50+2510.00) * 0.42 * 0.0004
	if math.Abs(commission-0.839412) > 1e-9 {
		t.Errorf("commission = %v, want 0.839412", commission)
	}
	if math.Abs(net-(9.87-0.839412)) > 1e-9 {
		t.Errorf("net = %v, want gross minus commission", net)
	}
	// net per unit over the 20-point initial risk
	wantR := net / 0.42 / 20
	if math.Abs(r-wantR) > 1e-12 {
		t.Errorf("r multiple = %v, want %v", r, wantR)
	}
}

func TestCloseAccountingShortSide(t *testing.T) {
	p := &Position{
		Direction:   setups.Short,
		EntryPrice:  2510.00,
		InitialStop: 2530.00,
	}
	gross, _, net, r := closeAccounting(p, 2486.50, 0.42, 0.0004)
	if math.Abs(gross-9.87) > 1e-9 {
		t.Errorf("short gross = %v, want 9.87", gross)
	}
	if net >= gross {
		t.Errorf("net %v must be below gross %v after commission", net, gross)
	}
	if r <= 0 {
		t.Errorf("profitable short must have positive R, got %v", r)
	}
}

func TestCloseAccountingLosingTrade(t *testing.T) {
	p := &Position{
		Direction:   setups.Long,
		EntryPrice:  2500,
		InitialStop: 2480,
	}
	gross, _, net, r := closeAccounting(p, 2480, 1, 0.0004)
	if gross != -20 {
		t.Errorf("gross = %v, want -20", gross)
	}
	if net >= gross {
		t.Errorf("commission must deepen the loss")
	}
	// a full stop-out lands slightly below -1R because of fees
	if r >= -1 {
		t.Errorf("stopped-out R = %v, want below -1", r)
	}
}
