package market

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestPaperBrokerFillsAtRequestedPrice(t *testing.T) {
	b := NewPaperBroker(10_000, zerolog.Nop())

	res, err := b.PlaceOrder(context.Background(), OrderRequest{
		Instrument: "ETHUSDT",
		Side:       Buy,
		Size:       0.5,
		OrderType:  "LIMIT",
		Price:      2500,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if !res.Filled {
		t.Fatalf("order not filled: %s", res.Reason)
	}
	if res.FillPrice != 2500 {
		t.Errorf("fill price = %v, want 2500", res.FillPrice)
	}
	if res.OrderID == "" {
		t.Error("expected order id")
	}
}

func TestPaperBrokerRejectsUnpriceableOrder(t *testing.T) {
	b := NewPaperBroker(10_000, zerolog.Nop())

	res, err := b.PlaceOrder(context.Background(), OrderRequest{Instrument: "ETHUSDT", Side: Buy, Size: 1})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if res.Filled {
		t.Error("order without price should not fill")
	}
}

func TestPaperBrokerSessionPnL(t *testing.T) {
	b := NewPaperBroker(10_000, zerolog.Nop())

	b.ApplyPnL(-300)
	snap, err := b.Account(context.Background())
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if snap.Balance != 9_700 {
		t.Errorf("balance = %v, want 9700", snap.Balance)
	}
	if snap.SessionPnLPct != -3.0 {
		t.Errorf("session pnl pct = %v, want -3.0", snap.SessionPnLPct)
	}
}
