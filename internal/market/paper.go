package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// PaperBroker simulates order execution against a virtual balance. It fills
// every order at the requested price, which makes it useful for dry runs and
// for tests that need a deterministic broker.
type PaperBroker struct {
	mu           sync.Mutex
	balance      float64
	sessionStart float64
	startedAt    time.Time
	orderSeq     int
	logger       zerolog.Logger
}

func NewPaperBroker(startingBalance float64, logger zerolog.Logger) *PaperBroker {
	if startingBalance <= 0 {
		startingBalance = 10_000
	}
	return &PaperBroker{
		balance:      startingBalance,
		sessionStart: startingBalance,
		startedAt:    time.Now(),
		logger:       logger.With().Str("component", "paper_broker").Logger(),
	}
}

// PlaceOrder fills at the requested price. Market orders without a price are
// rejected because the paper broker has no book to fill against.
func (b *PaperBroker) PlaceOrder(_ context.Context, req OrderRequest) (OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if req.Size <= 0 {
		return OrderResult{Reason: "non-positive size"}, nil
	}
	if req.Price <= 0 {
		return OrderResult{Reason: "paper broker requires a price"}, nil
	}

	b.orderSeq++
	res := OrderResult{
		OrderID:   fmt.Sprintf("paper-%d", b.orderSeq),
		FillPrice: req.Price,
		Filled:    true,
	}
	b.logger.Debug().
		Str("instrument", req.Instrument).
		Str("side", string(req.Side)).
		Float64("size", req.Size).
		Float64("price", req.Price).
		Str("order_id", res.OrderID).
		Msg("paper fill")
	return res, nil
}

// Account reports the virtual balance and session performance.
func (b *PaperBroker) Account(_ context.Context) (AccountSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := AccountSnapshot{
		Balance:    b.balance,
		SessionPnL: b.balance - b.sessionStart,
		Time:       time.Now(),
	}
	if b.sessionStart > 0 {
		snap.SessionPnLPct = snap.SessionPnL / b.sessionStart * 100
	}
	return snap, nil
}

// ApplyPnL settles a realized trade result against the virtual balance.
func (b *PaperBroker) ApplyPnL(net float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balance += net
}
