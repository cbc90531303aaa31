package market

import (
	"context"
	"time"
)

// CandleFeed supplies ordered candle series per timeframe. Implementations
// must bound the call with the supplied context; a timeout is treated by the
// caller as "insufficient data this cycle", never as stale data.
type CandleFeed interface {
	Candles(ctx context.Context, instrument string, tf Timeframe, limit int) ([]Candle, error)
}

// QuoteFeed supplies the current quote for the instrument.
type QuoteFeed interface {
	Quote(ctx context.Context, instrument string) (Quote, error)
}

// OrderSide is the direction of an order.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// OrderRequest describes an order to place.
type OrderRequest struct {
	Instrument string
	Side       OrderSide
	Size       float64
	OrderType  string  // MARKET or LIMIT
	Price      float64 // limit price, ignored for market orders
}

// OrderResult is the broker's response to an order.
type OrderResult struct {
	OrderID   string
	FillPrice float64
	Filled    bool
	Reason    string // populated when not filled
}

// OrderExecutor places orders with the broker. A non-fill is reported through
// OrderResult.Filled, not as an error; errors mean the request never reached
// the broker.
type OrderExecutor interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}

// AccountSnapshot is the broker's view of the account, read fresh each cycle.
// The core never maintains its own authoritative balance.
type AccountSnapshot struct {
	Balance       float64
	SessionPnL    float64
	SessionPnLPct float64
	Time          time.Time
}

// AccountProvider supplies the current account snapshot.
type AccountProvider interface {
	Account(ctx context.Context) (AccountSnapshot, error)
}

// NewsStatus gates trading around scheduled news and external restrictions.
type NewsStatus struct {
	TradingAllowed bool
	// SizeModifier scales position size in 0..1. 1 means full size.
	SizeModifier float64
	Reason       string
}

// NewsGate reports whether trading is currently allowed for an instrument.
// An error means the gate itself is unreachable, which callers treat as
// "do not trade this cycle".
type NewsGate interface {
	Status(ctx context.Context, instrument string) (NewsStatus, error)
}
