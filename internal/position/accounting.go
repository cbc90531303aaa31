package position

import (
	"time"

	"price-action-bot/internal/setups"
)

// TradeRecord is the write-once audit record emitted when size leaves a
// position, partial or final.
type TradeRecord struct {
	TradeID    string
	PositionID string
	Instrument string
	SetupType  setups.SetupType
	Direction  setups.Direction
	EntryPrice float64
	ExitPrice  float64
	EntryTime  time.Time
	ExitTime   time.Time
	Size       float64
	GrossPnL   float64
	Commission float64
	NetPnL     float64
	RMultiple  float64
	ExitType   ExitType
}

// closeAccounting computes the economics of exiting size units at exitPrice.
// Commission is charged on both legs of the round trip. The R-multiple
// denominator is the initial per-unit risk, never the tightened stop.
func closeAccounting(p *Position, exitPrice, size, commissionRate float64) (gross, commission, net, rMultiple float64) {
	if p.Direction == setups.Long {
		gross = (exitPrice - p.EntryPrice) * size
	} else {
		gross = (p.EntryPrice - exitPrice) * size
	}
	commission = (p.EntryPrice + exitPrice) * size * commissionRate

	net = gross - commission
	if risk := p.initialRiskPerUnit(); risk > 0 && size > 0 {
		rMultiple = net / size / risk
	}
	return gross, commission, net, rMultiple
}
