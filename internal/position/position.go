// Package position owns the lifecycle of open trades: breakeven moves,
// partial exits, trailing stops, and time-based exits, with exact R-multiple
// and P&L accounting on close.
package position

import (
	"errors"
	"time"

	"price-action-bot/internal/setups"
)

// Status is the position lifecycle state. Entry execution hands the manager
// an already-filled position, so pending states live outside this package.
type Status string

const (
	StatusActive  Status = "active"
	StatusPartial Status = "partial"
	StatusClosed  Status = "closed"
)

// ExitType is the closed set of reasons a position (or part of it) leaves
// the book.
type ExitType string

const (
	ExitStopLoss  ExitType = "stop_loss"
	ExitPartial   ExitType = "partial"
	ExitTarget    ExitType = "target"
	ExitTime      ExitType = "time"
	ExitEmergency ExitType = "emergency"
)

// ErrStopWouldWiden guards the stop monotonicity invariant: once placed, a
// stop only ever moves toward profit. An attempt to widen it is a logic bug
// in the caller, not a market condition.
var ErrStopWouldWiden = errors.New("stop move would widen risk")

// Position is a live trade. Exclusively owned by one Manager; all mutation
// goes through it.
type Position struct {
	ID           string
	Instrument   string
	SetupType    setups.SetupType
	Direction    setups.Direction
	EntryPrice   float64
	InitialStop  float64
	CurrentStop  float64
	Size         float64
	RemainingSize float64
	Target1      float64
	Target2      float64
	EntryTime    time.Time
	Status       Status
	PartialTaken bool
	RealizedPnL  float64 // accumulated net P&L from partial exits
}

// initialRiskPerUnit is the original stop distance. R-multiples always use
// this denominator, even after the stop has been tightened.
func (p *Position) initialRiskPerUnit() float64 {
	d := p.EntryPrice - p.InitialStop
	if d < 0 {
		d = -d
	}
	return d
}

// RMultiple expresses unrealized progress at price as a multiple of the
// original risk taken.
func (p *Position) RMultiple(price float64) float64 {
	risk := p.initialRiskPerUnit()
	if risk == 0 {
		return 0
	}
	if p.Direction == setups.Long {
		return (price - p.EntryPrice) / risk
	}
	return (p.EntryPrice - price) / risk
}

// StopHit reports whether price has crossed the current stop against the
// position.
func (p *Position) StopHit(price float64) bool {
	if p.Direction == setups.Long {
		return price <= p.CurrentStop
	}
	return price >= p.CurrentStop
}

// TargetReached reports whether price has reached the first target.
func (p *Position) TargetReached(price float64) bool {
	if p.Direction == setups.Long {
		return price >= p.Target1
	}
	return price <= p.Target1
}

// MoveStop tightens the stop to level. Returns ErrStopWouldWiden if the move
// is not strictly toward profit; the stop is left untouched in that case.
func (p *Position) MoveStop(level float64) error {
	if p.Direction == setups.Long {
		if level <= p.CurrentStop {
			return ErrStopWouldWiden
		}
	} else {
		if level >= p.CurrentStop {
			return ErrStopWouldWiden
		}
	}
	p.CurrentStop = level
	return nil
}

// AtBreakeven reports whether the stop already protects the entry price.
func (p *Position) AtBreakeven() bool {
	if p.Direction == setups.Long {
		return p.CurrentStop >= p.EntryPrice
	}
	return p.CurrentStop <= p.EntryPrice
}

// HeldFor is the age of the position at now.
func (p *Position) HeldFor(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}
