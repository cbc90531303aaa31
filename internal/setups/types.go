// Package setups detects tradeable chart patterns from market structure and
// scores their quality. Detection is pure over its inputs; the Scanner wires
// the pattern families together behind the news gate.
package setups

import (
	"time"

	"github.com/google/uuid"
)

// SetupType is the closed set of pattern families the scanner can emit.
type SetupType string

const (
	PullbackToStructure SetupType = "pullback_to_structure"
	LowerWeakPoint      SetupType = "lwp"
	HigherWeakPoint     SetupType = "hwp"
	ThreeSwingTrap      SetupType = "three_swing_trap"
)

// Direction is the trade side a setup proposes.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// RejectionQuality grades how decisively price rejected a level.
type RejectionQuality string

const (
	RejectionHigh     RejectionQuality = "high"
	RejectionModerate RejectionQuality = "moderate"
	RejectionWeak     RejectionQuality = "weak"
)

// Setup is a candidate trade emitted by one scan pass. Immutable once built;
// a triggered setup becomes a position and the setup is discarded.
type Setup struct {
	ID                string
	Type              SetupType
	Instrument        string
	Direction         Direction
	TriggerPrice      float64
	StopLoss          float64
	Target1           float64
	Target2           float64
	QualityScore      int
	Actionable        bool
	RejectionQuality  RejectionQuality
	SupportingFactors []string
	Risks             []string
	CreatedAt         time.Time
}

func newSetup(t SetupType, instrument string, dir Direction) Setup {
	return Setup{
		ID:         uuid.New().String(),
		Type:       t,
		Instrument: instrument,
		Direction:  dir,
		CreatedAt:  time.Now().UTC(),
	}
}

// RewardRisk returns the reward-to-risk ratio to the first target. Zero when
// the stop distance is degenerate.
func (s Setup) RewardRisk() float64 {
	risk := s.TriggerPrice - s.StopLoss
	if risk < 0 {
		risk = -risk
	}
	if risk == 0 {
		return 0
	}
	reward := s.Target1 - s.TriggerPrice
	if reward < 0 {
		reward = -reward
	}
	return reward / risk
}
