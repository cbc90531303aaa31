package risk

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Limits are the hard risk boundaries a trade must clear.
type Limits struct {
	RiskPerTradePct      float64
	MaxSessionRiskPct    float64
	MaxPositions         int
	MaxTotalExposurePct  float64
	ConsecutiveLossLimit int
}

// DefaultLimits returns the baseline risk posture.
func DefaultLimits() Limits {
	return Limits{
		RiskPerTradePct:      1.0,
		MaxSessionRiskPct:    3.0,
		MaxPositions:         3,
		MaxTotalExposurePct:  3.0,
		ConsecutiveLossLimit: 5,
	}
}

// TradeRequest is a proposed entry, sized and ready for gating.
type TradeRequest struct {
	Instrument string
	Entry      float64
	Stop       float64
	Units      float64
	RiskPct    float64 // effective risk percent of balance
}

// SessionState is the account snapshot all gates evaluate against. Callers
// capture it once per decision batch so every gate in the batch sees the same
// positions and session P&L.
type SessionState struct {
	Balance           float64
	SessionPnLPct     float64
	OpenPositions     int
	OpenRiskPct       float64 // summed risk percent of active positions
	AvailableMargin   float64
	RequiredMargin    float64
	ConsecutiveLosses int
}

// GateResult is one gate's outcome with its human-readable reason.
type GateResult struct {
	Name   string
	Passed bool
	Reason string
}

// Verdict aggregates all gate outcomes. Approved requires every gate to
// pass. Emergency marks a session-level breach: the host must flatten all
// positions, not merely skip this trade.
type Verdict struct {
	Approved  bool
	Emergency bool
	Gates     []GateResult
}

// Reasons collects the failure reasons of all failed gates.
func (v Verdict) Reasons() []string {
	var out []string
	for _, g := range v.Gates {
		if !g.Passed {
			out = append(out, g.Reason)
		}
	}
	return out
}

// Manager validates trade requests against the configured limits.
type Manager struct {
	limits Limits
	logger zerolog.Logger
}

func NewManager(limits Limits, logger zerolog.Logger) *Manager {
	if limits.RiskPerTradePct <= 0 {
		limits.RiskPerTradePct = 1.0
	}
	if limits.MaxSessionRiskPct <= 0 {
		limits.MaxSessionRiskPct = 3.0
	}
	if limits.MaxPositions <= 0 {
		limits.MaxPositions = 3
	}
	if limits.MaxTotalExposurePct <= 0 {
		limits.MaxTotalExposurePct = 3.0
	}
	if limits.ConsecutiveLossLimit <= 0 {
		limits.ConsecutiveLossLimit = 5
	}
	return &Manager{
		limits: limits,
		logger: logger.With().Str("component", "risk_manager").Logger(),
	}
}

func (m *Manager) Limits() Limits { return m.limits }

// Validate runs every gate independently and reports all outcomes; gates are
// never short-circuited so a rejection always carries the complete picture.
// A session-loss breach flags the verdict as an emergency.
func (m *Manager) Validate(req TradeRequest, sess SessionState) Verdict {
	var v Verdict

	// per-trade risk, with 10% headroom for size rounding
	limit := m.limits.RiskPerTradePct * 1.1
	v.Gates = append(v.Gates, gate("trade_risk",
		req.RiskPct <= limit,
		fmt.Sprintf("trade risk %.2f%% exceeds %.2f%% limit", req.RiskPct, limit)))

	sessionOK := sess.SessionPnLPct > -m.limits.MaxSessionRiskPct
	v.Gates = append(v.Gates, gate("session_loss",
		sessionOK,
		fmt.Sprintf("session P&L %.2f%% breaches the %.2f%% session stop", sess.SessionPnLPct, m.limits.MaxSessionRiskPct)))

	v.Gates = append(v.Gates, gate("position_count",
		sess.OpenPositions < m.limits.MaxPositions,
		fmt.Sprintf("%d positions already open, limit %d", sess.OpenPositions, m.limits.MaxPositions)))

	total := sess.OpenRiskPct + req.RiskPct
	v.Gates = append(v.Gates, gate("total_exposure",
		total <= m.limits.MaxTotalExposurePct,
		fmt.Sprintf("combined exposure %.2f%% exceeds %.2f%% cap", total, m.limits.MaxTotalExposurePct)))

	v.Gates = append(v.Gates, gate("margin",
		sess.AvailableMargin >= sess.RequiredMargin,
		fmt.Sprintf("available margin %.2f below required %.2f", sess.AvailableMargin, sess.RequiredMargin)))

	v.Gates = append(v.Gates, gate("loss_streak",
		sess.ConsecutiveLosses < m.limits.ConsecutiveLossLimit,
		fmt.Sprintf("%d consecutive losses reached the %d limit", sess.ConsecutiveLosses, m.limits.ConsecutiveLossLimit)))

	v.Approved = true
	for _, g := range v.Gates {
		if !g.Passed {
			v.Approved = false
		}
	}
	v.Emergency = !sessionOK

	if !v.Approved {
		evt := m.logger.Warn()
		if v.Emergency {
			evt = m.logger.Error()
		}
		evt.Str("instrument", req.Instrument).
			Strs("reasons", v.Reasons()).
			Bool("emergency", v.Emergency).
			Msg("trade rejected")
	}
	return v
}

func gate(name string, passed bool, failReason string) GateResult {
	g := GateResult{Name: name, Passed: passed}
	if !passed {
		g.Reason = failReason
	}
	return g
}
