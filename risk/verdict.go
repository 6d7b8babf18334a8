// Package risk owns the authoritative in-process view of open positions and
// daily P&L, and enforces exposure and loss limits on every decision before
// it reaches the execution venue.
package risk

import "time"

// Action is the trade intent being evaluated.
type Action string

const (
	EnterLong Action = "enter-long"
	Exit      Action = "exit"
	Hold      Action = "hold"
)

// Rejection reason codes. These are expected control-flow outcomes recorded
// in the audit trail, not errors.
const (
	ReasonDailyLossLimit    = "daily-loss-limit-breached"
	ReasonPositionAlready   = "position-already-open"
	ReasonNoPositionToClose = "no-position-to-close"
	ReasonMaxPositionClamp  = "max-position-pct-clamp"
)

// Outcome classifies a risk verdict.
type Outcome string

const (
	Accepted Outcome = "accepted"
	Clamped  Outcome = "clamped"
	Rejected Outcome = "rejected"
)

// Intent is a candidate trade as seen by the ledger: the validated shape of
// an untrusted reasoning-provider decision.
type Intent struct {
	Instrument string
	Action     Action
	Quantity   float64 // requested units; derived from Notional when zero
	Notional   float64 // requested notional; derived from Quantity when zero
	Price      float64 // latest price, used to convert between the two
}

// Verdict is the ledger's ruling on an Intent. Quantity and Notional are the
// approved (possibly clamped) values; Reason is set for Clamped and Rejected.
type Verdict struct {
	Outcome  Outcome
	Quantity float64
	Notional float64
	Reason   string
}

// Position is one open holding. At most one exists per instrument.
type Position struct {
	Instrument string
	Quantity   float64
	AvgEntry   float64
	OpenedAt   time.Time
}

// Notional returns the position's value at the given price.
func (p Position) Notional(price float64) float64 {
	return p.Quantity * price
}

// Fill is the ledger-facing shape of an execution result.
type Fill struct {
	Instrument string
	Side       Action // EnterLong or Exit
	Quantity   float64
	Price      float64
	Time       time.Time
}
