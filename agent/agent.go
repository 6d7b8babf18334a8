// Package agent abstracts the external reasoning provider that turns a
// per-instrument market context into a trading decision. Implementations are
// interchangeable and selected by configuration; callers never branch on
// provider identity.
package agent

import (
	"context"
	"errors"

	"github.com/rustyeddy/tradebot/compliance"
	"github.com/rustyeddy/tradebot/indicators"
	"github.com/rustyeddy/tradebot/risk"
)

// ErrMalformedDecision marks a provider response that does not match the
// decision schema. Callers treat it as an implicit hold, never as fatal.
var ErrMalformedDecision = errors.New("malformed decision")

// Action is what the provider wants done with an instrument.
type Action string

const (
	EnterLong Action = "enter-long"
	Exit      Action = "exit"
	Hold      Action = "hold"
)

// Decision is the provider's answer for one instrument. It is untrusted
// input: always validated, then risk-checked, before anything acts on it.
type Decision struct {
	Instrument string  `json:"instrument"`
	Action     Action  `json:"action"`
	Quantity   float64 `json:"quantity,omitempty"`
	Notional   float64 `json:"notional,omitempty"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// RiskAction maps the decision action onto the ledger's intent vocabulary.
func (d Decision) RiskAction() risk.Action {
	switch d.Action {
	case EnterLong:
		return risk.EnterLong
	case Exit:
		return risk.Exit
	default:
		return risk.Hold
	}
}

// Context is everything the provider sees for one instrument in one cycle.
type Context struct {
	Instrument     string
	Snapshot       indicators.Snapshot
	Verdict        compliance.Verdict
	Position       *risk.Position
	DailyPnL       float64
	PortfolioValue float64
	MaxPositionPct float64

	// Degraded marks a snapshot with insufficient-data indicators; the
	// provider is told to weigh the context accordingly.
	Degraded bool
}

// Provider is the reasoning backend port.
type Provider interface {
	Decide(ctx context.Context, dc Context) (Decision, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, dc Context) (Decision, error)

func (f ProviderFunc) Decide(ctx context.Context, dc Context) (Decision, error) {
	return f(ctx, dc)
}
