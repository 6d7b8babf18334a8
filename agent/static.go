package agent

import "context"

// HoldProvider always holds. It is the safe default when no reasoning
// backend is configured, and lets a dry run exercise the whole pipeline
// without placing orders.
type HoldProvider struct{}

func (HoldProvider) Decide(_ context.Context, dc Context) (Decision, error) {
	return Decision{
		Instrument: dc.Instrument,
		Action:     Hold,
		Confidence: 1,
		Rationale:  "no reasoning backend configured",
	}, nil
}
