package compliance

import (
	"context"
	"errors"
	"time"
)

// ErrProviderUnavailable signals a transient screening-provider failure.
// The cache keeps any prior verdict until its TTL instead of overwriting it
// with an error.
var ErrProviderUnavailable = errors.New("compliance provider unavailable")

// Screener is the external compliance-data provider port.
type Screener interface {
	Screen(ctx context.Context, instrument string) (Verdict, error)
}

// defaultApproved is a pre-screened large-cap list used when no live
// screener is configured.
var defaultApproved = map[string]bool{
	"AAPL": true, "MSFT": true, "NVDA": true, "AVGO": true, "TSM": true,
	"GOOG": true, "GOOGL": true, "AMZN": true, "META": true, "CSCO": true,
	"ADBE": true, "CRM": true, "ORCL": true, "QCOM": true, "TXN": true,
	"AMAT": true, "INTU": true, "NOW": true, "AMD": true, "SHOP": true,
	"BTCUSDT": true, "ETHUSDT": true,
}

// StaticScreener approves instruments from a fixed list. It backs dry runs
// and deployments without a screening-provider subscription.
type StaticScreener struct {
	approved map[string]bool
}

// NewStaticScreener approves exactly the given instruments, or the built-in
// pre-screened list when none are given.
func NewStaticScreener(instruments ...string) *StaticScreener {
	if len(instruments) == 0 {
		return &StaticScreener{approved: defaultApproved}
	}
	m := make(map[string]bool, len(instruments))
	for _, id := range instruments {
		m[id] = true
	}
	return &StaticScreener{approved: m}
}

func (s *StaticScreener) Screen(_ context.Context, instrument string) (Verdict, error) {
	now := time.Now().UTC()
	v := Verdict{
		Instrument: instrument,
		Status:     Rejected,
		Reasons:    []string{"not-on-approved-list"},
		ComputedAt: now,
	}
	if s.approved[instrument] {
		v.Status = Approved
		v.Reasons = []string{"static-approved-list"}
	}
	return v, nil
}
