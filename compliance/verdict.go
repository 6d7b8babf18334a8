// Package compliance caches per-instrument eligibility verdicts with a TTL
// and gates new exposure on them. Policy is default-deny: no fresh approved
// verdict means no new entries, while exits on existing positions are always
// allowed.
package compliance

import "time"

// Status classifies an instrument's eligibility.
type Status string

const (
	Approved Status = "approved"
	Rejected Status = "rejected"
	Unknown  Status = "unknown"
)

// Verdict is one screening result for one instrument.
type Verdict struct {
	Instrument string
	Status     Status
	Reasons    []string
	ComputedAt time.Time
	ExpiresAt  time.Time
}

// Fresh reports whether the verdict is still within its TTL at now.
func (v Verdict) Fresh(now time.Time) bool {
	return now.Before(v.ExpiresAt)
}

// Eligible reports whether the verdict permits opening new exposure at now.
func (v Verdict) Eligible(now time.Time) bool {
	return v.Status == Approved && v.Fresh(now)
}
