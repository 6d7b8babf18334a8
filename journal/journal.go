// Package journal is the durable audit trail and recovery store. Every
// cycle writes one audit record per instrument, every fill is recorded, and
// positions plus daily risk state are persisted so a restart can rebuild the
// ledger.
package journal

import "time"

// Execution outcomes recorded in the audit trail.
const (
	ExecPending          = "pending"
	ExecFilled           = "filled"
	ExecPartial          = "partial"
	ExecRejected         = "rejected"
	ExecNotAttempted     = "not-attempted"
	ExecProviderTimeout  = "provider-timeout"
	ExecExecutionTimeout = "execution-timeout"
	ExecError            = "error"
)

// AuditRecord captures what happened to one instrument in one cycle: the
// decision, the compliance status it was made under, the risk verdict, and
// the execution outcome. One is written per (cycle, instrument) regardless
// of outcome.
type AuditRecord struct {
	CycleID       string
	Instrument    string
	Time          time.Time
	Action        string
	Quantity      float64
	Notional      float64
	Confidence    float64
	Rationale     string
	VerdictStatus string
	RiskOutcome   string
	RiskReason    string
	ExecOutcome   string
	FillPrice     float64
	FillQuantity  float64
	Err           string
}

// FillRecord is one executed (or partially executed) order.
type FillRecord struct {
	CycleID    string
	Instrument string
	Side       string
	Quantity   float64
	Price      float64
	Time       time.Time
}

// PositionRecord is a persisted open position.
type PositionRecord struct {
	Instrument string
	Quantity   float64
	AvgEntry   float64
	OpenedAt   time.Time
}

// DailyRecord is the persisted per-day risk state.
type DailyRecord struct {
	Day           string
	StartingValue float64
	Realized      float64
	Unrealized    float64
	Halted        bool
}

// Sink receives audit records. The write must be durable before it returns;
// a failed append blocks execution for that instrument.
type Sink interface {
	Append(AuditRecord) error
	Close() error
}

// Journal is the full persistence port: audit sink plus fill history and the
// state needed to recover a ledger after restart.
//
// For a trade, the audit record is appended with ExecPending before the order
// goes out, so no trade can execute unaudited. FinalizeExecution then sets the
// execution columns exactly once; everything else in the record is immutable.
type Journal interface {
	Sink
	FinalizeExecution(cycleID, instrument, outcome string, fillPrice, fillQty float64, errMsg string) error
	RecordFill(FillRecord) error
	SavePositions([]PositionRecord) error
	SaveDaily(DailyRecord) error
	OpenPositions() ([]PositionRecord, error)
	Daily(day string) (DailyRecord, bool, error)
}
