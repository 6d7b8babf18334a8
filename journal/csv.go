// journal/csv.go
package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// CSVSink mirrors audit records to a flat file for spreadsheet review. It
// satisfies Sink only; recovery state lives in the SQLite journal.
type CSVSink struct {
	audits *csv.Writer
	f      *os.File
}

func NewCSV(path string) (*CSVSink, error) {
	// Append across restarts; the mirror stays append-only like the primary
	// store. The header is written once, when the file is new.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write([]string{
			"cycle_id", "instrument", "time", "action", "quantity", "notional",
			"confidence", "rationale", "verdict_status", "risk_outcome",
			"risk_reason", "exec_outcome", "fill_price", "fill_quantity", "err",
		}); err != nil {
			f.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &CSVSink{audits: w, f: f}, nil
}

func (s *CSVSink) Append(r AuditRecord) error {
	err := s.audits.Write([]string{
		r.CycleID,
		r.Instrument,
		r.Time.Format(time.RFC3339),
		r.Action,
		f(r.Quantity),
		f(r.Notional),
		f(r.Confidence),
		r.Rationale,
		r.VerdictStatus,
		r.RiskOutcome,
		r.RiskReason,
		r.ExecOutcome,
		f(r.FillPrice),
		f(r.FillQuantity),
		r.Err,
	})
	if err != nil {
		return err
	}

	s.audits.Flush()
	return s.audits.Error()
}

func (s *CSVSink) Close() error {
	s.audits.Flush()
	if err := s.audits.Error(); err != nil {
		return err
	}
	return s.f.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
