package journal

import (
	"database/sql"
	"fmt"
	"time"
)

// GetAudit returns a single audit record by cycle and instrument.
func (j *SQLiteJournal) GetAudit(cycleID, instrument string) (AuditRecord, error) {
	var rec AuditRecord

	row := j.db.QueryRow(`
		SELECT cycle_id, instrument, time, action, quantity, notional, confidence, rationale,
		       verdict_status, risk_outcome, risk_reason, exec_outcome, fill_price, fill_quantity, err
		FROM audits
		WHERE cycle_id = ? AND instrument = ?`, cycleID, instrument)

	err := scanAudit(row.Scan, &rec)
	if err != nil {
		if err == sql.ErrNoRows {
			return AuditRecord{}, fmt.Errorf("audit %q/%q not found", cycleID, instrument)
		}
		return AuditRecord{}, err
	}
	return rec, nil
}

// ListAuditsBetween returns audit records with time in [start, end).
func (j *SQLiteJournal) ListAuditsBetween(start, end time.Time) ([]AuditRecord, error) {
	rows, err := j.db.Query(`
		SELECT cycle_id, instrument, time, action, quantity, notional, confidence, rationale,
		       verdict_status, risk_outcome, risk_reason, exec_outcome, fill_price, fill_quantity, err
		FROM audits
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		if err := scanAudit(rows.Scan, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListFillsBetween returns fills with time in [start, end).
func (j *SQLiteJournal) ListFillsBetween(start, end time.Time) ([]FillRecord, error) {
	rows, err := j.db.Query(`
		SELECT cycle_id, instrument, side, quantity, price, time
		FROM fills
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FillRecord
	for rows.Next() {
		var f FillRecord
		if err := rows.Scan(&f.CycleID, &f.Instrument, &f.Side, &f.Quantity, &f.Price, &f.Time); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func scanAudit(scan func(...any) error, rec *AuditRecord) error {
	return scan(
		&rec.CycleID,
		&rec.Instrument,
		&rec.Time,
		&rec.Action,
		&rec.Quantity,
		&rec.Notional,
		&rec.Confidence,
		&rec.Rationale,
		&rec.VerdictStatus,
		&rec.RiskOutcome,
		&rec.RiskReason,
		&rec.ExecOutcome,
		&rec.FillPrice,
		&rec.FillQuantity,
		&rec.Err,
	)
}
