package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) Append(r AuditRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO audits
		(cycle_id, instrument, time, action, quantity, notional, confidence, rationale,
		 verdict_status, risk_outcome, risk_reason, exec_outcome, fill_price, fill_quantity, err)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.CycleID, r.Instrument, r.Time, r.Action, r.Quantity, r.Notional, r.Confidence,
		r.Rationale, r.VerdictStatus, r.RiskOutcome, r.RiskReason, r.ExecOutcome,
		r.FillPrice, r.FillQuantity, r.Err,
	)
	if err != nil {
		return fmt.Errorf("append audit %s/%s: %w", r.CycleID, r.Instrument, err)
	}
	return nil
}

// FinalizeExecution sets the execution columns of a pending audit record.
// It refuses to touch a record that has already left the pending state.
func (j *SQLiteJournal) FinalizeExecution(cycleID, instrument, outcome string, fillPrice, fillQty float64, errMsg string) error {
	res, err := j.db.Exec(`
		UPDATE audits
		SET exec_outcome = ?, fill_price = ?, fill_quantity = ?, err = ?
		WHERE cycle_id = ? AND instrument = ? AND exec_outcome = ?`,
		outcome, fillPrice, fillQty, errMsg, cycleID, instrument, ExecPending,
	)
	if err != nil {
		return fmt.Errorf("finalize audit %s/%s: %w", cycleID, instrument, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("finalize audit %s/%s: no pending record", cycleID, instrument)
	}
	return nil
}

func (j *SQLiteJournal) RecordFill(f FillRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO fills (cycle_id, instrument, side, quantity, price, time)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.CycleID, f.Instrument, f.Side, f.Quantity, f.Price, f.Time,
	)
	return err
}

// SavePositions replaces the persisted position set with the ledger's
// current view, in one transaction.
func (j *SQLiteJournal) SavePositions(positions []PositionRecord) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM positions`); err != nil {
		return err
	}
	for _, p := range positions {
		if _, err := tx.Exec(`
			INSERT INTO positions (instrument, quantity, avg_entry, opened_at)
			VALUES (?, ?, ?, ?)`,
			p.Instrument, p.Quantity, p.AvgEntry, p.OpenedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (j *SQLiteJournal) SaveDaily(d DailyRecord) error {
	halted := 0
	if d.Halted {
		halted = 1
	}
	_, err := j.db.Exec(`
		INSERT INTO daily (day, starting_value, realized, unrealized, halted)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			starting_value = excluded.starting_value,
			realized = excluded.realized,
			unrealized = excluded.unrealized,
			halted = excluded.halted`,
		d.Day, d.StartingValue, d.Realized, d.Unrealized, halted,
	)
	return err
}

func (j *SQLiteJournal) OpenPositions() ([]PositionRecord, error) {
	rows, err := j.db.Query(`
		SELECT instrument, quantity, avg_entry, opened_at
		FROM positions
		ORDER BY instrument ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PositionRecord
	for rows.Next() {
		var p PositionRecord
		if err := rows.Scan(&p.Instrument, &p.Quantity, &p.AvgEntry, &p.OpenedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Daily(day string) (DailyRecord, bool, error) {
	var d DailyRecord
	var halted int
	row := j.db.QueryRow(`
		SELECT day, starting_value, realized, unrealized, halted
		FROM daily
		WHERE day = ?`, day)
	err := row.Scan(&d.Day, &d.StartingValue, &d.Realized, &d.Unrealized, &halted)
	if err == sql.ErrNoRows {
		return DailyRecord{}, false, nil
	}
	if err != nil {
		return DailyRecord{}, false, err
	}
	d.Halted = halted != 0
	return d, true, nil
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
