package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := NewSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func sampleAudit(cycleID, instrument string, ts time.Time) AuditRecord {
	return AuditRecord{
		CycleID:       cycleID,
		Instrument:    instrument,
		Time:          ts,
		Action:        "enter-long",
		Quantity:      10,
		Notional:      1500,
		Confidence:    0.7,
		Rationale:     "momentum",
		VerdictStatus: "approved",
		RiskOutcome:   "accepted",
		ExecOutcome:   ExecFilled,
		FillPrice:     150,
		FillQuantity:  10,
	}
}

func TestSQLiteAppendAndGetAudit(t *testing.T) {
	j := newTestJournal(t)
	ts := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

	require.NoError(t, j.Append(sampleAudit("c1", "AAPL", ts)))

	rec, err := j.GetAudit("c1", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "enter-long", rec.Action)
	assert.Equal(t, ExecFilled, rec.ExecOutcome)
	assert.InDelta(t, 150.0, rec.FillPrice, 1e-9)
	assert.True(t, rec.Time.Equal(ts))
}

func TestSQLiteDuplicateAuditRejected(t *testing.T) {
	j := newTestJournal(t)
	ts := time.Now().UTC()

	require.NoError(t, j.Append(sampleAudit("c1", "AAPL", ts)))
	// One audit per (cycle, instrument).
	require.Error(t, j.Append(sampleAudit("c1", "AAPL", ts)))
	require.NoError(t, j.Append(sampleAudit("c2", "AAPL", ts)))
}

func TestSQLiteFinalizeExecution(t *testing.T) {
	j := newTestJournal(t)
	ts := time.Now().UTC()

	rec := sampleAudit("c1", "AAPL", ts)
	rec.ExecOutcome = ExecPending
	rec.FillPrice = 0
	rec.FillQuantity = 0
	require.NoError(t, j.Append(rec))

	require.NoError(t, j.FinalizeExecution("c1", "AAPL", ExecFilled, 151.2, 10, ""))

	got, err := j.GetAudit("c1", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, ExecFilled, got.ExecOutcome)
	assert.InDelta(t, 151.2, got.FillPrice, 1e-9)

	// Execution columns transition exactly once.
	require.Error(t, j.FinalizeExecution("c1", "AAPL", ExecRejected, 0, 0, "late"))
	// No pending record at all.
	require.Error(t, j.FinalizeExecution("c9", "AAPL", ExecFilled, 1, 1, ""))
}

func TestSQLiteListAuditsBetween(t *testing.T) {
	j := newTestJournal(t)
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, j.Append(sampleAudit("c1", "AAPL", base.Add(1*time.Hour))))
	require.NoError(t, j.Append(sampleAudit("c2", "AAPL", base.Add(2*time.Hour))))
	require.NoError(t, j.Append(sampleAudit("c3", "AAPL", base.Add(26*time.Hour))))

	recs, err := j.ListAuditsBetween(base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "c1", recs[0].CycleID)
	assert.Equal(t, "c2", recs[1].CycleID)
}

func TestSQLiteFills(t *testing.T) {
	j := newTestJournal(t)
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, j.RecordFill(FillRecord{
		CycleID: "c1", Instrument: "BTCUSDT", Side: "buy",
		Quantity: 0.1, Price: 50_000, Time: base.Add(time.Hour),
	}))
	require.NoError(t, j.RecordFill(FillRecord{
		CycleID: "c2", Instrument: "BTCUSDT", Side: "sell",
		Quantity: 0.1, Price: 51_000, Time: base.Add(2 * time.Hour),
	}))

	fills, err := j.ListFillsBetween(base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, "buy", fills[0].Side)
	assert.Equal(t, "sell", fills[1].Side)
}

func TestSQLitePositionsRoundTrip(t *testing.T) {
	j := newTestJournal(t)
	opened := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, j.SavePositions([]PositionRecord{
		{Instrument: "AAPL", Quantity: 10, AvgEntry: 150, OpenedAt: opened},
		{Instrument: "MSFT", Quantity: 5, AvgEntry: 400, OpenedAt: opened},
	}))

	// Save replaces, not appends.
	require.NoError(t, j.SavePositions([]PositionRecord{
		{Instrument: "AAPL", Quantity: 8, AvgEntry: 150, OpenedAt: opened},
	}))

	positions, err := j.OpenPositions()
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL", positions[0].Instrument)
	assert.InDelta(t, 8.0, positions[0].Quantity, 1e-9)
	assert.True(t, positions[0].OpenedAt.Equal(opened))
}

func TestSQLiteDailyUpsert(t *testing.T) {
	j := newTestJournal(t)

	_, ok, err := j.Daily("2025-06-02")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, j.SaveDaily(DailyRecord{
		Day: "2025-06-02", StartingValue: 100_000, Realized: -500,
	}))
	require.NoError(t, j.SaveDaily(DailyRecord{
		Day: "2025-06-02", StartingValue: 100_000, Realized: -2100, Halted: true,
	}))

	d, ok, err := j.Daily("2025-06-02")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, -2100.0, d.Realized, 1e-9)
	assert.True(t, d.Halted)
}
