// journal/schema.go
package journal

const Schema = `
CREATE TABLE IF NOT EXISTS audits (
	cycle_id TEXT NOT NULL,
	instrument TEXT NOT NULL,
	time DATETIME NOT NULL,
	action TEXT NOT NULL,
	quantity REAL NOT NULL,
	notional REAL NOT NULL,
	confidence REAL NOT NULL,
	rationale TEXT NOT NULL,
	verdict_status TEXT NOT NULL,
	risk_outcome TEXT NOT NULL,
	risk_reason TEXT NOT NULL,
	exec_outcome TEXT NOT NULL,
	fill_price REAL NOT NULL,
	fill_quantity REAL NOT NULL,
	err TEXT NOT NULL,
	PRIMARY KEY (cycle_id, instrument)
);

CREATE INDEX IF NOT EXISTS idx_audits_time ON audits(time);

CREATE TABLE IF NOT EXISTS fills (
	cycle_id TEXT NOT NULL,
	instrument TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity REAL NOT NULL,
	price REAL NOT NULL,
	time DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fills_time ON fills(time);

CREATE TABLE IF NOT EXISTS positions (
	instrument TEXT PRIMARY KEY,
	quantity REAL NOT NULL,
	avg_entry REAL NOT NULL,
	opened_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS daily (
	day TEXT PRIMARY KEY,
	starting_value REAL NOT NULL,
	realized REAL NOT NULL,
	unrealized REAL NOT NULL,
	halted INTEGER NOT NULL
);
`
