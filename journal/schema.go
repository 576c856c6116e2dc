package journal

// Dates are stored as TEXT (YYYY-MM-DD) and quantities as decimal TEXT so
// they read back exactly as written.
const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id TEXT PRIMARY KEY,
	as_of TEXT NOT NULL,
	source TEXT NOT NULL,
	created DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_as_of ON snapshots(as_of);

CREATE TABLE IF NOT EXISTS positions (
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	ticker TEXT NOT NULL,
	quantity TEXT NOT NULL,
	currency TEXT NOT NULL,
	asset_type TEXT NOT NULL,
	name TEXT NOT NULL,
	PRIMARY KEY (snapshot_id, ticker)
);

CREATE TABLE IF NOT EXISTS proposals (
	inputs_hash TEXT PRIMARY KEY,
	policy_hash TEXT NOT NULL,
	as_of TEXT NOT NULL,
	contribution_base REAL NOT NULL,
	unallocated_cash REAL NOT NULL,
	plan TEXT NOT NULL,
	created DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id TEXT PRIMARY KEY,
	policy_hash TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	universe TEXT NOT NULL,
	schedule TEXT NOT NULL,
	curve_hash TEXT NOT NULL,
	summary TEXT NOT NULL,
	trades INTEGER NOT NULL,
	created DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL REFERENCES backtest_runs(run_id) ON DELETE CASCADE,
	date TEXT NOT NULL,
	equity REAL NOT NULL,
	cash REAL NOT NULL,
	drawdown REAL NOT NULL,
	turnover REAL NOT NULL,
	PRIMARY KEY (run_id, date)
);

CREATE TABLE IF NOT EXISTS trades (
	run_id TEXT NOT NULL REFERENCES backtest_runs(run_id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	date TEXT NOT NULL,
	ticker TEXT NOT NULL,
	side TEXT NOT NULL,
	quantity REAL NOT NULL,
	price REAL NOT NULL,
	amount_base REAL NOT NULL,
	cost REAL NOT NULL,
	reason TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`
