package store

// Per-driver schema. SQLite is the default single-node backend;
// postgres carries the same tables for multi-process deployments.
var schemas = map[string]string{
	"sqlite3": `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	start_ts TEXT NOT NULL,
	end_ts TEXT,
	status TEXT NOT NULL,            -- active | stopped | expired
	budget_total REAL NOT NULL,
	duration_min INTEGER,
	note TEXT
);

CREATE TABLE IF NOT EXISTS session_reservations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id INTEGER NOT NULL,
	ts TEXT NOT NULL,
	order_id TEXT,
	symbol TEXT,
	side TEXT,
	est_price REAL,
	qty REAL,
	amount REAL,
	filled_qty REAL,
	avg_fill_price REAL,
	status TEXT NOT NULL,            -- open | spent | released
	FOREIGN KEY(session_id) REFERENCES sessions(id)
);

CREATE TABLE IF NOT EXISTS session_symbol_limits (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	max_dollars REAL,
	max_shares REAL,
	UNIQUE(session_id, symbol),
	FOREIGN KEY(session_id) REFERENCES sessions(id)
);

CREATE TABLE IF NOT EXISTS auto_session (
	id INTEGER PRIMARY KEY CHECK (id=1),
	enabled INTEGER NOT NULL DEFAULT 0,
	budget_total REAL,
	duration_min INTEGER,
	start_hour INTEGER,
	start_min INTEGER,
	last_started_date TEXT
);

CREATE INDEX IF NOT EXISTS idx_reservations_session ON session_reservations(session_id, status);
CREATE INDEX IF NOT EXISTS idx_reservations_order ON session_reservations(order_id);
`,

	"postgres": `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id BIGSERIAL PRIMARY KEY,
	start_ts TEXT NOT NULL,
	end_ts TEXT,
	status TEXT NOT NULL,
	budget_total DOUBLE PRECISION NOT NULL,
	duration_min INTEGER,
	note TEXT
);

CREATE TABLE IF NOT EXISTS session_reservations (
	id BIGSERIAL PRIMARY KEY,
	session_id BIGINT NOT NULL REFERENCES sessions(id),
	ts TEXT NOT NULL,
	order_id TEXT,
	symbol TEXT,
	side TEXT,
	est_price DOUBLE PRECISION,
	qty DOUBLE PRECISION,
	amount DOUBLE PRECISION,
	filled_qty DOUBLE PRECISION,
	avg_fill_price DOUBLE PRECISION,
	status TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS session_symbol_limits (
	id BIGSERIAL PRIMARY KEY,
	session_id BIGINT NOT NULL REFERENCES sessions(id),
	symbol TEXT NOT NULL,
	max_dollars DOUBLE PRECISION,
	max_shares DOUBLE PRECISION,
	UNIQUE(session_id, symbol)
);

CREATE TABLE IF NOT EXISTS auto_session (
	id INTEGER PRIMARY KEY CHECK (id=1),
	enabled INTEGER NOT NULL DEFAULT 0,
	budget_total DOUBLE PRECISION,
	duration_min INTEGER,
	start_hour INTEGER,
	start_min INTEGER,
	last_started_date TEXT
);

CREATE INDEX IF NOT EXISTS idx_reservations_session ON session_reservations(session_id, status);
CREATE INDEX IF NOT EXISTS idx_reservations_order ON session_reservations(order_id);
`,
}
