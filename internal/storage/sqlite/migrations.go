package sqlite

import "database/sql"

// schema sets up the database tables. These run on startup to ensure tables exist.
// Every child table cascades from sessions, so deleting a session row removes
// the whole aggregate.
// assignments.unit is -1 for item-level scopes.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    status TEXT NOT NULL,
    decimal_places INTEGER NOT NULL,
    number_format TEXT NOT NULL,
    currency_symbol TEXT NOT NULL,
    subtotal REAL NOT NULL,
    allow_editor_items INTEGER NOT NULL DEFAULT 0,
    passcode_hash TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    expires_at INTEGER NOT NULL,
    last_updated INTEGER NOT NULL,
    saved_modes TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS participants (
    session_id TEXT NOT NULL,
    id TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    role TEXT NOT NULL,
    phone TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (session_id, id),
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS items (
    session_id TEXT NOT NULL,
    id TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    unit_price REAL NOT NULL,
    quantity INTEGER NOT NULL,
    mode TEXT NOT NULL,
    per_unit INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (session_id, id),
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS assignments (
    session_id TEXT NOT NULL,
    item_id TEXT NOT NULL,
    unit INTEGER NOT NULL,
    position INTEGER NOT NULL,
    participant_id TEXT NOT NULL,
    quantity REAL NOT NULL,
    PRIMARY KEY (session_id, item_id, unit, participant_id),
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS charges (
    session_id TEXT NOT NULL,
    id TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    value REAL NOT NULL,
    value_type TEXT NOT NULL,
    is_discount INTEGER NOT NULL DEFAULT 0,
    distribution TEXT NOT NULL,
    PRIMARY KEY (session_id, id),
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS totals (
    session_id TEXT NOT NULL,
    participant_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    name TEXT NOT NULL,
    subtotal REAL NOT NULL,
    total REAL NOT NULL,
    charges TEXT NOT NULL DEFAULT '[]',
    PRIMARY KEY (session_id, participant_id),
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);
CREATE INDEX IF NOT EXISTS idx_assignments_item ON assignments(session_id, item_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
