package records

import _ "modernc.org/sqlite"

const sqliteSchema = `CREATE TABLE IF NOT EXISTS recommendation_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts INTEGER NOT NULL,
    request_id TEXT NOT NULL,
    strategy TEXT,
    record TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recommendation_records_ts ON recommendation_records (ts);`

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLStore, error) {
	return openSQL("sqlite", path, sqliteSchema)
}
