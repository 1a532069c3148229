package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations. Timestamps are
// stored as Unix nanoseconds so they order numerically.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions and interactions",
		SQL: `
			CREATE TABLE sessions (
				id          TEXT PRIMARY KEY,
				created_at  INTEGER NOT NULL,
				record      TEXT NOT NULL
			);

			CREATE INDEX idx_sessions_created ON sessions (created_at DESC, id DESC);

			CREATE TABLE interactions (
				session_id   TEXT NOT NULL,
				witness_id   TEXT NOT NULL,
				captured_at  INTEGER NOT NULL,
				record       TEXT NOT NULL,
				PRIMARY KEY (session_id, witness_id)
			);

			CREATE INDEX idx_interactions_witness ON interactions (witness_id);
			CREATE INDEX idx_interactions_recent ON interactions (session_id, captured_at DESC, witness_id DESC);
		`,
	},
}
