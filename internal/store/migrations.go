package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create conversation turns",
		SQL: `
			CREATE TABLE conversation_turns (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				collection  TEXT NOT NULL,
				day         TEXT NOT NULL,
				session_id  TEXT NOT NULL,
				role        TEXT NOT NULL,
				content     TEXT NOT NULL,
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_turns_conversation ON conversation_turns (collection, day, session_id, id);
		`,
	},
	{
		Version: 2,
		Name:    "create audit entries",
		SQL: `
			CREATE TABLE audit_entries (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				user_id     TEXT NOT NULL,
				message     TEXT NOT NULL,
				response    TEXT NOT NULL,
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_audit_user ON audit_entries (user_id, id);
		`,
	},
}
