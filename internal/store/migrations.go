package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS read_journal (
	id              TEXT PRIMARY KEY,
	message_id      TEXT NOT NULL,
	conversation_id TEXT NOT NULL DEFAULT '',
	folder          TEXT NOT NULL,
	subject         TEXT NOT NULL DEFAULT '',
	sender          TEXT NOT NULL DEFAULT '',
	read_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_read_journal_message ON read_journal(message_id);
CREATE INDEX IF NOT EXISTS idx_read_journal_read_at ON read_journal(read_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
