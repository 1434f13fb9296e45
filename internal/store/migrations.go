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

CREATE TABLE IF NOT EXISTS items (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL DEFAULT '',
	repo_full_name TEXT NOT NULL DEFAULT '',
	kind           TEXT NOT NULL DEFAULT 'other',
	updated_at     DATETIME NOT NULL,
	number         INTEGER NOT NULL DEFAULT 0,
	reason         TEXT NOT NULL DEFAULT '',
	unread         INTEGER NOT NULL DEFAULT 0 CHECK(unread IN (0, 1)),
	url            TEXT NOT NULL DEFAULT '',
	repo_url       TEXT NOT NULL DEFAULT '',
	subscribed     INTEGER NOT NULL DEFAULT 1 CHECK(subscribed IN (0, 1))
);

CREATE TABLE IF NOT EXISTS done_items (
	id      TEXT PRIMARY KEY,
	done_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS hidden_groups (
	name      TEXT PRIMARY KEY,
	hidden_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sync_markers (
	id                   INTEGER PRIMARY KEY CHECK(id = 1),
	last_fetch_at        DATETIME,
	last_seen_updated_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_items_updated_at ON items(updated_at);
CREATE INDEX IF NOT EXISTS idx_items_repo_full_name ON items(repo_full_name);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
