package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/ghnotify/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const itemInsert = `
	INSERT OR REPLACE INTO items (
		id, title, repo_full_name, kind,
		updated_at, number, reason, unread,
		url, repo_url, subscribed
	) VALUES (
		?, ?, ?, ?,
		?, ?, ?, ?,
		?, ?, ?
	)`

// GetSnapshot returns the full cached snapshot, or nil when empty.
func (s *SQLiteStore) GetSnapshot(ctx context.Context) ([]model.Item, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM items ORDER BY updated_at DESC, id",
	)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// ReplaceSnapshot atomically replaces the whole cached snapshot inside a
// single transaction. Readers never observe a partially written snapshot.
func (s *SQLiteStore) ReplaceSnapshot(ctx context.Context, items []model.Item) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM items"); err != nil {
		return fmt.Errorf("clearing items: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, itemInsert)
	if err != nil {
		return fmt.Errorf("preparing item insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		if err := execItemInsert(ctx, stmt, item); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// UpdateItem upserts a single item in the cached snapshot.
func (s *SQLiteStore) UpdateItem(ctx context.Context, item model.Item) error {
	_, err := s.db.ExecContext(ctx, itemInsert,
		item.ID, item.Title, item.RepoFullName, string(item.Kind),
		item.UpdatedAt.UTC(), item.Number, item.Reason, boolToInt(item.Unread),
		item.URL, item.RepoURL, boolToInt(item.Subscribed),
	)
	if err != nil {
		return fmt.Errorf("upserting item %s: %w", item.ID, err)
	}
	return nil
}

// MarkDone inserts id into the done set. Inserting an existing id is a no-op.
func (s *SQLiteStore) MarkDone(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO done_items (id, done_at) VALUES (?, ?)",
		id, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("marking %s done: %w", id, err)
	}
	return nil
}

// IsDone reports whether id is in the done set.
func (s *SQLiteStore) IsDone(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM done_items WHERE id = ?", id,
	)
	if err != nil {
		return false, fmt.Errorf("checking done %s: %w", id, err)
	}
	return count > 0, nil
}

// DoneIDs returns the full done set.
func (s *SQLiteStore) DoneIDs(ctx context.Context) (map[string]struct{}, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, "SELECT id FROM done_items")
	if err != nil {
		return nil, fmt.Errorf("querying done ids: %w", err)
	}

	done := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		done[id] = struct{}{}
	}
	return done, nil
}

// HideGroup adds a group name to the hidden set.
func (s *SQLiteStore) HideGroup(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO hidden_groups (name, hidden_at) VALUES (?, ?)",
		name, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("hiding group %s: %w", name, err)
	}
	return nil
}

// UnhideGroup removes a group name from the hidden set.
func (s *SQLiteStore) UnhideGroup(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM hidden_groups WHERE name = ?", name,
	)
	if err != nil {
		return fmt.Errorf("unhiding group %s: %w", name, err)
	}
	return nil
}

// HiddenGroups returns the set of hidden group names.
func (s *SQLiteStore) HiddenGroups(ctx context.Context) (map[string]struct{}, error) {
	var names []string
	err := s.db.SelectContext(ctx, &names, "SELECT name FROM hidden_groups")
	if err != nil {
		return nil, fmt.Errorf("querying hidden groups: %w", err)
	}

	hidden := make(map[string]struct{}, len(names))
	for _, name := range names {
		hidden[name] = struct{}{}
	}
	return hidden, nil
}

// GetMarkers returns the persisted sync markers. A missing row yields
// zero-valued markers.
func (s *SQLiteStore) GetMarkers(ctx context.Context) (model.Markers, error) {
	var (
		id                int
		lastFetchAt       sql.NullTime
		lastSeenUpdatedAt sql.NullTime
	)

	row := s.db.QueryRowxContext(ctx,
		"SELECT id, last_fetch_at, last_seen_updated_at FROM sync_markers WHERE id = 1",
	)
	err := row.Scan(&id, &lastFetchAt, &lastSeenUpdatedAt)
	if err == sql.ErrNoRows {
		return model.Markers{}, nil
	}
	if err != nil {
		return model.Markers{}, fmt.Errorf("reading sync markers: %w", err)
	}

	var markers model.Markers
	if lastFetchAt.Valid {
		markers.LastFetchAt = lastFetchAt.Time
	}
	if lastSeenUpdatedAt.Valid {
		markers.LastSeenUpdatedAt = lastSeenUpdatedAt.Time
	}
	return markers, nil
}

// SetMarkers persists the sync markers.
func (s *SQLiteStore) SetMarkers(ctx context.Context, markers model.Markers) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sync_markers (id, last_fetch_at, last_seen_updated_at)
		VALUES (1, ?, ?)`,
		nullTime(markers.LastFetchAt), nullTime(markers.LastSeenUpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("writing sync markers: %w", err)
	}
	return nil
}

// ResetAll clears the snapshot, done set, hidden groups, and markers
// together inside one transaction.
func (s *SQLiteStore) ResetAll(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM items",
		"DELETE FROM done_items",
		"DELETE FROM hidden_groups",
		"DELETE FROM sync_markers",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("resetting store: %w", err)
		}
	}

	return tx.Commit()
}

// execItemInsert binds an item to the prepared insert statement.
func execItemInsert(ctx context.Context, stmt *sqlx.Stmt, item model.Item) error {
	_, err := stmt.ExecContext(ctx,
		item.ID, item.Title, item.RepoFullName, string(item.Kind),
		item.UpdatedAt.UTC(), item.Number, item.Reason, boolToInt(item.Unread),
		item.URL, item.RepoURL, boolToInt(item.Subscribed),
	)
	if err != nil {
		return fmt.Errorf("inserting item %s: %w", item.ID, err)
	}
	return nil
}

// scanItem scans an item row from a sqlx.Rows result set.
func scanItem(rows *sqlx.Rows) (model.Item, error) {
	var (
		item       model.Item
		kind       string
		updatedAt  time.Time
		unread     int
		subscribed int
	)

	err := rows.Scan(
		&item.ID, &item.Title, &item.RepoFullName, &kind,
		&updatedAt, &item.Number, &item.Reason, &unread,
		&item.URL, &item.RepoURL, &subscribed,
	)
	if err != nil {
		return model.Item{}, fmt.Errorf("scanning item row: %w", err)
	}

	item.Kind = model.Kind(kind)
	item.UpdatedAt = updatedAt
	item.Unread = unread != 0
	item.Subscribed = subscribed != 0

	return item, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullTime converts a zero time to a SQL NULL.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
