package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (knotter_log only)
// 1 - knotter_meta.last_event_id backfilled from existing keys
const currentSchemaVersion = 1

const metaLastEventID = "last_event_id"

// SQLite is the SQLite-backed Log.
// Uses WAL mode so scans can run while a write is in flight.
type SQLite struct {
	db    *sql.DB
	clock *Clock
}

// OpenSQLite creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func OpenSQLite(path string, opts ...Option) (*SQLite, error) {
	o := buildOptions(opts)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &SQLite{db: db, clock: o.clock}
	last, err := s.lastEventID(context.Background())
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := seed(s.clock, last); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Log methods when available.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Append writes payload under a fresh event id. The event row and the
// high-water mark are committed in one transaction.
func (s *SQLite) Append(ctx context.Context, globeID string, payload []byte) (string, error) {
	id := FormatEventID(s.clock.Next())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("append: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO knotter_log (key, value) VALUES (?, ?)
	`, Key(globeID, id), string(payload)); err != nil {
		return "", fmt.Errorf("append: insert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO knotter_meta (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
		WHERE excluded.value > knotter_meta.value
	`, metaLastEventID, id); err != nil {
		return "", fmt.Errorf("append: update last event id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("append: commit: %w", err)
	}
	return id, nil
}

// Scan reads one globe's entries after the cursor.
// The read runs in a transaction so the result is a single snapshot.
func (s *SQLite) Scan(ctx context.Context, globeID, after string, limit int) ([]Entry, error) {
	w, err := newWindow(globeID, after, limit)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("scan: begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT key, value FROM knotter_log
		WHERE key >= ? AND key < ?
		ORDER BY key COLLATE BINARY ASC
		LIMIT ?
	`, w.start, w.end, w.fetch())
	if err != nil {
		return nil, fmt.Errorf("scan: query: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan: row: %w", err)
		}
		var more bool
		if entries, more = w.collect(entries, key, []byte(value)); !more {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan: iterate: %w", err)
	}

	return entries, nil
}

// Globes returns every globe id with at least one event, in key order.
func (s *SQLite) Globes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT substr(key, 1, instr(key, ?) - 1) AS globe
		FROM knotter_log
		ORDER BY globe COLLATE BINARY
	`, Separator)
	if err != nil {
		return nil, fmt.Errorf("list globes: %w", err)
	}
	defer rows.Close()

	globes := []string{}
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("scan globe: %w", err)
		}
		globes = append(globes, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate globes: %w", err)
	}
	return globes, nil
}

func (s *SQLite) lastEventID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM knotter_meta WHERE name = ?
	`, metaLastEventID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read last event id: %w", err)
	}
	return id, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 backfills the last issued event id for logs written before
// knotter_meta existed. Keys are ordered by globe first, so every key is read.
func migrateToV1(db *sql.DB) error {
	rows, err := db.Query(`SELECT key FROM knotter_log`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	defer rows.Close()

	var last string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
		if _, id, ok := SplitKey(key); ok && id > last {
			last = id
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	// Release the only connection before writing.
	rows.Close()
	if last == "" {
		return nil
	}

	_, err = db.Exec(`
		INSERT INTO knotter_meta (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
		WHERE excluded.value > knotter_meta.value
	`, metaLastEventID, last)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *SQLite) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
