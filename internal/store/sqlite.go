package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SqliteBackend persists the object store in an embedded SQLite database
// using go-sqlite3 (ncruces), the same embedded-libSQL driver the teacher
// repo uses for its query cache. Objects live in an append-only table keyed
// by content hash; the mutable root is a single row updated in place.
//
// This mirrors the teacher's internal/turso/db.DB: WAL mode for concurrent
// readers, a busy timeout, and foreign keys on.
type SqliteBackend struct {
	conn *sql.DB
}

// OpenSqlite opens (creating if necessary) a SQLite-backed object store at
// path.
func OpenSqlite(path string) (*SqliteBackend, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: failed to create directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("store: failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("store: failed to set %q: %w", pragma, err)
		}
	}

	b := &SqliteBackend{conn: conn}
	if err := b.initSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return b, nil
}

func (b *SqliteBackend) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS objects (
		hash TEXT PRIMARY KEY,
		kind INTEGER NOT NULL,
		data BLOB NOT NULL
	);
	CREATE TABLE IF NOT EXISTS root (
		id INTEGER PRIMARY KEY CHECK (id = 0),
		hash TEXT NOT NULL
	);
	`
	_, err := b.conn.Exec(schema)
	if err != nil {
		return fmt.Errorf("store: failed to initialize schema: %w", err)
	}
	return nil
}

func (b *SqliteBackend) GetObject(hash string) ([]byte, Kind, error) {
	var kind int
	var data []byte
	err := b.conn.QueryRow("SELECT kind, data FROM objects WHERE hash = ?", hash).Scan(&kind, &data)
	if err == sql.ErrNoRows {
		return nil, 0, ErrNotExist
	}
	if err != nil {
		return nil, 0, fmt.Errorf("store: get object %s: %w", hash, err)
	}
	return data, Kind(kind), nil
}

func (b *SqliteBackend) PutObject(kind Kind, data []byte) (string, error) {
	hash := hashOf(data)
	_, err := b.conn.Exec(
		"INSERT INTO objects (hash, kind, data) VALUES (?, ?, ?) ON CONFLICT(hash) DO NOTHING",
		hash, int(kind), data,
	)
	if err != nil {
		return "", fmt.Errorf("store: put object: %w", err)
	}
	return hash, nil
}

func (b *SqliteBackend) GetRoot() (string, error) {
	var hash string
	err := b.conn.QueryRow("SELECT hash FROM root WHERE id = 0").Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: get root: %w", err)
	}
	return hash, nil
}

func (b *SqliteBackend) SetRoot(hash string) error {
	_, err := b.conn.Exec(
		"INSERT INTO root (id, hash) VALUES (0, ?) ON CONFLICT(id) DO UPDATE SET hash = excluded.hash",
		hash,
	)
	if err != nil {
		return fmt.Errorf("store: set root: %w", err)
	}
	return nil
}

func (b *SqliteBackend) Close() error {
	if b.conn == nil {
		return nil
	}
	_, _ = b.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	err := b.conn.Close()
	b.conn = nil
	return err
}

// RawDB exposes the underlying *sql.DB, mirroring the teacher's RawDB
// accessor, for callers that want to run ancillary queries without a new
// abstraction layer. Nothing in this module calls it.
func (b *SqliteBackend) RawDB() *sql.DB {
	return b.conn
}
