package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/tursodatabase/go-libsql"
)

// LibsqlBackend is the same schema as SqliteBackend but opened through the
// go-libsql driver, for deployments that want a store file that is also
// replicable with Turso's embedded-replica sync (not exercised by ipvc-go
// itself, which only needs a local durable KV store, but kept as a drop-in
// alternative backend so the dependency earns its place in go.mod).
type LibsqlBackend struct {
	conn *sql.DB
}

// OpenLibsql opens (creating if necessary) a libSQL-backed object store at
// path.
func OpenLibsql(path string) (*LibsqlBackend, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: failed to create directory: %w", err)
	}

	conn, err := sql.Open("libsql", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("store: failed to open libsql database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("store: failed to ping libsql database: %w", err)
	}
	conn.SetConnMaxLifetime(5 * time.Minute)

	for _, pragma := range []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("store: failed to set %q: %w", pragma, err)
		}
	}

	b := &LibsqlBackend{conn: conn}
	if err := b.initSchema(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return b, nil
}

func (b *LibsqlBackend) initSchema() error {
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

func (b *LibsqlBackend) GetObject(hash string) ([]byte, Kind, error) {
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

func (b *LibsqlBackend) PutObject(kind Kind, data []byte) (string, error) {
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

func (b *LibsqlBackend) GetRoot() (string, error) {
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

func (b *LibsqlBackend) SetRoot(hash string) error {
	_, err := b.conn.Exec(
		"INSERT INTO root (id, hash) VALUES (0, ?) ON CONFLICT(id) DO UPDATE SET hash = excluded.hash",
		hash,
	)
	if err != nil {
		return fmt.Errorf("store: set root: %w", err)
	}
	return nil
}

func (b *LibsqlBackend) Close() error {
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}
