package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const maxBusyTimeoutMs = 5000

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS world_state (
	key     TEXT PRIMARY KEY,
	value   BLOB NOT NULL,
	version INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	name  TEXT PRIMARY KEY,
	value BLOB NOT NULL
);`

// sqliteBackend implements the Backend interface on a SQLite database file.
type sqliteBackend struct {
	db   *sql.DB
	file string
}

// Ensure sqliteBackend implements the Backend interface.
var _ Backend = (*sqliteBackend)(nil)

// OpenSQLite opens (or creates) the SQLite world state database at path.
func OpenSQLite(path string) (Backend, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", filepath.Clean(absPath)))
	if err != nil {
		return nil, backendError(ErrBackend, "open sqlite", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, backendError(ErrBackend, "ping sqlite", err)
	}

	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA busy_timeout=%d", maxBusyTimeoutMs),
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, backendError(ErrBackend, pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, backendError(ErrBackend, "create world state schema", err)
	}

	log.Infof("Loaded SQLite world state from '%s'", absPath)
	return &sqliteBackend{db: db, file: absPath}, nil
}

func (s *sqliteBackend) Get(key string) (*VersionedValue, error) {
	var vv VersionedValue
	row := s.db.QueryRow(`SELECT value, version FROM world_state WHERE key = ?`, key)
	if err := row.Scan(&vv.Value, &vv.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, backendError(ErrBackend, fmt.Sprintf("failed to get key %q", key), err)
	}
	return &vv, nil
}

func (s *sqliteBackend) Meta(name string) ([]byte, error) {
	var value []byte
	row := s.db.QueryRow(`SELECT value FROM meta WHERE name = ?`, name)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, backendError(ErrBackend, fmt.Sprintf("failed to get meta %q", name), err)
	}
	return value, nil
}

func (s *sqliteBackend) Apply(batch *Batch) error {
	tx, err := s.db.Begin()
	if err != nil {
		return backendError(ErrBackend, "begin sqlite transaction", err)
	}

	for _, kv := range batch.Writes {
		value := kv.Value
		if value == nil {
			value = []byte{}
		}
		_, err := tx.Exec(`INSERT INTO world_state (key, value, version) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, version = excluded.version`,
			kv.Key, value, kv.Version)
		if err != nil {
			tx.Rollback()
			return backendError(ErrBackend, fmt.Sprintf("write key %q", kv.Key), err)
		}
	}
	for name, value := range batch.Meta {
		if value == nil {
			value = []byte{}
		}
		_, err := tx.Exec(`INSERT INTO meta (name, value) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET value = excluded.value`, name, value)
		if err != nil {
			tx.Rollback()
			return backendError(ErrBackend, fmt.Sprintf("write meta %q", name), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return backendError(ErrBackend, "commit sqlite transaction", err)
	}
	return nil
}

func (s *sqliteBackend) Scan(prefix string, fn func(key string, vv VersionedValue) error) error {
	rows, err := s.db.Query(`SELECT key, value, version FROM world_state
		WHERE substr(key, 1, length(?)) = ? ORDER BY key`, prefix, prefix)
	if err != nil {
		return backendError(ErrBackend, fmt.Sprintf("scan prefix %q", prefix), err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var vv VersionedValue
		if err := rows.Scan(&key, &vv.Value, &vv.Version); err != nil {
			return backendError(ErrCorruption, "decode world state row", err)
		}
		if err := fn(key, vv); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return backendError(ErrBackend, "iterate world state", err)
	}
	return nil
}

func (s *sqliteBackend) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
