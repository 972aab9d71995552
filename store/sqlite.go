package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
	_ "modernc.org/sqlite"

	"github.com/chazu/leap/vm"
)

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS rewrites (
		key      TEXT PRIMARY KEY,
		code     BLOB NOT NULL,
		labels   INTEGER NOT NULL,
		gotos    INTEGER NOT NULL,
		warnings BLOB
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Infof("opened rewrite cache %s", path)
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Get returns the entry for key.
func (s *SQLiteStore) Get(key Key) (*Entry, bool, error) {
	var (
		body, warnings []byte
		labels, gotos  int
	)
	err := s.db.QueryRow(
		"SELECT code, labels, gotos, warnings FROM rewrites WHERE key = ?", key.String(),
	).Scan(&body, &labels, &gotos, &warnings)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("querying rewrite: %w", err)
	}

	code, err := vm.UnmarshalCode(body)
	if err != nil {
		return nil, false, fmt.Errorf("decoding rewrite %s: %w", key, err)
	}
	e := &Entry{Code: code, Labels: labels, Gotos: gotos}
	if len(warnings) > 0 {
		if err := cbor.Unmarshal(warnings, &e.Warnings); err != nil {
			return nil, false, fmt.Errorf("decoding warnings %s: %w", key, err)
		}
	}
	return e, true, nil
}

// Put stores e under key, replacing any previous entry.
func (s *SQLiteStore) Put(key Key, e *Entry) error {
	body, err := vm.MarshalCode(e.Code)
	if err != nil {
		return fmt.Errorf("encoding rewrite: %w", err)
	}
	var warnings []byte
	if len(e.Warnings) > 0 {
		if warnings, err = encMode.Marshal(e.Warnings); err != nil {
			return fmt.Errorf("encoding warnings: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO rewrites (key, code, labels, gotos, warnings) VALUES (?, ?, ?, ?, ?)",
		key.String(), body, e.Labels, e.Gotos, warnings,
	)
	if err != nil {
		return fmt.Errorf("saving rewrite: %w", err)
	}
	return nil
}

// Len returns the number of entries.
func (s *SQLiteStore) Len() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM rewrites").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rewrites: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
