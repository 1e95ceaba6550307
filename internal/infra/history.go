package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/eliteGoblin/focusd/disp_mon/internal/domain"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

// SQLHistoryStore implements domain.HistoryStore on SQLite.
// With a key the database is SQLCipher-encrypted.
type SQLHistoryStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLHistoryStore opens (or creates) the history database at dbPath.
// A nil key opens it unencrypted.
func NewSQLHistoryStore(dbPath string, key []byte) (*SQLHistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dsn := dbPath
	if key != nil {
		dsn = fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// one writer; the edge loop and API handlers share it
	db.SetMaxOpenConns(1)

	// A wrong key surfaces here
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	s := &SQLHistoryStore{db: db, dbPath: dbPath}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *SQLHistoryStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		process TEXT NOT NULL,
		strategy TEXT NOT NULL,
		mode TEXT DEFAULT '',
		error TEXT DEFAULT '',
		at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_session_events_at ON session_events (at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends one event. A zero At is stamped with the current time.
func (s *SQLHistoryStore) Record(event domain.SessionEvent) error {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO session_events (kind, process, strategy, mode, error, at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(event.Kind), event.Process, event.Strategy, event.Mode, event.Error, event.At.UnixNano(),
	)
	return err
}

// Recent returns up to limit events, newest first.
func (s *SQLHistoryStore) Recent(limit int) ([]domain.SessionEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, kind, process, strategy, mode, error, at
		FROM session_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domain.SessionEvent{}
	for rows.Next() {
		var e domain.SessionEvent
		var kind string
		var at int64
		if err := rows.Scan(&e.ID, &kind, &e.Process, &e.Strategy, &e.Mode, &e.Error, &at); err != nil {
			return nil, err
		}
		e.Kind = domain.EdgeKind(kind)
		e.At = time.Unix(0, at)
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetPath returns the database file path.
func (s *SQLHistoryStore) GetPath() string {
	return s.dbPath
}

// Close releases the database connection.
func (s *SQLHistoryStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure SQLHistoryStore implements domain.HistoryStore.
var _ domain.HistoryStore = (*SQLHistoryStore)(nil)
