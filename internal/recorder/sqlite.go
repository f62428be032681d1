package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLite stores headers in a `headers` table keyed by session id, so several
// runs can share one database file.
type SQLite struct {
	mu        sync.Mutex
	db        *sql.DB
	insert    *sql.Stmt
	path      string
	sessionID string
}

// NewSQLite opens or creates the database at path.
func NewSQLite(path, sessionID string) (*SQLite, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		log.Warn().Err(err).Msg("failed to enable WAL mode")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	s := &SQLite{db: db, path: path, sessionID: sessionID}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate recording database: %w", err)
	}

	s.insert, err = db.Prepare(`
		INSERT INTO headers (session_id, recorded_at, player_id, direction, port,
			type, serial, irt, seq, expected, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}

	log.Info().Str("path", path).Msg("recording database opened")
	return s, nil
}

// migrate creates the database schema.
func (s *SQLite) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS headers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			recorded_at INTEGER NOT NULL,
			player_id INTEGER NOT NULL,
			direction TEXT NOT NULL,
			port INTEGER NOT NULL,
			type TEXT NOT NULL,
			serial INTEGER NOT NULL,
			irt INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			expected INTEGER NOT NULL,
			payload BLOB
		);
		CREATE INDEX IF NOT EXISTS idx_headers_session ON headers(session_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	log.Debug().Msg("recording schema migrated")
	return nil
}

// Record inserts e.
func (s *SQLite) Record(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.insert.Exec(s.sessionID, e.Time.UnixMilli(), e.PlayerID, string(e.Direction),
		e.Port, e.Type.String(), e.Serial, e.IRT, e.Seq, e.Expected, e.Payload)
	if err != nil {
		return fmt.Errorf("failed to record header: %w", err)
	}
	return nil
}

// Count returns the number of headers recorded for this session.
func (s *SQLite) Count() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM headers WHERE session_id = ?", s.sessionID).Scan(&n)
	return n, err
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insert.Close()
	return s.db.Close()
}
