// Package store persists lamp switch events to SQLite so the status page can
// show recent switching history across restarts.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sweeney/lamp-control/internal/logic"
)

// Entry is a single recorded switch event.
type Entry struct {
	ID         int64
	Type       logic.EventType
	LightLevel int
	Timestamp  time.Time
}

// Store is an append-only switch event ledger backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens the database at path and initializes the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS switch_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			light_level INTEGER NOT NULL,
			timestamp INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_switch_events_ts ON switch_events(timestamp);
	`)
	if err != nil {
		return fmt.Errorf("create switch_events table: %w", err)
	}
	return nil
}

// Append records a switch event.
func (s *Store) Append(event logic.Event) error {
	_, err := s.db.Exec(
		`INSERT INTO switch_events (event_type, light_level, timestamp) VALUES (?, ?, ?)`,
		string(event.Type), event.LightLevel, event.Timestamp.UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("append switch event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, event_type, light_level, timestamp
		FROM switch_events
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query switch events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var eventType string
		var ts int64
		if err := rows.Scan(&e.ID, &eventType, &e.LightLevel, &ts); err != nil {
			return nil, fmt.Errorf("scan switch event: %w", err)
		}
		e.Type = logic.EventType(eventType)
		e.Timestamp = time.Unix(ts, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
