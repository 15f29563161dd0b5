// Package sqlite journals sync events to a local SQLite file. It is the
// default journal for single-machine installs.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/storage"
)

// Journal is an SQLite-backed event journal.
type Journal struct {
	mu   sync.Mutex
	db   *sql.DB
	host string
}

// Open opens (creating if needed) the journal at path.
func Open(path, host string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; SQLite serialises anyway.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", p, err)
		}
	}

	j := &Journal{db: db, host: host}
	if err := j.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sync_events table: %w", err)
	}
	return j, nil
}

func (j *Journal) createTable() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS sync_events (
			event_id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts       TEXT NOT NULL,
			level    TEXT NOT NULL,
			event    TEXT NOT NULL,
			msg      TEXT,
			fields   TEXT,
			host     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sync_events_host_ts ON sync_events(host, ts DESC);
	`)
	return err
}

// Append inserts an event.
func (j *Journal) Append(ts time.Time, level, event, msg string, fields map[string]interface{}) error {
	var fieldsJSON sql.NullString
	if fields != nil {
		b, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("marshal fields: %w", err)
		}
		fieldsJSON = sql.NullString{String: string(b), Valid: true}
	}
	msgVal := sql.NullString{String: msg, Valid: msg != ""}

	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := j.db.Exec(
		`INSERT INTO sync_events (ts, level, event, msg, fields, host) VALUES (?, ?, ?, ?, ?, ?)`,
		ts.UTC().Format(time.RFC3339Nano), level, event, msgVal, fieldsJSON, j.host,
	)
	return err
}

// Query returns the last limit events for this host, newest first.
func (j *Journal) Query(limit int) ([]storage.Row, error) {
	rows, err := j.db.Query(`
		SELECT event_id, ts, level, event, msg, fields, host
		FROM sync_events
		WHERE host = ?
		ORDER BY event_id DESC
		LIMIT ?`, j.host, storage.ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Row
	for rows.Next() {
		var (
			r      storage.Row
			ts     string
			msg    sql.NullString
			fields sql.NullString
		)
		if err := rows.Scan(&r.EventID, &ts, &r.Level, &r.Event, &msg, &fields, &r.Host); err != nil {
			return nil, err
		}
		r.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse ts %q: %w", ts, err)
		}
		if msg.Valid {
			r.Message = &msg.String
		}
		if fields.Valid && fields.String != "" {
			if err := json.Unmarshal([]byte(fields.String), &r.Fields); err != nil {
				return nil, fmt.Errorf("unmarshal fields: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}
