// Package storage defines the event journal shared by the Postgres and
// SQLite backends.
package storage

import "time"

// Row is one journaled event.
type Row struct {
	EventID   int64                  `json:"event_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   *string                `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Host      string                 `json:"host"`
}

// Journal persists events and returns recent history.
type Journal interface {
	Append(ts time.Time, level, event, msg string, fields map[string]interface{}) error
	Query(limit int) ([]Row, error)
	Close() error
}

// DefaultLimit and MaxLimit bound Query.
const (
	DefaultLimit = 200
	MaxLimit     = 10000
)

// ClampLimit applies DefaultLimit and MaxLimit to a requested row count.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
