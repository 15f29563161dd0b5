package orchestrator

import (
	"sort"
	"time"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/storage"
)

// DefaultHistoryLimit is the default number of journal rows scanned by
// RecentResults.
const DefaultHistoryLimit = 1000

// HistorySource is the read side of an event journal.
type HistorySource interface {
	Query(limit int) ([]storage.Row, error)
}

// ResultSummary is the last journaled result of one operation on one
// title.
type ResultSummary struct {
	Operation Operation `json:"operation"`
	Title     string    `json:"title"`
	Status    Overall   `json:"status"`
	Present   bool      `json:"present,omitempty"`
	At        time.Time `json:"at"`
}

// RecentResults rebuilds the latest result per operation and title
// from sync.completed events in the journal, newest first. A nil source
// yields no results.
func RecentResults(src HistorySource, limit int) ([]ResultSummary, int, error) {
	if src == nil {
		return nil, 0, nil
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := src.Query(limit)
	if err != nil {
		return nil, 0, err
	}

	// Rows arrive newest first; the first one seen per key wins.
	type key struct {
		op    Operation
		title string
	}
	latest := make(map[key]ResultSummary)
	for _, row := range rows {
		if row.Event != "sync.completed" {
			continue
		}
		op, _ := row.Fields["operation"].(string)
		title, _ := row.Fields["title"].(string)
		status, _ := row.Fields["status"].(string)
		if op == "" || title == "" {
			continue
		}
		k := key{Operation(op), title}
		if _, seen := latest[k]; seen {
			continue
		}
		present, _ := row.Fields["present"].(bool)
		latest[k] = ResultSummary{
			Operation: Operation(op),
			Title:     title,
			Status:    Overall(status),
			Present:   present,
			At:        row.Timestamp,
		}
	}

	out := make([]ResultSummary, 0, len(latest))
	for _, s := range latest {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.After(out[j].At)
		}
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].Operation < out[j].Operation
	})
	return out, len(rows), nil
}
