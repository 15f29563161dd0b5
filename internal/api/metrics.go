package api

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/events"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/orchestrator"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/version"
)

var metricsState = &MetricsState{syncs: make(map[syncKey]int64)}

type syncKey struct {
	operation orchestrator.Operation
	status    orchestrator.Overall
}

// MetricsState holds runtime metrics for the /metrics endpoint.
type MetricsState struct {
	mu           sync.RWMutex
	startTime    time.Time
	syncs        map[syncKey]int64
	lastChangeTs int64 // Unix seconds, -1 if none
}

// InitMetrics initializes the metrics system. Must be called at startup.
func InitMetrics() {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.startTime = time.Now()
	metricsState.syncs = make(map[syncKey]int64)
	metricsState.lastChangeTs = -1
}

// recordSync counts a completed operation.
func recordSync(r orchestrator.AggregateResult) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.syncs[syncKey{r.Operation, r.Status}]++
	if r.Changed() {
		metricsState.lastChangeTs = time.Now().Unix()
	}
}

// metricsHandler returns Prometheus-compatible metrics in text format.
func metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	metricsState.mu.RLock()
	startTime := metricsState.startTime
	lastChange := metricsState.lastChangeTs
	keys := make([]syncKey, 0, len(metricsState.syncs))
	counts := make(map[syncKey]int64, len(metricsState.syncs))
	for k, v := range metricsState.syncs {
		keys = append(keys, k)
		counts[k] = v
	}
	metricsState.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].operation != keys[j].operation {
			return keys[i].operation < keys[j].operation
		}
		return keys[i].status < keys[j].status
	})

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	labels := fmt.Sprintf(`instance="%s",version="%s"`, hostname, version.Version)

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	header := func(name, mtype, help string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
	}

	header("deck_shortcuts_uptime_seconds", "gauge", "Number of seconds since the daemon started")
	fmt.Fprintf(w, "deck_shortcuts_uptime_seconds{%s} %v\n", labels, time.Since(startTime).Seconds())

	header("deck_shortcuts_events_total", "counter", "Total number of events emitted since startup")
	fmt.Fprintf(w, "deck_shortcuts_events_total{%s} %d\n", labels, events.TotalCount())

	header("deck_shortcuts_ws_clients", "gauge", "Number of active WebSocket client connections")
	fmt.Fprintf(w, "deck_shortcuts_ws_clients{%s} %d\n", labels, events.SubscriberCount())

	header("deck_shortcuts_syncs_total", "counter", "Completed operations by operation and overall status")
	for _, k := range keys {
		fmt.Fprintf(w, "deck_shortcuts_syncs_total{%s,operation=\"%s\",status=\"%s\"} %d\n", labels, k.operation, k.status, counts[k])
	}

	header("deck_shortcuts_last_change_timestamp", "gauge", "Unix timestamp of the last operation that changed a profile (-1 if none)")
	fmt.Fprintf(w, "deck_shortcuts_last_change_timestamp{%s} %d\n", labels, lastChange)
}
