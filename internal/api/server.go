// Package api serves the shortcut engine over local HTTP: health and
// readiness, recent events and journal history, the add/remove/check
// operations, and a WebSocket event stream.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/appinfo"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/events"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/orchestrator"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/profile"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/shortcutid"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/storage"
)

// Syncer runs shortcut operations. *orchestrator.Engine implements it.
type Syncer interface {
	Add(userdataRoot string, app appinfo.App) (orchestrator.AggregateResult, error)
	Remove(userdataRoot string, app appinfo.App) (orchestrator.AggregateResult, error)
	Check(userdataRoot, title string) (orchestrator.AggregateResult, error)
}

// Server holds what the handlers need.
type Server struct {
	syncer  Syncer
	root    func() string
	history orchestrator.HistorySource

	// Engine calls are serialised; the engine does no file locking.
	mu sync.Mutex
}

// NewServer creates a server. root is called per request so the
// userdata root is resolved fresh each time. history may be nil when no
// journal is configured.
func NewServer(syncer Syncer, root func() string, history orchestrator.HistorySource) *Server {
	return &Server{syncer: syncer, root: root, history: history}
}

type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Hostname  string `json:"hostname"`
	Timestamp string `json:"ts"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	resp := HealthResponse{
		Status:    "ok",
		Service:   "shortcutd",
		Hostname:  host,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	writeJSON(w, http.StatusOK, resp)
}

func eventsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, events.Snapshot())
}

// clearEventsHandler empties the recent-events buffer. The journal is
// not touched.
func clearEventsHandler(w http.ResponseWriter, r *http.Request) {
	events.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// eventsRoute reads recent events for any role; DELETE clears them and
// needs admin.
func eventsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		RequireAnyRole(eventsHandler)(w, r)
	case http.MethodDelete:
		RequireAdmin(clearEventsHandler)(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

// SyncResponse wraps the result of one operation.
type SyncResponse struct {
	OK     bool                          `json:"ok"`
	Error  string                        `json:"error,omitempty"`
	Result *orchestrator.AggregateResult `json:"result,omitempty"`
}

func (s *Server) addHandler(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.syncer.Add)
}

func (s *Server) removeHandler(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.syncer.Remove)
}

func (s *Server) mutate(w http.ResponseWriter, r *http.Request, op func(string, appinfo.App) (orchestrator.AggregateResult, error)) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, SyncResponse{Error: "method not allowed"})
		return
	}

	var app appinfo.App
	if err := json.NewDecoder(r.Body).Decode(&app); err != nil {
		writeJSON(w, http.StatusBadRequest, SyncResponse{Error: "invalid JSON"})
		return
	}

	s.mu.Lock()
	result, err := op(s.root(), app)
	s.mu.Unlock()

	s.respond(w, result, err)
}

func (s *Server) checkHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, SyncResponse{Error: "method not allowed"})
		return
	}

	title := r.URL.Query().Get("title")
	if title == "" {
		writeJSON(w, http.StatusBadRequest, SyncResponse{Error: "title required"})
		return
	}

	s.mu.Lock()
	result, err := s.syncer.Check(s.root(), title)
	s.mu.Unlock()

	s.respond(w, result, err)
}

func (s *Server) respond(w http.ResponseWriter, result orchestrator.AggregateResult, err error) {
	if err != nil {
		writeJSON(w, statusForError(err), SyncResponse{Error: err.Error()})
		return
	}
	recordSync(result)
	writeJSON(w, http.StatusOK, SyncResponse{OK: result.Status != orchestrator.OverallFailed, Result: &result})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, appinfo.ErrInvalidApp), errors.Is(err, shortcutid.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, profile.ErrUserdataDirMissing), errors.Is(err, profile.ErrNoValidProfiles):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "journal disabled"})
		return
	}

	limit := storage.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	rows, err := s.history.Query(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if rows == nil {
		rows = []storage.Row{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) recentHandler(w http.ResponseWriter, r *http.Request) {
	results, _, err := orchestrator.RecentResults(s.history, 0)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if results == nil {
		results = []orchestrator.ResultSummary{}
	}
	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Handler returns the routes. Reads need any role; mutations and
// clearing events need admin.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler)
	mux.HandleFunc("/metrics", metricsHandler)
	mux.HandleFunc("/events", eventsRoute)
	mux.HandleFunc("/history", RequireAnyRole(s.historyHandler))
	mux.HandleFunc("/shortcuts/recent", RequireAnyRole(s.recentHandler))
	mux.HandleFunc("/shortcuts/check", RequireAnyRole(s.checkHandler))
	mux.HandleFunc("/shortcuts/add", RequireAdmin(s.addHandler))
	mux.HandleFunc("/shortcuts/remove", RequireAdmin(s.removeHandler))
	mux.HandleFunc("/ws/events", RequireAnyRole(wsEventsHandler))
	return mux
}

// NewHTTPServer builds the http.Server for addr, with TLS when
// configured.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		TLSConfig:         LoadTLSConfig(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Serve runs srv until it is shut down, using TLS when srv has a TLS
// config.
func Serve(srv *http.Server) error {
	var err error
	if srv.TLSConfig != nil {
		log.Printf("API listening on https://%s\n", srv.Addr)
		err = srv.ListenAndServeTLS("", "")
	} else {
		log.Printf("API listening on http://%s\n", srv.Addr)
		err = srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
