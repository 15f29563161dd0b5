package api

import (
	"net/http"
	"sync"
)

var readiness = &readinessState{}

type readinessState struct {
	mu               sync.RWMutex
	engineReady      bool
	journalConnected bool
	journalOptional  bool
	mqttConnected    bool
	mqttOptional     bool
}

// SetEngineReady marks whether the engine has been constructed.
func SetEngineReady(ready bool) {
	readiness.mu.Lock()
	readiness.engineReady = ready
	readiness.mu.Unlock()
}

// SetJournalStatus records journal connectivity. An optional journal
// that is down does not make the daemon unready.
func SetJournalStatus(connected, optional bool) {
	readiness.mu.Lock()
	readiness.journalConnected = connected
	readiness.journalOptional = optional
	readiness.mu.Unlock()
}

// SetMQTTStatus records broker connectivity.
func SetMQTTStatus(connected, optional bool) {
	readiness.mu.Lock()
	readiness.mqttConnected = connected
	readiness.mqttOptional = optional
	readiness.mu.Unlock()
}

type CheckStatus struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
}

type ReadinessResponse struct {
	Ready       bool                   `json:"ready"`
	Checks      map[string]CheckStatus `json:"checks"`
	NotReadyMsg string                 `json:"message,omitempty"`
}

func dependencyCheck(connected, optional bool) (CheckStatus, bool) {
	switch {
	case connected:
		return CheckStatus{Status: "ok", Optional: optional}, true
	case optional:
		return CheckStatus{Status: "unavailable", Optional: true}, true
	default:
		return CheckStatus{Status: "not_ready"}, false
	}
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	readiness.mu.RLock()
	engineReady := readiness.engineReady
	journal, journalOK := dependencyCheck(readiness.journalConnected, readiness.journalOptional)
	mqtt, mqttOK := dependencyCheck(readiness.mqttConnected, readiness.mqttOptional)
	readiness.mu.RUnlock()

	resp := ReadinessResponse{
		Ready: engineReady && journalOK && mqttOK,
		Checks: map[string]CheckStatus{
			"journal": journal,
			"mqtt":    mqtt,
		},
	}
	if engineReady {
		resp.Checks["engine"] = CheckStatus{Status: "ok"}
	} else {
		resp.Checks["engine"] = CheckStatus{Status: "not_ready"}
	}

	status := http.StatusOK
	if !resp.Ready {
		resp.NotReadyMsg = "one or more required dependencies are not ready"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
