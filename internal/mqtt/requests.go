package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/appinfo"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/events"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/orchestrator"
)

// subscriber is the part of Client the RequestHandler needs.
type subscriber interface {
	Subscribe(topic string, handler paho.MessageHandler) error
}

// Syncer runs shortcut operations. *orchestrator.Engine implements it.
type Syncer interface {
	Add(userdataRoot string, app appinfo.App) (orchestrator.AggregateResult, error)
	Remove(userdataRoot string, app appinfo.App) (orchestrator.AggregateResult, error)
	Check(userdataRoot, title string) (orchestrator.AggregateResult, error)
}

// Request is a shortcut operation received on <topic>/requests.
type Request struct {
	Operation orchestrator.Operation `json:"operation"`
	App       appinfo.App            `json:"app"`
}

// RequestHandler runs requests published by a launcher UI. Results go
// out through the engine's notifier, not through this handler.
type RequestHandler struct {
	mu     sync.Mutex
	client subscriber
	syncer Syncer
	root   func() string
	topic  string
}

// NewRequestHandler creates a handler for <topic>/requests. root is
// called per request so the userdata root is resolved fresh each time.
func NewRequestHandler(client subscriber, syncer Syncer, topic string, root func() string) *RequestHandler {
	return &RequestHandler{
		client: client,
		syncer: syncer,
		root:   root,
		topic:  topic + "/requests",
	}
}

// Topic returns the request topic.
func (h *RequestHandler) Topic() string {
	return h.topic
}

// Start subscribes to the request topic.
func (h *RequestHandler) Start() error {
	return h.client.Subscribe(h.topic, h.handle)
}

func (h *RequestHandler) handle(_ paho.Client, msg paho.Message) {
	var req Request
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		events.Warn("shortcut.invalid_input", "malformed request", map[string]interface{}{
			"topic": msg.Topic(),
			"error": err.Error(),
		})
		return
	}

	// Paho may deliver on several goroutines; the engine touches files
	// without locking, so requests run one at a time.
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Run(req); err != nil {
		events.Warn("shortcut.invalid_input", err.Error(), map[string]interface{}{
			"operation": string(req.Operation),
			"title":     req.App.Title,
		})
	}
}

// Run executes one request.
func (h *RequestHandler) Run(req Request) error {
	var err error
	switch req.Operation {
	case orchestrator.OperationAdd:
		_, err = h.syncer.Add(h.root(), req.App)
	case orchestrator.OperationRemove:
		_, err = h.syncer.Remove(h.root(), req.App)
	case orchestrator.OperationCheck:
		_, err = h.syncer.Check(h.root(), req.App.Title)
	default:
		err = fmt.Errorf("unknown operation %q", req.Operation)
	}
	return err
}
