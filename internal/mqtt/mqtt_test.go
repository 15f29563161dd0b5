package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/appinfo"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/events"
	"github.com/BunnyStrike/deck-revealed-sub000/internal/orchestrator"
)

// MockMQTTClient records publishes and subscriptions.
type MockMQTTClient struct {
	mu            sync.Mutex
	subscriptions map[string]paho.MessageHandler
	published     []publishedMessage
	publishErr    error
}

type publishedMessage struct {
	topic    string
	retained bool
	payload  []byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{subscriptions: make(map[string]paho.MessageHandler)}
}

func (m *MockMQTTClient) Subscribe(topic string, handler paho.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[topic] = handler
	return nil
}

func (m *MockMQTTClient) Publish(topic string, retained bool, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, publishedMessage{topic, retained, payload})
	return nil
}

func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	handler, ok := m.subscriptions[topic]
	m.mu.Unlock()
	if ok {
		handler(nil, &mockMessage{topic: topic, payload: payload})
	}
}

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}

type fakeSyncer struct {
	calls []string
	roots []string
}

func (f *fakeSyncer) Add(root string, app appinfo.App) (orchestrator.AggregateResult, error) {
	f.calls = append(f.calls, "add:"+app.Title)
	f.roots = append(f.roots, root)
	return orchestrator.AggregateResult{}, nil
}

func (f *fakeSyncer) Remove(root string, app appinfo.App) (orchestrator.AggregateResult, error) {
	f.calls = append(f.calls, "remove:"+app.Title)
	f.roots = append(f.roots, root)
	return orchestrator.AggregateResult{}, nil
}

func (f *fakeSyncer) Check(root, title string) (orchestrator.AggregateResult, error) {
	f.calls = append(f.calls, "check:"+title)
	f.roots = append(f.roots, root)
	return orchestrator.AggregateResult{}, nil
}

func TestBrokerURLPrecedence(t *testing.T) {
	t.Setenv("DECK_MQTT_URL", "")
	if got := BrokerURL(""); got != "tcp://localhost:1883" {
		t.Errorf("expected default broker, got %s", got)
	}
	if got := BrokerURL("tcp://broker:1883"); got != "tcp://broker:1883" {
		t.Errorf("expected configured broker, got %s", got)
	}
	t.Setenv("DECK_MQTT_URL", "tcp://env:1883")
	if got := BrokerURL("tcp://broker:1883"); got != "tcp://env:1883" {
		t.Errorf("expected env broker, got %s", got)
	}
}

func TestPublisherNotify(t *testing.T) {
	mock := NewMockMQTTClient()
	p := NewPublisher(mock, "deck/shortcuts/results")

	result := orchestrator.AggregateResult{
		Operation: orchestrator.OperationAdd,
		Title:     "MyApp",
		Status:    orchestrator.OverallPartialSuccess,
		Outcomes: []orchestrator.Outcome{
			{ProfileID: "100", Status: orchestrator.StatusSuccess, Detail: "added"},
			{ProfileID: "200", Status: orchestrator.StatusStructurallyInvalid, Detail: "bad"},
		},
		Problems: []string{"200: bad"},
	}
	if err := p.Notify(result); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if len(mock.published) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(mock.published))
	}
	msg := mock.published[0]
	if msg.topic != "deck/shortcuts/results/add" {
		t.Errorf("unexpected topic %s", msg.topic)
	}
	if !msg.retained {
		t.Error("expected changed result to be retained")
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(msg.payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["restart_steam"] != true {
		t.Errorf("expected restart_steam true, got %v", decoded["restart_steam"])
	}
	if decoded["status"] != "PartialSuccess" || decoded["title"] != "MyApp" {
		t.Errorf("unexpected payload %s", msg.payload)
	}
}

func TestPublisherCheckNotRetained(t *testing.T) {
	mock := NewMockMQTTClient()
	p := NewPublisher(mock, "t")
	if err := p.Notify(orchestrator.AggregateResult{Operation: orchestrator.OperationCheck, Present: true}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if mock.published[0].retained {
		t.Error("expected check result not retained")
	}
}

func TestPublisherError(t *testing.T) {
	mock := NewMockMQTTClient()
	mock.publishErr = &PublishTimeoutError{Topic: "t/add"}
	p := NewPublisher(mock, "t")

	err := p.Notify(orchestrator.AggregateResult{Operation: orchestrator.OperationAdd})
	var timeout *PublishTimeoutError
	if !errors.As(err, &timeout) {
		t.Errorf("expected PublishTimeoutError, got %v", err)
	}
}

func TestRequestHandlerRunsRequests(t *testing.T) {
	mock := NewMockMQTTClient()
	syncer := &fakeSyncer{}
	h := NewRequestHandler(mock, syncer, "deck/shortcuts", func() string { return "/userdata" })

	if err := h.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h.Topic() != "deck/shortcuts/requests" {
		t.Errorf("unexpected topic %s", h.Topic())
	}

	mock.SimulateMessage(h.Topic(), []byte(`{"operation":"add","app":{"title":"MyApp","executable":"/usr/bin/myapp"}}`))
	mock.SimulateMessage(h.Topic(), []byte(`{"operation":"remove","app":{"title":"Old"}}`))
	mock.SimulateMessage(h.Topic(), []byte(`{"operation":"check","app":{"title":"MyApp"}}`))

	want := []string{"add:MyApp", "remove:Old", "check:MyApp"}
	if len(syncer.calls) != len(want) {
		t.Fatalf("expected %v, got %v", want, syncer.calls)
	}
	for i := range want {
		if syncer.calls[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], syncer.calls[i])
		}
		if syncer.roots[i] != "/userdata" {
			t.Errorf("call %d: expected root /userdata, got %s", i, syncer.roots[i])
		}
	}
}

func TestRequestHandlerRejectsBadInput(t *testing.T) {
	events.Clear()
	mock := NewMockMQTTClient()
	syncer := &fakeSyncer{}
	h := NewRequestHandler(mock, syncer, "t", func() string { return "/userdata" })
	h.Start()

	mock.SimulateMessage(h.Topic(), []byte(`not json`))
	mock.SimulateMessage(h.Topic(), []byte(`{"operation":"rename","app":{"title":"X"}}`))

	if len(syncer.calls) != 0 {
		t.Errorf("expected no calls, got %v", syncer.calls)
	}

	var rejected int
	for _, e := range events.Snapshot() {
		if e.Name == "shortcut.invalid_input" {
			rejected++
		}
	}
	if rejected != 2 {
		t.Errorf("expected 2 shortcut.invalid_input events, got %d", rejected)
	}
}
