package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/BunnyStrike/deck-revealed-sub000/internal/orchestrator"
)

// publisher is the part of Client the Publisher needs.
type publisher interface {
	Publish(topic string, retained bool, payload []byte) error
}

// ResultMessage is the payload published for every sync call.
type ResultMessage struct {
	orchestrator.AggregateResult

	// RestartSteam is set when a profile file changed; Steam only picks
	// up the change after a restart.
	RestartSteam bool `json:"restart_steam"`
}

// Publisher sends aggregate results to <topic>/<operation>. It
// implements orchestrator.Notifier.
type Publisher struct {
	client publisher
	topic  string
}

// NewPublisher creates a publisher on topic.
func NewPublisher(client publisher, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// Notify publishes r. Results that changed a file are retained so a UI
// that connects later still learns a restart is needed.
func (p *Publisher) Notify(r orchestrator.AggregateResult) error {
	msg := ResultMessage{AggregateResult: r, RestartSteam: r.Changed()}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return p.client.Publish(p.topic+"/"+string(r.Operation), msg.RestartSteam, payload)
}
