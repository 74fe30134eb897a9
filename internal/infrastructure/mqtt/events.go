package mqtt

import (
	"github.com/hearthlabs/hearth-cloud/internal/infrastructure/logging"
)

// EventPublisher adapts the MQTT client to the fire-and-forget event
// interface the domain services expect. Publish failures are logged,
// never propagated; a broker outage must not fail a command or a sync.
type EventPublisher struct {
	client *Client
	logger *logging.Logger
}

// NewEventPublisher creates an event publisher backed by the client.
func NewEventPublisher(client *Client, logger *logging.Logger) *EventPublisher {
	return &EventPublisher{
		client: client,
		logger: logger.With("component", "mqtt-events"),
	}
}

// Publish marshals the payload and publishes it best-effort.
func (p *EventPublisher) Publish(topic string, payload any) {
	if err := p.client.PublishJSON(topic, payload); err != nil {
		p.logger.Warn("publishing event", "topic", topic, "error", err)
	}
}
