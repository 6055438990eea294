package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// NotificationPublisher publishes service-order workflow events to NATS
// JetStream for consumers outside this service (mobile push, e-mail digests).
//
// Subject convention: notifications.os.<event_type>
// Event types follow domain.NotificationType in lower case, e.g.
// notifications.os.material_requested, notifications.os.signature_pending.
//
// All publish operations are non-fatal: errors are logged but never
// propagated to the caller, so notification failures never interrupt a
// workflow operation.
type NotificationPublisher struct {
	js  jetstream.JetStream
	log zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType      string         `json:"event_type"`
	ServiceOrderID string         `json:"service_order_id,omitempty"`
	OrderNumber    string         `json:"order_number,omitempty"`
	ActorID        string         `json:"actor_id"`
	Recipients     []string       `json:"recipients"`
	Title          string         `json:"title"`
	Message        string         `json:"message"`
	ActionURL      string         `json:"action_url,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher on an open NATS connection.
// A nil connection yields a publisher that drops every event.
func NewNotificationPublisher(nc *nats.Conn, log zerolog.Logger) (*NotificationPublisher, error) {
	if nc == nil {
		return &NotificationPublisher{log: log}, nil
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return &NotificationPublisher{js: js, log: log}, nil
}

// PublishServiceOrderEvent publishes one workflow event.
// Subject: notifications.os.<eventType>
func (p *NotificationPublisher) PublishServiceOrderEvent(ctx context.Context, event *NotificationEvent) {
	if p.js == nil || event == nil {
		return
	}
	if len(event.Recipients) == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", event.EventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.os.%s", event.EventType)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("service_order_id", event.ServiceOrderID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("service_order_id", event.ServiceOrderID).
		Int("recipients", len(event.Recipients)).
		Msg("notification: event published")
}
