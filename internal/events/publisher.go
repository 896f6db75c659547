// Package events publishes domain events after mutating tool executions.
// Publishing is fire-and-forget: delivery is the broker's concern and a
// publish failure never fails the turn that produced it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher is the capability consumed by the tool layer.
type Publisher interface {
	Publish(ctx context.Context, eventType, entityID string, payload map[string]any)
}

// Envelope is the wire shape of a published event.
type Envelope struct {
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	EntityID  string         `json:"entity_id"`
	Source    string         `json:"source_service"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

const sourceService = "taskmind"

// NATSPublisher publishes envelopes to subjects of the form
// <prefix>.<event_type>, e.g. tasks.task.created.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *zap.Logger
}

func NewNATSPublisher(url, subjectPrefix string, logger *zap.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NATSPublisher{conn: conn, prefix: subjectPrefix, logger: logger}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, eventType, entityID string, payload map[string]any) {
	env := Envelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		EntityID:  entityID,
		Source:    sourceService,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("failed to encode event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	subject := p.prefix + "." + eventType
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("subject", subject),
			zap.String("event_id", env.EventID),
			zap.Error(err))
		return
	}
	p.logger.Debug("event published",
		zap.String("subject", subject),
		zap.String("event_id", env.EventID),
		zap.String("entity_id", entityID))
}

func (p *NATSPublisher) Close() {
	p.conn.Close()
}

// NopPublisher drops all events. Used when no broker is configured and in
// tests.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, map[string]any) {}
