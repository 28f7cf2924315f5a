package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
	"github.com/sitebeam/construction-platform-iam/internal/core/port"
	"github.com/sitebeam/construction-platform-iam/internal/infra/config"
)

const schemaVersion = "1.0"

// Topic names for downstream consumers, relative to the configured prefix.
const (
	TopicProfileRoleChanged   = "profile.role.changed"
	TopicProfileDeactivated   = "profile.deactivated"
	TopicSessionRevoked       = "session.revoked"
	TopicImpersonationStarted = "impersonation.started"
	TopicImpersonationStopped = "impersonation.stopped"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID     string           `json:"event_id"`
	EventType   string           `json:"event_type"`
	PrincipalID string           `json:"principal_id,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	Version     string           `json:"version"`
	Payload     any              `json:"payload"`
	Metadata    envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, principalID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:     id,
		EventType:   eventType,
		PrincipalID: principalID,
		Timestamp:   ts.UTC(),
		Version:     schemaVersion,
		Payload:     payload,
		Metadata:    metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(principalID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishProfileRoleChanged publishes cpiam.profile.role.changed events.
func (p *EventPublisher) PublishProfileRoleChanged(ctx context.Context, event domain.ProfileRoleChangedEvent) error {
	return p.publish(ctx, event.EventID, TopicProfileRoleChanged, event.PrincipalID, event.ChangedAt, event)
}

// PublishProfileDeactivated publishes cpiam.profile.deactivated events.
func (p *EventPublisher) PublishProfileDeactivated(ctx context.Context, event domain.ProfileDeactivatedEvent) error {
	return p.publish(ctx, event.EventID, TopicProfileDeactivated, event.PrincipalID, event.DeactivatedAt, event)
}

// PublishSessionRevoked publishes cpiam.session.revoked events.
func (p *EventPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	return p.publish(ctx, event.EventID, TopicSessionRevoked, event.PrincipalID, event.RevokedAt, event)
}

// PublishImpersonationStarted publishes cpiam.impersonation.started events.
// The envelope key is the original principal so the audit trail partitions by
// the admin performing the action, not the target.
func (p *EventPublisher) PublishImpersonationStarted(ctx context.Context, event domain.ImpersonationStartedEvent) error {
	return p.publish(ctx, event.EventID, TopicImpersonationStarted, event.OriginalPrincipalID, event.StartedAt, event)
}

// PublishImpersonationStopped publishes cpiam.impersonation.stopped events.
func (p *EventPublisher) PublishImpersonationStopped(ctx context.Context, event domain.ImpersonationStoppedEvent) error {
	return p.publish(ctx, event.EventID, TopicImpersonationStopped, event.OriginalPrincipalID, event.StoppedAt, event)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
