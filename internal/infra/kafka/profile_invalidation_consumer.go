package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/sitebeam/construction-platform-iam/internal/core/port"
)

// ProfileInvalidationConsumer drops cached profiles when role change or
// deactivation events are observed on the bus. Without it, other service
// instances would keep serving the stale profile until the cache TTL expires.
type ProfileInvalidationConsumer struct {
	cache  port.ProfileCache
	logger *zap.Logger
}

// NewProfileInvalidationConsumer constructs a consumer that invalidates the profile cache.
func NewProfileInvalidationConsumer(cache port.ProfileCache, logger *zap.Logger) *ProfileInvalidationConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileInvalidationConsumer{cache: cache, logger: logger}
}

type invalidationEnvelope struct {
	EventID     string `json:"event_id"`
	EventType   string `json:"event_type"`
	PrincipalID string `json:"principal_id"`
}

// HandleMessage decodes a Kafka message and invalidates the affected profile.
func (c *ProfileInvalidationConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}

	var envelope invalidationEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return fmt.Errorf("decode invalidation event: %w", err)
	}

	return c.HandleEvent(ctx, envelope.PrincipalID, envelope.EventType)
}

// HandleEvent removes the principal's profile from the cache.
func (c *ProfileInvalidationConsumer) HandleEvent(ctx context.Context, principalID, eventType string) error {
	if c.cache == nil || principalID == "" {
		return nil
	}

	if err := c.cache.Delete(ctx, principalID); err != nil {
		c.logger.Warn("failed to invalidate cached profile",
			zap.String("principal_id", principalID),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return fmt.Errorf("invalidate profile cache: %w", err)
	}

	c.logger.Debug("cached profile invalidated",
		zap.String("principal_id", principalID),
		zap.String("event_type", eventType),
	)
	return nil
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *ProfileInvalidationConsumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *ProfileInvalidationConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim implements sarama.ConsumerGroupHandler.
func (c *ProfileInvalidationConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := c.HandleMessage(session.Context(), msg); err != nil {
			c.logger.Warn("profile invalidation message dropped", zap.Error(err))
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

var _ sarama.ConsumerGroupHandler = (*ProfileInvalidationConsumer)(nil)
