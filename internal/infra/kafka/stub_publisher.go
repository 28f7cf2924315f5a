package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
	"github.com/sitebeam/construction-platform-iam/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, principalID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("principal_id", principalID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishProfileRoleChanged logs profile role change events.
func (p *StubPublisher) PublishProfileRoleChanged(_ context.Context, event domain.ProfileRoleChangedEvent) error {
	p.logEvent(TopicProfileRoleChanged, event.PrincipalID, event.ChangedAt, event)
	return nil
}

// PublishProfileDeactivated logs profile deactivation events.
func (p *StubPublisher) PublishProfileDeactivated(_ context.Context, event domain.ProfileDeactivatedEvent) error {
	p.logEvent(TopicProfileDeactivated, event.PrincipalID, event.DeactivatedAt, event)
	return nil
}

// PublishSessionRevoked logs session revocation events.
func (p *StubPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	p.logEvent(TopicSessionRevoked, event.PrincipalID, event.RevokedAt, event)
	return nil
}

// PublishImpersonationStarted logs impersonation start events.
func (p *StubPublisher) PublishImpersonationStarted(_ context.Context, event domain.ImpersonationStartedEvent) error {
	p.logEvent(TopicImpersonationStarted, event.OriginalPrincipalID, event.StartedAt, event)
	return nil
}

// PublishImpersonationStopped logs impersonation stop events.
func (p *StubPublisher) PublishImpersonationStopped(_ context.Context, event domain.ImpersonationStoppedEvent) error {
	p.logEvent(TopicImpersonationStopped, event.OriginalPrincipalID, event.StoppedAt, event)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
