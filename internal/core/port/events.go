package port

import (
	"context"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishProfileRoleChanged(ctx context.Context, event domain.ProfileRoleChangedEvent) error
	PublishProfileDeactivated(ctx context.Context, event domain.ProfileDeactivatedEvent) error
	PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error
	PublishImpersonationStarted(ctx context.Context, event domain.ImpersonationStartedEvent) error
	PublishImpersonationStopped(ctx context.Context, event domain.ImpersonationStoppedEvent) error
}
