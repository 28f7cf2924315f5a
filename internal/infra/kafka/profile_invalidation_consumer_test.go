package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
)

type stubProfileCache struct {
	deleted []string
}

func (s *stubProfileCache) Get(context.Context, string) (*domain.Profile, error) {
	return nil, nil
}

func (s *stubProfileCache) Set(context.Context, domain.Profile, time.Duration) error {
	return nil
}

func (s *stubProfileCache) Delete(_ context.Context, principalID string) error {
	s.deleted = append(s.deleted, principalID)
	return nil
}

func TestProfileInvalidationConsumerHandleEvent(t *testing.T) {
	cache := &stubProfileCache{}
	consumer := NewProfileInvalidationConsumer(cache, zaptest.NewLogger(t))

	if err := consumer.HandleEvent(context.Background(), "principal-123", TopicProfileRoleChanged); err != nil {
		t.Fatalf("HandleEvent returned error: %v", err)
	}

	if len(cache.deleted) != 1 || cache.deleted[0] != "principal-123" {
		t.Fatalf("expected principal-123 invalidated, got %v", cache.deleted)
	}
}

func TestProfileInvalidationConsumerHandleMessage(t *testing.T) {
	cache := &stubProfileCache{}
	consumer := NewProfileInvalidationConsumer(cache, zaptest.NewLogger(t))

	envelope := map[string]any{
		"event_id":     "evt-1",
		"event_type":   TopicProfileDeactivated,
		"principal_id": "principal-456",
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	msg := &sarama.ConsumerMessage{Value: value}
	if err := consumer.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleMessage returned error: %v", err)
	}

	if len(cache.deleted) != 1 || cache.deleted[0] != "principal-456" {
		t.Fatalf("expected principal-456 invalidated, got %v", cache.deleted)
	}
}

func TestProfileInvalidationConsumerIgnoresEmptyPrincipal(t *testing.T) {
	cache := &stubProfileCache{}
	consumer := NewProfileInvalidationConsumer(cache, zaptest.NewLogger(t))

	if err := consumer.HandleEvent(context.Background(), "", TopicProfileRoleChanged); err != nil {
		t.Fatalf("HandleEvent returned error: %v", err)
	}

	if len(cache.deleted) != 0 {
		t.Fatalf("expected no invalidation, got %v", cache.deleted)
	}
}
