package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/sitebeam/construction-platform-iam/internal/authz"
	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
	"github.com/sitebeam/construction-platform-iam/internal/repository"
)

type memImpersonationStore struct {
	overlays map[string]domain.ImpersonationContext
	ttls     map[string]time.Duration
}

func newMemImpersonationStore() *memImpersonationStore {
	return &memImpersonationStore{
		overlays: make(map[string]domain.ImpersonationContext),
		ttls:     make(map[string]time.Duration),
	}
}

func (s *memImpersonationStore) Get(_ context.Context, sessionID string) (*domain.ImpersonationContext, error) {
	overlay, ok := s.overlays[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := overlay
	return &copied, nil
}

func (s *memImpersonationStore) Put(_ context.Context, overlay domain.ImpersonationContext, ttl time.Duration) error {
	s.overlays[overlay.SessionID] = overlay
	s.ttls[overlay.SessionID] = ttl
	return nil
}

func (s *memImpersonationStore) Delete(_ context.Context, sessionID string) error {
	delete(s.overlays, sessionID)
	return nil
}

type recordingEventPublisher struct {
	roleChanged   []domain.ProfileRoleChangedEvent
	deactivated   []domain.ProfileDeactivatedEvent
	sessionEvents []domain.SessionRevokedEvent
	started       []domain.ImpersonationStartedEvent
	stopped       []domain.ImpersonationStoppedEvent
}

func (p *recordingEventPublisher) PublishProfileRoleChanged(_ context.Context, event domain.ProfileRoleChangedEvent) error {
	p.roleChanged = append(p.roleChanged, event)
	return nil
}

func (p *recordingEventPublisher) PublishProfileDeactivated(_ context.Context, event domain.ProfileDeactivatedEvent) error {
	p.deactivated = append(p.deactivated, event)
	return nil
}

func (p *recordingEventPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	p.sessionEvents = append(p.sessionEvents, event)
	return nil
}

func (p *recordingEventPublisher) PublishImpersonationStarted(_ context.Context, event domain.ImpersonationStartedEvent) error {
	p.started = append(p.started, event)
	return nil
}

func (p *recordingEventPublisher) PublishImpersonationStopped(_ context.Context, event domain.ImpersonationStoppedEvent) error {
	p.stopped = append(p.stopped, event)
	return nil
}

func impersonationFixture(t *testing.T) (*ImpersonationService, *memImpersonationStore, *recordingEventPublisher) {
	t.Helper()
	repo := &countingProfileRepo{records: map[string]domain.ProfileRecord{
		"admin-1":  resolverProfile("admin-1", domain.RoleAdmin),
		"client-1": resolverProfile("client-1", domain.RoleClient),
		"pm-1":     resolverProfile("pm-1", domain.RoleProjectManager),
	}}
	resolver := NewProfileResolver(repo, nil, 0, zaptest.NewLogger(t))
	store := newMemImpersonationStore()
	events := &recordingEventPublisher{}
	service := NewImpersonationService(store, resolver, authz.NewEvaluator(nil), events, time.Hour, zaptest.NewLogger(t))
	return service, store, events
}

func TestImpersonationRoundTrip(t *testing.T) {
	service, store, events := impersonationFixture(t)
	base := time.Date(2026, time.March, 3, 14, 0, 0, 0, time.UTC)
	service.WithClock(func() time.Time { return base })
	ctx := context.Background()

	overlay, err := service.Start(ctx, "session-1", "admin-1", "client-1")
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if overlay.OriginalPrincipalID != "admin-1" || overlay.TargetPrincipalID != "client-1" {
		t.Fatalf("unexpected overlay %+v", overlay)
	}
	if ttl := store.ttls["session-1"]; ttl != time.Hour {
		t.Fatalf("expected 1h overlay ttl, got %v", ttl)
	}

	// Permission checks use the target; the audit identity stays the admin.
	profile, auditID, err := service.EffectiveProfile(ctx, "session-1", "admin-1")
	if err != nil {
		t.Fatalf("EffectiveProfile returned error: %v", err)
	}
	if profile.PrincipalID != "client-1" {
		t.Fatalf("expected target profile, got %q", profile.PrincipalID)
	}
	if auditID != "admin-1" {
		t.Fatalf("expected audit identity admin-1, got %q", auditID)
	}

	service.WithClock(func() time.Time { return base.Add(17 * time.Minute) })
	if err := service.Stop(ctx, "session-1"); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}

	active, err := service.Active(ctx, "session-1")
	if err != nil {
		t.Fatalf("Active returned error: %v", err)
	}
	if active != nil {
		t.Fatalf("expected no overlay after stop, got %+v", active)
	}

	if len(events.started) != 1 || len(events.stopped) != 1 {
		t.Fatalf("expected one start and one stop event, got %d/%d", len(events.started), len(events.stopped))
	}
	if events.started[0].OriginalPrincipalID != "admin-1" {
		t.Fatalf("start event audits %q, want admin-1", events.started[0].OriginalPrincipalID)
	}
	if events.stopped[0].OriginalPrincipalID != "admin-1" || events.stopped[0].Duration != "17m0s" {
		t.Fatalf("unexpected stop event %+v", events.stopped[0])
	}
}

func TestImpersonationRequiresPrivilege(t *testing.T) {
	service, _, events := impersonationFixture(t)

	if _, err := service.Start(context.Background(), "session-1", "client-1", "pm-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if len(events.started) != 0 {
		t.Fatal("denied start must not publish an event")
	}
}

func TestImpersonationUnknownTarget(t *testing.T) {
	service, _, _ := impersonationFixture(t)

	if _, err := service.Start(context.Background(), "session-1", "admin-1", "ghost"); !errors.Is(err, ErrTargetNotFound) {
		t.Fatalf("expected ErrTargetNotFound, got %v", err)
	}
}

func TestImpersonationStopWithoutOverlay(t *testing.T) {
	service, _, _ := impersonationFixture(t)

	if err := service.Stop(context.Background(), "session-1"); !errors.Is(err, ErrNotImpersonating) {
		t.Fatalf("expected ErrNotImpersonating, got %v", err)
	}
}

func TestImpersonationStartWhileImpersonatingIsForbidden(t *testing.T) {
	service, store, _ := impersonationFixture(t)
	ctx := context.Background()

	if _, err := service.Start(ctx, "session-1", "admin-1", "client-1"); err != nil {
		t.Fatalf("first Start returned error: %v", err)
	}

	// The effective profile is now the impersonated client, which does not
	// hold the impersonate grant, so target switching needs a Stop first.
	if _, err := service.Start(ctx, "session-1", "admin-1", "pm-1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden while impersonating, got %v", err)
	}
	if overlay := store.overlays["session-1"]; overlay.TargetPrincipalID != "client-1" {
		t.Fatalf("overlay must be unchanged, got %+v", overlay)
	}

	if err := service.Stop(ctx, "session-1"); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}

	overlay, err := service.Start(ctx, "session-1", "admin-1", "pm-1")
	if err != nil {
		t.Fatalf("Start after Stop returned error: %v", err)
	}
	if overlay.OriginalPrincipalID != "admin-1" || overlay.TargetPrincipalID != "pm-1" {
		t.Fatalf("unexpected overlay %+v", overlay)
	}
}

func TestEffectiveProfileWithoutOverlay(t *testing.T) {
	service, _, _ := impersonationFixture(t)

	profile, auditID, err := service.EffectiveProfile(context.Background(), "session-9", "pm-1")
	if err != nil {
		t.Fatalf("EffectiveProfile returned error: %v", err)
	}
	if profile.PrincipalID != "pm-1" || auditID != "pm-1" {
		t.Fatalf("expected token principal passthrough, got %q/%q", profile.PrincipalID, auditID)
	}
}

func TestAuthorizationCheckUsesEffectiveProfile(t *testing.T) {
	service, _, _ := impersonationFixture(t)
	authzService := NewAuthorizationService(service, authz.NewEvaluator(nil), zaptest.NewLogger(t))
	ctx := context.Background()

	// Admins manage users; clients do not.
	decision, err := authzService.Check(ctx, "session-1", "admin-1", string(authz.ActionUsersManage), nil)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if !decision.Allow {
		t.Fatalf("admin should manage users: %+v", decision)
	}

	if _, err := service.Start(ctx, "session-1", "admin-1", "client-1"); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	decision, err = authzService.Check(ctx, "session-1", "admin-1", string(authz.ActionUsersManage), nil)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if decision.Allow {
		t.Fatalf("impersonated client must lose admin grants: %+v", decision)
	}
}

func TestAuthorizationCheckUnknownActionDenies(t *testing.T) {
	service, _, _ := impersonationFixture(t)
	authzService := NewAuthorizationService(service, authz.NewEvaluator(nil), zaptest.NewLogger(t))

	decision, err := authzService.Check(context.Background(), "session-1", "admin-1", "projects.destroy.everything", nil)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if decision.Allow {
		t.Fatalf("unknown action must deny: %+v", decision)
	}
}
