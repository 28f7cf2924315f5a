package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/sitebeam/construction-platform-iam/internal/authz"
	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
	"github.com/sitebeam/construction-platform-iam/internal/repository"
)

type adminProfileRepo struct {
	records map[string]domain.ProfileRecord
}

func newAdminProfileRepo(records ...domain.ProfileRecord) *adminProfileRepo {
	repo := &adminProfileRepo{records: make(map[string]domain.ProfileRecord)}
	for _, record := range records {
		repo.records[record.PrincipalID] = record
	}
	return repo
}

func (r *adminProfileRepo) GetByPrincipal(_ context.Context, principalID string) (*domain.ProfileRecord, error) {
	record, ok := r.records[principalID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := record
	return &copied, nil
}

func (r *adminProfileRepo) GetByEmail(_ context.Context, email string) (*domain.ProfileRecord, error) {
	for _, record := range r.records {
		if record.Email == email {
			copied := record
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *adminProfileRepo) Create(_ context.Context, record domain.ProfileRecord) error {
	r.records[record.PrincipalID] = record
	return nil
}

func (r *adminProfileRepo) UpdateContact(_ context.Context, principalID, firstName, lastName string) error {
	record, ok := r.records[principalID]
	if !ok {
		return repository.ErrNotFound
	}
	record.FirstName = firstName
	record.LastName = lastName
	r.records[principalID] = record
	return nil
}

func (r *adminProfileRepo) SetRole(_ context.Context, principalID string, role domain.Role, seniority domain.Seniority) (int64, error) {
	record, ok := r.records[principalID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	record.Role = role
	record.Seniority = seniority
	record.Version++
	r.records[principalID] = record
	return record.Version, nil
}

func (r *adminProfileRepo) SetActive(_ context.Context, principalID string, active bool) error {
	record, ok := r.records[principalID]
	if !ok {
		return repository.ErrNotFound
	}
	record.IsActive = active
	record.Version++
	r.records[principalID] = record
	return nil
}

func (r *adminProfileRepo) SetOverrides(_ context.Context, principalID string, overrides map[string]domain.OverrideEffect) error {
	record, ok := r.records[principalID]
	if !ok {
		return repository.ErrNotFound
	}
	record.Overrides = overrides
	record.Version++
	r.records[principalID] = record
	return nil
}

type adminSessionRepo struct {
	revokedPrincipals []string
}

func (r *adminSessionRepo) Create(context.Context, domain.Session) error {
	return errors.New("unexpected call: Create")
}

func (r *adminSessionRepo) Get(context.Context, string) (*domain.Session, error) {
	return nil, errors.New("unexpected call: Get")
}

func (r *adminSessionRepo) ListByPrincipal(context.Context, string) ([]domain.Session, error) {
	return nil, errors.New("unexpected call: ListByPrincipal")
}

func (r *adminSessionRepo) Touch(context.Context, string, *string, *string) error {
	return errors.New("unexpected call: Touch")
}

func (r *adminSessionRepo) Revoke(context.Context, string, string) error {
	return errors.New("unexpected call: Revoke")
}

func (r *adminSessionRepo) RevokeAllForPrincipal(_ context.Context, principalID string, _ string) (int, error) {
	r.revokedPrincipals = append(r.revokedPrincipals, principalID)
	return 2, nil
}

func adminFixture(t *testing.T) (*ProfileAdminService, *adminProfileRepo, *adminSessionRepo, *memoryProfileCache, *recordingEventPublisher) {
	t.Helper()
	repo := newAdminProfileRepo(
		domain.ProfileRecord{Profile: domain.Profile{
			PrincipalID: "admin-1",
			Email:       "admin@example.com",
			Role:        domain.RoleAdmin,
			IsActive:    true,
			Version:     1,
		}},
		domain.ProfileRecord{Profile: domain.Profile{
			PrincipalID: "pm-1",
			Email:       "pm@example.com",
			Role:        domain.RoleProjectManager,
			Seniority:   domain.SeniorityRegular,
			IsActive:    true,
			Version:     4,
		}},
		domain.ProfileRecord{Profile: domain.Profile{
			PrincipalID: "client-1",
			Email:       "client@example.com",
			Role:        domain.RoleClient,
			IsActive:    true,
			Version:     1,
		}},
	)
	cache := newMemoryProfileCache()
	resolver := NewProfileResolver(repo, cache, 30*time.Minute, zaptest.NewLogger(t))
	sessions := &adminSessionRepo{}
	events := &recordingEventPublisher{}
	service := NewProfileAdminService(repo, sessions, resolver, authz.NewEvaluator(nil), events, zaptest.NewLogger(t))
	return service, repo, sessions, cache, events
}

func TestSetRoleRequiresManagePermission(t *testing.T) {
	service, repo, _, _, events := adminFixture(t)

	err := service.SetRole(context.Background(), "client-1", "pm-1", domain.RoleTechnicalLead, domain.SeniorityRegular)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if repo.records["pm-1"].Role != domain.RoleProjectManager {
		t.Fatal("denied role change must not mutate the profile")
	}
	if len(events.roleChanged) != 0 {
		t.Fatal("denied role change must not publish an event")
	}
}

func TestSetRolePublishesChangeAndInvalidatesCache(t *testing.T) {
	service, repo, _, cache, events := adminFixture(t)
	base := time.Date(2026, time.March, 4, 11, 0, 0, 0, time.UTC)
	service.WithClock(func() time.Time { return base })
	ctx := context.Background()

	// Warm the cache so the invalidation is observable.
	if _, err := service.resolver.GetProfile(ctx, "pm-1"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	if err := service.SetRole(ctx, "admin-1", "pm-1", domain.RolePurchaseManager, domain.SeniorityRegular); err != nil {
		t.Fatalf("SetRole returned error: %v", err)
	}

	if repo.records["pm-1"].Role != domain.RolePurchaseManager {
		t.Fatalf("role not persisted: %q", repo.records["pm-1"].Role)
	}
	if _, cached := cache.entries["pm-1"]; cached {
		t.Fatal("expected cache entry dropped after role change")
	}

	if len(events.roleChanged) != 1 {
		t.Fatalf("expected one role change event, got %d", len(events.roleChanged))
	}
	event := events.roleChanged[0]
	if event.OldRole != domain.RoleProjectManager || event.NewRole != domain.RolePurchaseManager {
		t.Fatalf("unexpected role transition %q -> %q", event.OldRole, event.NewRole)
	}
	if event.NewVersion != 5 || event.ChangedBy != "admin-1" {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestDeactivateRevokesSessions(t *testing.T) {
	service, repo, sessions, _, events := adminFixture(t)

	if err := service.Deactivate(context.Background(), "admin-1", "pm-1", "left the company"); err != nil {
		t.Fatalf("Deactivate returned error: %v", err)
	}

	if repo.records["pm-1"].IsActive {
		t.Fatal("profile still active after deactivation")
	}
	if len(sessions.revokedPrincipals) != 1 || sessions.revokedPrincipals[0] != "pm-1" {
		t.Fatalf("expected sessions revoked for pm-1, got %v", sessions.revokedPrincipals)
	}
	if len(events.deactivated) != 1 || events.deactivated[0].Reason != "left the company" {
		t.Fatalf("unexpected deactivation events %+v", events.deactivated)
	}
}

func TestSetOverridesRejectsUnknownAction(t *testing.T) {
	service, repo, _, _, _ := adminFixture(t)

	err := service.SetOverrides(context.Background(), "admin-1", "pm-1", map[string]domain.OverrideEffect{
		"projects.read.al": domain.OverrideAllow,
	})
	if err == nil || !strings.Contains(err.Error(), "unknown action") {
		t.Fatalf("expected unknown action rejection, got %v", err)
	}
	if repo.records["pm-1"].Overrides != nil {
		t.Fatal("invalid overrides must not be persisted")
	}

	err = service.SetOverrides(context.Background(), "admin-1", "pm-1", map[string]domain.OverrideEffect{
		string(authz.ActionScopePricesRead): domain.OverrideDeny,
	})
	if err != nil {
		t.Fatalf("valid overrides rejected: %v", err)
	}
	if repo.records["pm-1"].Overrides[string(authz.ActionScopePricesRead)] != domain.OverrideDeny {
		t.Fatal("override not persisted")
	}
}

func TestCreateProfileValidatesPasswordAndEmail(t *testing.T) {
	service, repo, _, _, _ := adminFixture(t)
	ctx := context.Background()

	if _, err := service.CreateProfile(ctx, "admin-1", CreateProfileInput{
		Email:    "pm@example.com",
		Password: "correct-horse-battery-staple-42",
		Role:     domain.RoleProjectManager,
	}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate email: expected ErrEmailTaken, got %v", err)
	}

	if _, err := service.CreateProfile(ctx, "admin-1", CreateProfileInput{
		Email:    "new@example.com",
		Password: "short1A",
		Role:     domain.RoleClient,
	}); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("weak password: expected ErrWeakPassword, got %v", err)
	}

	profile, err := service.CreateProfile(ctx, "admin-1", CreateProfileInput{
		Email:     "New@Example.com",
		Password:  "correct-horse-battery-staple-42",
		FirstName: "Noor",
		LastName:  "Haddad",
		Role:      domain.RoleTechnicalLead,
	})
	if err != nil {
		t.Fatalf("CreateProfile returned error: %v", err)
	}
	if profile.Email != "new@example.com" {
		t.Fatalf("expected normalized email, got %q", profile.Email)
	}
	if profile.Version != 1 || !profile.IsActive {
		t.Fatalf("unexpected new profile %+v", profile)
	}

	stored, ok := repo.records[profile.PrincipalID]
	if !ok {
		t.Fatal("created profile not persisted")
	}
	if stored.PasswordHash == "" || stored.PasswordHash == "correct-horse-battery-staple-42" {
		t.Fatal("password must be stored hashed")
	}
}

func TestCreateProfileRequiresManager(t *testing.T) {
	service, _, _, _, _ := adminFixture(t)

	if _, err := service.CreateProfile(context.Background(), "client-1", CreateProfileInput{
		Email:    "new@example.com",
		Password: "correct-horse-battery-staple-42",
		Role:     domain.RoleClient,
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
