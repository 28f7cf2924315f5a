package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
	"github.com/sitebeam/construction-platform-iam/internal/repository"
)

func TestProfileRepository_GetByPrincipal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewProfileRepository(mock)

	createdAt := time.Now().UTC()
	companyID := "company-9"

	rows := pgxmock.NewRows([]string{
		"principal_id", "email", "first_name", "last_name", "role", "seniority", "company_id", "department", "is_active", "overrides", "version", "password_hash", "password_algo", "created_at", "updated_at",
	}).AddRow(
		"principal-1", "pm@example.com", "Ada", "Mason", "project_manager", "senior", companyID, nil, true, []byte(`{"projects.delete":"allow"}`), int64(3), "hash", "argon2id", createdAt, createdAt,
	)

	mock.ExpectQuery(`SELECT .*FROM cpiam\.profiles`).WithArgs("principal-1").WillReturnRows(rows)

	record, err := repo.GetByPrincipal(context.Background(), "principal-1")
	if err != nil {
		t.Fatalf("GetByPrincipal returned error: %v", err)
	}
	if record.Role != domain.RoleProjectManager || record.Seniority != domain.SenioritySenior {
		t.Fatalf("unexpected role/seniority: %s/%s", record.Role, record.Seniority)
	}
	if record.CompanyID == nil || *record.CompanyID != companyID {
		t.Fatalf("expected company id populated")
	}
	if effect, ok := record.HasOverride("projects.delete"); !ok || effect != domain.OverrideAllow {
		t.Fatalf("expected allow override for projects.delete, got %v %v", effect, ok)
	}
	if record.Version != 3 {
		t.Fatalf("expected version 3, got %d", record.Version)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProfileRepository_GetByPrincipalNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewProfileRepository(mock)

	rows := pgxmock.NewRows([]string{
		"principal_id", "email", "first_name", "last_name", "role", "seniority", "company_id", "department", "is_active", "overrides", "version", "password_hash", "password_algo", "created_at", "updated_at",
	})
	mock.ExpectQuery(`SELECT .*FROM cpiam\.profiles`).WithArgs("missing").WillReturnRows(rows)

	if _, err := repo.GetByPrincipal(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProfileRepository_SetRoleBumpsVersion(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewProfileRepository(mock)

	rows := pgxmock.NewRows([]string{"version"}).AddRow(int64(4))
	mock.ExpectQuery(`UPDATE cpiam\.profiles`).
		WithArgs("principal-2", "management", "regular", pgxmock.AnyArg()).
		WillReturnRows(rows)

	version, err := repo.SetRole(context.Background(), "principal-2", domain.RoleManagement, domain.SeniorityRegular)
	if err != nil {
		t.Fatalf("SetRole returned error: %v", err)
	}
	if version != 4 {
		t.Fatalf("expected version 4, got %d", version)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestProfileRepository_SetActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewProfileRepository(mock)

	mock.ExpectExec(`UPDATE cpiam\.profiles`).
		WithArgs("principal-3", false, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.SetActive(context.Background(), "principal-3", false); err != nil {
		t.Fatalf("SetActive returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
