package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitebeam/construction-platform-iam/internal/core/domain"
	"github.com/sitebeam/construction-platform-iam/internal/core/port"
	"github.com/sitebeam/construction-platform-iam/internal/repository"
)

var profileColumns = []string{
	"principal_id",
	"email",
	"first_name",
	"last_name",
	"role",
	"seniority",
	"company_id",
	"department",
	"is_active",
	"overrides",
	"version",
	"password_hash",
	"password_algo",
	"created_at",
	"updated_at",
}

// ProfileRepository implements port.ProfileRepository backed by PostgreSQL.
type ProfileRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewProfileRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewProfileRepository(exec pgExecutor) *ProfileRepository {
	repo := &ProfileRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *ProfileRepository) WithTx(tx pgx.Tx) *ProfileRepository {
	if tx == nil {
		return r
	}
	return &ProfileRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// GetByPrincipal fetches a profile record by principal identifier.
func (r *ProfileRepository) GetByPrincipal(ctx context.Context, principalID string) (*domain.ProfileRecord, error) {
	return r.getOne(ctx, squirrel.Eq{"principal_id": principalID})
}

// GetByEmail fetches a profile record by email.
func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*domain.ProfileRecord, error) {
	return r.getOne(ctx, squirrel.Eq{"email": email})
}

func (r *ProfileRepository) getOne(ctx context.Context, where squirrel.Eq) (*domain.ProfileRecord, error) {
	stmt, args, err := r.builder.
		Select(profileColumns...).
		From("cpiam.profiles").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select profile sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)
	record, err := scanProfile(row)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	return record, nil
}

// Create persists a new profile record. Version starts at 1.
func (r *ProfileRepository) Create(ctx context.Context, record domain.ProfileRecord) error {
	overrides, err := marshalOverrides(record.Overrides)
	if err != nil {
		return err
	}

	version := record.Version
	if version <= 0 {
		version = 1
	}

	stmt, args, err := r.builder.Insert("cpiam.profiles").
		Columns(profileColumns...).
		Values(
			record.PrincipalID,
			record.Email,
			record.FirstName,
			record.LastName,
			string(record.Role),
			string(record.Seniority),
			optionalString(record.CompanyID),
			optionalString(record.Department),
			record.IsActive,
			overrides,
			version,
			record.PasswordHash,
			record.PasswordAlgo,
			record.CreatedAt,
			record.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert profile sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}

	return nil
}

// UpdateContact changes the principal-editable contact fields.
func (r *ProfileRepository) UpdateContact(ctx context.Context, principalID, firstName, lastName string) error {
	stmt, args, err := r.builder.Update("cpiam.profiles").
		Set("first_name", firstName).
		Set("last_name", lastName).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"principal_id": principalID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update contact sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update profile contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetRole changes role and seniority and bumps the profile version atomically.
func (r *ProfileRepository) SetRole(ctx context.Context, principalID string, role domain.Role, seniority domain.Seniority) (int64, error) {
	stmt := `
        UPDATE cpiam.profiles
           SET role = $2,
               seniority = $3,
               version = version + 1,
               updated_at = $4
         WHERE principal_id = $1
     RETURNING version
    `

	var version int64
	if err := r.exec.QueryRow(ctx, stmt, principalID, string(role), string(seniority), time.Now().UTC()).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("set profile role: %w", err)
	}

	return version, nil
}

// SetActive toggles the profile's active flag and bumps the version.
func (r *ProfileRepository) SetActive(ctx context.Context, principalID string, active bool) error {
	stmt := `
        UPDATE cpiam.profiles
           SET is_active = $2,
               version = version + 1,
               updated_at = $3
         WHERE principal_id = $1
    `

	tag, err := r.exec.Exec(ctx, stmt, principalID, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set profile active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetOverrides replaces the explicit permission overrides and bumps the version.
func (r *ProfileRepository) SetOverrides(ctx context.Context, principalID string, overrides map[string]domain.OverrideEffect) error {
	payload, err := marshalOverrides(overrides)
	if err != nil {
		return err
	}

	stmt := `
        UPDATE cpiam.profiles
           SET overrides = $2,
               version = version + 1,
               updated_at = $3
         WHERE principal_id = $1
    `

	tag, err := r.exec.Exec(ctx, stmt, principalID, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set profile overrides: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func scanProfile(row pgx.Row) (*domain.ProfileRecord, error) {
	var (
		record     domain.ProfileRecord
		role       string
		seniority  string
		companyID  sql.NullString
		department sql.NullString
		overrides  []byte
	)

	if err := row.Scan(
		&record.PrincipalID,
		&record.Email,
		&record.FirstName,
		&record.LastName,
		&role,
		&seniority,
		&companyID,
		&department,
		&record.IsActive,
		&overrides,
		&record.Version,
		&record.PasswordHash,
		&record.PasswordAlgo,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	record.Role = domain.Role(role)
	record.Seniority = domain.Seniority(seniority)
	record.CompanyID = nullableStringPtr(companyID)
	record.Department = nullableStringPtr(department)

	if len(overrides) > 0 {
		parsed := make(map[string]domain.OverrideEffect)
		if err := json.Unmarshal(overrides, &parsed); err != nil {
			return nil, fmt.Errorf("decode profile overrides: %w", err)
		}
		if len(parsed) > 0 {
			record.Overrides = parsed
		}
	}

	return &record, nil
}

func marshalOverrides(overrides map[string]domain.OverrideEffect) ([]byte, error) {
	if len(overrides) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(overrides)
	if err != nil {
		return nil, fmt.Errorf("marshal profile overrides: %w", err)
	}
	return payload, nil
}

var _ port.ProfileRepository = (*ProfileRepository)(nil)
