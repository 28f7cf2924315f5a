package postgres

import (
	"context"
	"database/sql"
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

var sessionColumns = []string{
	"id",
	"principal_id",
	"refresh_token_id",
	"device_label",
	"ip_first",
	"ip_last",
	"user_agent",
	"created_at",
	"last_seen",
	"expires_at",
	"revoked_at",
	"revoke_reason",
}

// SessionRepository implements port.SessionRepository backed by PostgreSQL.
type SessionRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	repo := &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *SessionRepository) WithTx(tx pgx.Tx) *SessionRepository {
	if tx == nil {
		return r
	}
	return &SessionRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create persists a new session.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	stmt, args, err := r.builder.Insert("cpiam.sessions").
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.PrincipalID,
			optionalString(session.RefreshTokenID),
			optionalString(session.DeviceLabel),
			optionalString(session.IPFirst),
			optionalString(session.IPLast),
			optionalString(session.UserAgent),
			session.CreatedAt,
			session.LastSeen,
			session.ExpiresAt,
			optionalTime(session.RevokedAt),
			optionalString(session.RevokeReason),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// Get fetches a session by its identifier.
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From("cpiam.sessions").
		Where(squirrel.Eq{"id": sessionID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)
	session, err := scanSession(row)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return session, nil
}

// ListByPrincipal retrieves all sessions owned by the principal ordered by last activity.
func (r *SessionRepository) ListByPrincipal(ctx context.Context, principalID string) ([]domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From("cpiam.sessions").
		Where(squirrel.Eq{"principal_id": principalID}).
		OrderBy("last_seen DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]domain.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// Touch refreshes last_seen, ip metadata, and user agent when activity is detected.
func (r *SessionRepository) Touch(ctx context.Context, sessionID string, ip *string, userAgent *string) error {
	now := time.Now().UTC()
	ipValue := optionalString(ip)
	userAgentValue := optionalString(userAgent)

	stmt := `
        UPDATE cpiam.sessions
           SET last_seen = $2,
               ip_last = CASE WHEN $3::inet IS NULL THEN ip_last ELSE $3::inet END,
               ip_first = CASE WHEN $3::inet IS NULL THEN ip_first ELSE COALESCE(ip_first, $3::inet) END,
               user_agent = CASE WHEN $4::text IS NULL OR $4::text = '' THEN user_agent ELSE $4::text END
         WHERE id = $1
    `

	tag, err := r.exec.Exec(ctx, stmt, sessionID, now, ipValue, userAgentValue)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Revoke marks the session as revoked; already-revoked sessions are untouched.
func (r *SessionRepository) Revoke(ctx context.Context, sessionID string, reason string) error {
	normalized := normalizeReason(reason, "manual_revoke")

	stmt := `
        UPDATE cpiam.sessions
           SET revoked_at = $2,
               revoke_reason = $3
         WHERE id = $1
           AND revoked_at IS NULL
    `

	tag, err := r.exec.Exec(ctx, stmt, sessionID, time.Now().UTC(), normalized)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RevokeAllForPrincipal revokes every active session for the supplied principal.
func (r *SessionRepository) RevokeAllForPrincipal(ctx context.Context, principalID string, reason string) (int, error) {
	normalized := normalizeReason(reason, "global_signout")

	stmt := `
        UPDATE cpiam.sessions
           SET revoked_at = $2,
               revoke_reason = $3
         WHERE principal_id = $1
           AND revoked_at IS NULL
    `

	tag, err := r.exec.Exec(ctx, stmt, principalID, time.Now().UTC(), normalized)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions for principal: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		session        domain.Session
		refreshTokenID sql.NullString
		deviceLabel    sql.NullString
		ipFirst        sql.NullString
		ipLast         sql.NullString
		userAgent      sql.NullString
		revokedAt      sql.NullTime
		revokeReason   sql.NullString
	)

	if err := row.Scan(
		&session.ID,
		&session.PrincipalID,
		&refreshTokenID,
		&deviceLabel,
		&ipFirst,
		&ipLast,
		&userAgent,
		&session.CreatedAt,
		&session.LastSeen,
		&session.ExpiresAt,
		&revokedAt,
		&revokeReason,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	session.RefreshTokenID = nullableStringPtr(refreshTokenID)
	session.DeviceLabel = nullableStringPtr(deviceLabel)
	session.IPFirst = nullableStringPtr(ipFirst)
	session.IPLast = nullableStringPtr(ipLast)
	session.UserAgent = nullableStringPtr(userAgent)
	session.RevokedAt = nullableTimePtr(revokedAt)
	session.RevokeReason = nullableStringPtr(revokeReason)

	return &session, nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
