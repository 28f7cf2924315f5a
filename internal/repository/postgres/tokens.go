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

var refreshTokenColumns = []string{
	"id",
	"session_id",
	"token_hash",
	"created_at",
	"expires_at",
	"revoked_at",
}

// RefreshTokenRepository implements port.RefreshTokenRepository backed by PostgreSQL.
type RefreshTokenRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRefreshTokenRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewRefreshTokenRepository(exec pgExecutor) *RefreshTokenRepository {
	repo := &RefreshTokenRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *RefreshTokenRepository) WithTx(tx pgx.Tx) *RefreshTokenRepository {
	if tx == nil {
		return r
	}
	return &RefreshTokenRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create persists a refresh token. Only the hash is stored.
func (r *RefreshTokenRepository) Create(ctx context.Context, token domain.RefreshToken) error {
	stmt, args, err := r.builder.Insert("cpiam.refresh_tokens").
		Columns(refreshTokenColumns...).
		Values(
			token.ID,
			token.SessionID,
			token.TokenHash,
			token.CreatedAt,
			token.ExpiresAt,
			optionalTime(token.RevokedAt),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert refresh token sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// GetByHash fetches a refresh token by its hash.
func (r *RefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	stmt, args, err := r.builder.
		Select(refreshTokenColumns...).
		From("cpiam.refresh_tokens").
		Where(squirrel.Eq{"token_hash": tokenHash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select refresh token sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		token     domain.RefreshToken
		revokedAt sql.NullTime
	)
	if err := row.Scan(
		&token.ID,
		&token.SessionID,
		&token.TokenHash,
		&token.CreatedAt,
		&token.ExpiresAt,
		&revokedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	token.RevokedAt = nullableTimePtr(revokedAt)
	return &token, nil
}

// Revoke marks a single refresh token as revoked.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, tokenID string) error {
	stmt := `
        UPDATE cpiam.refresh_tokens
           SET revoked_at = $2
         WHERE id = $1
           AND revoked_at IS NULL
    `

	tag, err := r.exec.Exec(ctx, stmt, tokenID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RevokeBySession revokes every active refresh token linked to the session.
func (r *RefreshTokenRepository) RevokeBySession(ctx context.Context, sessionID string) (int, error) {
	stmt := `
        UPDATE cpiam.refresh_tokens
           SET revoked_at = $2
         WHERE session_id = $1
           AND revoked_at IS NULL
    `

	tag, err := r.exec.Exec(ctx, stmt, sessionID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens for session: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

var _ port.RefreshTokenRepository = (*RefreshTokenRepository)(nil)
