package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Profiles *ProfileRepository
	Sessions *SessionRepository
	Tokens   *RefreshTokenRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Profiles: NewProfileRepository(pool),
		Sessions: NewSessionRepository(pool),
		Tokens:   NewRefreshTokenRepository(pool),
	}
}
