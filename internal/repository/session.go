package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// SessionRepository stores hashed refresh tokens. The subject is a
// participant key such as "student:42".
type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) StoreRefreshToken(ctx context.Context, subject, tokenHash string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (subject, token_hash, expires_at)
		VALUES ($1, $2, $3)
	`, subject, tokenHash, expiresAt)
	return err
}

func (r *SessionRepository) ValidateRefreshToken(ctx context.Context, tokenHash string) (string, error) {
	var subject string
	err := r.pool.QueryRow(ctx, `
		SELECT subject FROM refresh_tokens
		WHERE token_hash = $1 AND revoked = FALSE AND expires_at > NOW()
	`, tokenHash).Scan(&subject)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return subject, err
}

func (r *SessionRepository) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE WHERE token_hash = $1
	`, tokenHash)
	return err
}

func (r *SessionRepository) RevokeAllForSubject(ctx context.Context, subject string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE WHERE subject = $1
	`, subject)
	return err
}

func (r *SessionRepository) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < NOW() OR revoked = TRUE`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
