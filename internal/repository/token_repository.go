package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campushub/auth-api/internal/models"
)

// ErrTokenConsumed is returned by Consume when the conditional update touches
// zero rows. A missing jti and an already-revoked jti are deliberately
// indistinguishable; both are treated as replay attempts.
var ErrTokenConsumed = errors.New("refresh token already consumed or unknown")

// TokenRepository persists refresh token records. Each record is the
// server-side half of one issued refresh token, keyed by jti.
type TokenRepository struct {
	db *sqlx.DB
}

// NewTokenRepository creates a new instance of TokenRepository.
func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create persists a refresh token record with revoked=false.
func (r *TokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (jti, user_id, expires_at, created_at, revoked, revoked_at, ip_address, user_agent) VALUES (:jti, :user_id, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// Consume atomically flips the record for jti from unrevoked to revoked. The
// conditional WHERE clause is what guarantees that of N concurrent rotation
// attempts for the same token, exactly one succeeds: the row lock makes the
// second and later updates see revoked=TRUE and match nothing. Returns
// ErrTokenConsumed when zero rows were affected.
func (r *TokenRepository) Consume(ctx context.Context, jti string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE jti = $1 AND revoked = FALSE`
	res, err := r.db.ExecContext(ctx, query, jti, revokedAt)
	if err != nil {
		return fmt.Errorf("consume refresh token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume refresh token: %w", err)
	}
	if affected == 0 {
		return ErrTokenConsumed
	}
	return nil
}

// RevokeAllForUser revokes every outstanding refresh token for a user.
// Idempotent; already-revoked rows are left untouched.
func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// DeleteExpired removes records whose tokens expired before the cutoff. Such
// rows can never rotate again, so dropping them only shrinks the table.
func (r *TokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE expires_at < $1`
	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return deleted, nil
}

// FindByJTI returns a refresh token record by its jti.
func (r *TokenRepository) FindByJTI(ctx context.Context, jti string) (*models.RefreshToken, error) {
	const query = `SELECT jti, user_id, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM refresh_tokens WHERE jti = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, jti); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}
