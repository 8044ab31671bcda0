package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/voltgrid/identity/internal/database"
)

// RevokedTokenRepository persists the token blacklist so revocations survive
// restarts. The hot read path goes through the in-memory cache; this store
// backs it.
type RevokedTokenRepository struct {
	db *database.DB
}

func NewRevokedTokenRepository(db *database.DB) *RevokedTokenRepository {
	return &RevokedTokenRepository{db: db}
}

// Revoke adds a token id to the blacklist
func (r *RevokedTokenRepository) Revoke(ctx context.Context, jti, userID, reason string, expiresAt time.Time) error {
	query := `
		INSERT INTO revoked_tokens (id, jti, user_id, reason, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (jti) DO NOTHING
	`

	_, err := r.db.Pool.Exec(ctx, query, uuid.New().String(), jti, userID, reason, expiresAt)
	return database.MapPostgresError(err)
}

// IsRevoked checks the persisted blacklist
func (r *RevokedTokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE jti = $1)`

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, jti).Scan(&exists); err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// LoadActive returns the unexpired blacklist for cache warmup on startup
func (r *RevokedTokenRepository) LoadActive(ctx context.Context, now time.Time) (map[string]time.Time, error) {
	query := `SELECT jti, expires_at FROM revoked_tokens WHERE expires_at > $1`

	rows, err := r.db.Pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load revoked tokens: %w", err)
	}
	defer rows.Close()

	active := make(map[string]time.Time)
	for rows.Next() {
		var jti string
		var expiresAt time.Time
		if err := rows.Scan(&jti, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan revoked token: %w", err)
		}
		active[jti] = expiresAt
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating revoked tokens: %w", err)
	}
	return active, nil
}

// DeleteExpired removes blacklist rows for tokens that are past their own
// expiry; an expired token fails validation regardless.
func (r *RevokedTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM revoked_tokens WHERE expires_at < $1`

	result, err := r.db.Pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired revoked tokens: %w", err)
	}
	return result.RowsAffected(), nil
}
