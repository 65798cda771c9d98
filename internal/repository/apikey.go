package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/furnicart/internal/domain/auth"
)

const (
	getAPIKeyByHashSQL = `SELECT id, key_hash, user_id, name, scopes
		FROM api_keys WHERE key_hash = $1`

	upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, user_id, name, scopes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key_hash) DO UPDATE SET user_id = $3, name = $4, scopes = $5`
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository looks up API keys by their keyed hash.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

// FindByHash returns the key whose stored hash matches, or auth.ErrKeyNotFound.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.Key, error) {
	rows, err := r.pool.Query(ctx, getAPIKeyByHashSQL, hash)
	if err != nil {
		return nil, fmt.Errorf("finding api key: %w", err)
	}

	key, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[auth.Key])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrKeyNotFound
		}
		return nil, fmt.Errorf("finding api key: %w", err)
	}
	return key, nil
}

// Upsert stores an API key record, replacing any existing row with the same
// hash. Used by the seeding tool.
func (r *APIKeyRepository) Upsert(ctx context.Context, key auth.Key) error {
	_, err := r.pool.Exec(ctx, upsertAPIKeySQL, key.ID, key.KeyHash, key.UserID, key.Name, key.Scopes)
	if err != nil {
		return fmt.Errorf("upserting api key %q: %w", key.Name, err)
	}
	return nil
}
