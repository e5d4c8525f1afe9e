package store

import (
	"context"

	"github.com/alnah/go-narrate/internal/model"
)

const (
	upsertUsageSQL = `INSERT INTO provider_usage (provider, character_count, character_limit, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (provider) DO UPDATE
		SET character_count = EXCLUDED.character_count,
		    character_limit = EXCLUDED.character_limit,
		    updated_at = now()`

	listUsageSQL = `SELECT provider, character_count, character_limit, updated_at
		FROM provider_usage ORDER BY provider`
)

// UsageRepository caches the last usage figures reported by each provider.
type UsageRepository struct {
	pool Pool
}

// NewUsageRepository creates a UsageRepository.
func NewUsageRepository(pool Pool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// Save records u, replacing any previous figures for the same provider.
func (r *UsageRepository) Save(ctx context.Context, u model.Usage) error {
	_, err := r.pool.Exec(ctx, upsertUsageSQL, u.Provider, u.CharacterCount, u.CharacterLimit)
	return mapError(err, "save usage")
}

// List returns the cached usage of every provider.
func (r *UsageRepository) List(ctx context.Context) ([]model.Usage, error) {
	rows, err := r.pool.Query(ctx, listUsageSQL)
	if err != nil {
		return nil, mapError(err, "list usage")
	}
	defer rows.Close()

	out := []model.Usage{}
	for rows.Next() {
		var u model.Usage
		if err := rows.Scan(&u.Provider, &u.CharacterCount, &u.CharacterLimit, &u.UpdatedAt); err != nil {
			return nil, mapError(err, "scan usage")
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "list usage")
	}
	return out, nil
}
