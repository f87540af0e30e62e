package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FlagRepo struct {
	pool *pgxpool.Pool
}

func NewFlagRepo(pool *pgxpool.Pool) *FlagRepo {
	return &FlagRepo{pool: pool}
}

// Get returns the flag value and whether the flag exists at all.
func (r *FlagRepo) Get(ctx context.Context, key string) (bool, bool, error) {
	var enabled bool
	err := r.pool.QueryRow(ctx, `SELECT enabled FROM feature_flags WHERE key = $1`, key).Scan(&enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return enabled, true, nil
}

// Set upserts a flag. Used by admin tooling and tests.
func (r *FlagRepo) Set(ctx context.Context, key string, enabled bool) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO feature_flags (key, enabled, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = NOW()`,
		key, enabled)
	return err
}
