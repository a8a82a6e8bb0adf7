package cache

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a pgx-backed Store shared across runs. Concurrent upserts of
// the same fingerprint resolve via ON CONFLICT last-write-wins.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing connection pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the cache table if missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS llm_cache (
			fingerprint TEXT PRIMARY KEY,
			backend     TEXT NOT NULL,
			model       TEXT NOT NULL,
			payload     TEXT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			hit_count   BIGINT NOT NULL DEFAULT 0
		)`)
	if err != nil {
		return fmt.Errorf("failed to create cache table: %w", err)
	}
	return nil
}

// Get returns the cached payload, bumping the hit counter on a hit.
func (p *Postgres) Get(ctx context.Context, fp Fingerprint) (string, bool, error) {
	var payload string
	err := p.pool.QueryRow(ctx,
		`UPDATE llm_cache SET hit_count = hit_count + 1
		 WHERE fingerprint = $1
		 RETURNING payload`,
		string(fp),
	).Scan(&payload)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read cache: %w", err)
	}
	return payload, true, nil
}

// Put upserts a response for a fingerprint.
func (p *Postgres) Put(ctx context.Context, fp Fingerprint, entry Entry) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO llm_cache (fingerprint, backend, model, payload)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (fingerprint) DO UPDATE
		 SET backend = $2, model = $3, payload = $4, created_at = NOW(), hit_count = 0`,
		string(fp), entry.Backend, entry.Model, entry.Payload,
	)
	if err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Clear removes all entries.
func (p *Postgres) Clear(ctx context.Context) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM llm_cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Stats reports entry count, approximate payload size, and total hits.
func (p *Postgres) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(LENGTH(payload)), 0), COALESCE(SUM(hit_count), 0)
		 FROM llm_cache`,
	).Scan(&stats.Entries, &stats.ApproxSizeBytes, &stats.TotalHits)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read cache stats: %w", err)
	}
	return stats, nil
}
