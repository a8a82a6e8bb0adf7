package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/not-lucky/LLM2Deck/internal/types"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool and verifies it.
func Connect(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Pool exposes the underlying pool so other stores can share it.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// EnsureSchema creates the run tables if missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS generation_runs (
			id             UUID PRIMARY KEY,
			label          TEXT NOT NULL DEFAULT '',
			subject        TEXT NOT NULL,
			card_type      TEXT NOT NULL,
			status         TEXT NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at   TIMESTAMPTZ,
			total_units    INT NOT NULL DEFAULT 0,
			success_units  INT NOT NULL DEFAULT 0,
			failed_units   INT NOT NULL DEFAULT 0,
			input_tokens   BIGINT NOT NULL DEFAULT 0,
			output_tokens  BIGINT NOT NULL DEFAULT 0,
			cost_usd       DOUBLE PRECISION NOT NULL DEFAULT 0,
			budget_usd     DOUBLE PRECISION NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS backend_results (
			run_id     UUID NOT NULL REFERENCES generation_runs(id) ON DELETE CASCADE,
			unit_id    TEXT NOT NULL,
			backend    TEXT NOT NULL,
			content    JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (run_id, unit_id, backend)
		);

		CREATE TABLE IF NOT EXISTS merged_artifacts (
			run_id     UUID NOT NULL REFERENCES generation_runs(id) ON DELETE CASCADE,
			unit_id    TEXT NOT NULL,
			success    BOOLEAN NOT NULL,
			content    JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (run_id, unit_id)
		)`)
	if err != nil {
		return fmt.Errorf("failed to create run tables: %w", err)
	}
	return nil
}

// CreateRun inserts a new run record.
func (p *Postgres) CreateRun(ctx context.Context, run *types.Run) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO generation_runs
		 (id, label, subject, card_type, status, created_at, total_units, budget_usd)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.Label, run.Subject, string(run.CardType), string(run.Status),
		run.CreatedAt, run.TotalUnits, run.BudgetUSD,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetRun returns one run, or nil when not found.
func (p *Postgres) GetRun(ctx context.Context, runID uuid.UUID) (*types.Run, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, label, subject, card_type, status, created_at, completed_at,
		        total_units, success_units, failed_units,
		        input_tokens, output_tokens, cost_usd, budget_usd
		 FROM generation_runs WHERE id = $1`,
		runID,
	)
	run, err := scanRun(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns recent runs, newest first.
func (p *Postgres) ListRuns(ctx context.Context, limit int) ([]types.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, label, subject, card_type, status, created_at, completed_at,
		        total_units, success_units, failed_units,
		        input_tokens, output_tokens, cost_usd, budget_usd
		 FROM generation_runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []types.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// SaveBackendResult upserts one backend candidate for a unit.
func (p *Postgres) SaveBackendResult(ctx context.Context, runID uuid.UUID, unitID string, result types.BackendResult) error {
	content, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal backend result: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO backend_results (run_id, unit_id, backend, content)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (run_id, unit_id, backend)
		 DO UPDATE SET content = $4, created_at = NOW()`,
		runID, unitID, result.Backend, content,
	)
	if err != nil {
		return fmt.Errorf("failed to save backend result for %s: %w", unitID, err)
	}
	return nil
}

// SaveMergedArtifact upserts the combined artifact for a unit.
func (p *Postgres) SaveMergedArtifact(ctx context.Context, runID uuid.UUID, artifact types.MergedArtifact) error {
	content, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO merged_artifacts (run_id, unit_id, success, content)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (run_id, unit_id)
		 DO UPDATE SET success = $3, content = $4, created_at = NOW()`,
		runID, artifact.Question.UnitID(), artifact.Success, content,
	)
	if err != nil {
		return fmt.Errorf("failed to save artifact for %s: %w", artifact.Question.UnitID(), err)
	}
	return nil
}

// LoadResumeState returns the run and its recorded merged artifacts.
func (p *Postgres) LoadResumeState(ctx context.Context, runID uuid.UUID) (*types.ResumeState, error) {
	run, err := p.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run not found: %s", runID)
	}

	rows, err := p.pool.Query(ctx,
		`SELECT content FROM merged_artifacts WHERE run_id = $1`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load artifacts: %w", err)
	}
	defer rows.Close()

	state := &types.ResumeState{
		Run:       run,
		Processed: make(map[string]*types.MergedArtifact),
	}
	for rows.Next() {
		var content []byte
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		var artifact types.MergedArtifact
		if err := json.Unmarshal(content, &artifact); err != nil {
			return nil, fmt.Errorf("failed to decode artifact: %w", err)
		}
		state.Processed[artifact.Question.UnitID()] = &artifact
	}
	return state, rows.Err()
}

// FinalizeRun records a terminal status and totals. Already-terminal runs
// are left untouched.
func (p *Postgres) FinalizeRun(ctx context.Context, runID uuid.UUID, status types.RunStatus, totals types.RunTotals) error {
	if !status.Terminal() {
		return fmt.Errorf("cannot finalize run to non-terminal status %q", status)
	}
	_, err := p.pool.Exec(ctx,
		`UPDATE generation_runs
		 SET status = $2, completed_at = NOW(),
		     total_units = $3, success_units = $4, failed_units = $5,
		     input_tokens = $6, output_tokens = $7, cost_usd = $8
		 WHERE id = $1 AND status = 'running'`,
		runID, string(status),
		totals.TotalUnits, totals.SuccessUnits, totals.FailedUnits,
		totals.InputTokens, totals.OutputTokens, totals.CostUSD,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize run: %w", err)
	}
	return nil
}

// ReopenRun moves a terminal run back to running for a resume.
func (p *Postgres) ReopenRun(ctx context.Context, runID uuid.UUID) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE generation_runs
		 SET status = 'running', completed_at = NULL
		 WHERE id = $1`,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to reopen run: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*types.Run, error) {
	var run types.Run
	var cardType, status string
	err := row.Scan(
		&run.ID, &run.Label, &run.Subject, &cardType, &status,
		&run.CreatedAt, &run.CompletedAt,
		&run.TotalUnits, &run.SuccessUnits, &run.FailedUnits,
		&run.InputTokens, &run.OutputTokens, &run.CostUSD, &run.BudgetUSD,
	)
	if err != nil {
		return nil, err
	}
	run.CardType = types.CardType(cardType)
	run.Status = types.RunStatus(status)
	return &run, nil
}
