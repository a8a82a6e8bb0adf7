// Package repository persists run state so interrupted runs can resume
// without repeating completed work. All per-unit writes are idempotent
// upserts keyed by run and unit, so replays after a crash are harmless.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/not-lucky/LLM2Deck/internal/types"
)

// Store is the run persistence boundary.
type Store interface {
	// CreateRun inserts a new run in the running state.
	CreateRun(ctx context.Context, run *types.Run) error

	// GetRun returns a run by ID, or nil when absent.
	GetRun(ctx context.Context, runID uuid.UUID) (*types.Run, error)

	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]types.Run, error)

	// SaveBackendResult upserts one backend's raw candidate for a unit,
	// keyed (run, unit, backend).
	SaveBackendResult(ctx context.Context, runID uuid.UUID, unitID string, result types.BackendResult) error

	// SaveMergedArtifact upserts the combined artifact for a unit, keyed
	// (run, unit). Failed units are recorded too, with Success false.
	SaveMergedArtifact(ctx context.Context, runID uuid.UUID, artifact types.MergedArtifact) error

	// LoadResumeState returns the run plus its recorded merged artifacts,
	// keyed by unit ID. Only runs that exist can be resumed.
	LoadResumeState(ctx context.Context, runID uuid.UUID) (*types.ResumeState, error)

	// FinalizeRun moves a run to a terminal status exactly once and stores
	// its totals. Finalizing an already-terminal run is a no-op so crash
	// replays cannot regress status.
	FinalizeRun(ctx context.Context, runID uuid.UUID, status types.RunStatus, totals types.RunTotals) error

	// ReopenRun moves a terminal run back to running so it can resume.
	ReopenRun(ctx context.Context, runID uuid.UUID) error
}
