package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/not-lucky/LLM2Deck/internal/types"
)

// Memory is an in-process Store used for tests and database-less runs.
// Writes follow the same upsert-and-never-regress rules as Postgres.
type Memory struct {
	mu        sync.Mutex
	runs      map[uuid.UUID]*types.Run
	results   map[uuid.UUID]map[string]map[string]types.BackendResult
	artifacts map[uuid.UUID]map[string]types.MergedArtifact
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		runs:      make(map[uuid.UUID]*types.Run),
		results:   make(map[uuid.UUID]map[string]map[string]types.BackendResult),
		artifacts: make(map[uuid.UUID]map[string]types.MergedArtifact),
	}
}

// CreateRun inserts a new run record.
func (m *Memory) CreateRun(ctx context.Context, run *types.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[run.ID]; exists {
		return fmt.Errorf("run already exists: %s", run.ID)
	}
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

// GetRun returns one run, or nil when not found.
func (m *Memory) GetRun(ctx context.Context, runID uuid.UUID) (*types.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	copied := *run
	return &copied, nil
}

// ListRuns returns recent runs, newest first.
func (m *Memory) ListRuns(ctx context.Context, limit int) ([]types.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	runs := make([]types.Run, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, *run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// SaveBackendResult upserts one backend candidate for a unit.
func (m *Memory) SaveBackendResult(ctx context.Context, runID uuid.UUID, unitID string, result types.BackendResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	units, ok := m.results[runID]
	if !ok {
		units = make(map[string]map[string]types.BackendResult)
		m.results[runID] = units
	}
	backends, ok := units[unitID]
	if !ok {
		backends = make(map[string]types.BackendResult)
		units[unitID] = backends
	}
	backends[result.Backend] = result
	return nil
}

// BackendResults returns the recorded candidates for a unit, for tests.
func (m *Memory) BackendResults(runID uuid.UUID, unitID string) []types.BackendResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	backends := m.results[runID][unitID]
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]types.BackendResult, 0, len(names))
	for _, name := range names {
		out = append(out, backends[name])
	}
	return out
}

// SaveMergedArtifact upserts the combined artifact for a unit.
func (m *Memory) SaveMergedArtifact(ctx context.Context, runID uuid.UUID, artifact types.MergedArtifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	units, ok := m.artifacts[runID]
	if !ok {
		units = make(map[string]types.MergedArtifact)
		m.artifacts[runID] = units
	}
	units[artifact.Question.UnitID()] = artifact
	return nil
}

// LoadResumeState returns the run and its recorded merged artifacts.
func (m *Memory) LoadResumeState(ctx context.Context, runID uuid.UUID) (*types.ResumeState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	copied := *run

	state := &types.ResumeState{
		Run:       &copied,
		Processed: make(map[string]*types.MergedArtifact),
	}
	for unitID, artifact := range m.artifacts[runID] {
		art := artifact
		state.Processed[unitID] = &art
	}
	return state, nil
}

// ReopenRun moves a terminal run back to running for a resume.
func (m *Memory) ReopenRun(ctx context.Context, runID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}
	run.Status = types.RunStatusRunning
	run.CompletedAt = nil
	return nil
}

// FinalizeRun records a terminal status and totals. Already-terminal runs
// are left untouched.
func (m *Memory) FinalizeRun(ctx context.Context, runID uuid.UUID, status types.RunStatus, totals types.RunTotals) error {
	if !status.Terminal() {
		return fmt.Errorf("cannot finalize run to non-terminal status %q", status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}
	if run.Status.Terminal() {
		return nil
	}
	now := time.Now().UTC()
	run.Status = status
	run.CompletedAt = &now
	run.TotalUnits = totals.TotalUnits
	run.SuccessUnits = totals.SuccessUnits
	run.FailedUnits = totals.FailedUnits
	run.InputTokens = totals.InputTokens
	run.OutputTokens = totals.OutputTokens
	run.CostUSD = totals.CostUSD
	return nil
}
