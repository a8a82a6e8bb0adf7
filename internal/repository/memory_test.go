package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/not-lucky/LLM2Deck/internal/types"
)

func newTestRun() *types.Run {
	return &types.Run{
		ID:        uuid.New(),
		Subject:   "algorithms",
		CardType:  types.CardTypeStandard,
		Status:    types.RunStatusRunning,
		CreatedAt: time.Now().UTC(),
	}
}

func TestCreateAndGetRun(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	run := newTestRun()

	require.NoError(t, store.CreateRun(ctx, run))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, types.RunStatusRunning, got.Status)

	missing, err := store.GetRun(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateRunRejectsDuplicate(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	run := newTestRun()

	require.NoError(t, store.CreateRun(ctx, run))
	assert.Error(t, store.CreateRun(ctx, run))
}

func TestSaveBackendResultUpserts(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	run := newTestRun()
	require.NoError(t, store.CreateRun(ctx, run))

	first := types.BackendResult{Backend: "gemini", Success: false, ErrorText: "boom"}
	second := types.BackendResult{Backend: "gemini", Success: true, Payload: `{"cards":[]}`}

	require.NoError(t, store.SaveBackendResult(ctx, run.ID, "u1", first))
	require.NoError(t, store.SaveBackendResult(ctx, run.ID, "u1", second))
	require.NoError(t, store.SaveBackendResult(ctx, run.ID, "u1", types.BackendResult{Backend: "deepseek", Success: true}))

	results := store.BackendResults(run.ID, "u1")
	require.Len(t, results, 2, "same (unit, backend) key must overwrite, not append")
	assert.True(t, results[1].Success, "replay replaces the earlier gemini record")
}

func TestSaveMergedArtifactUpserts(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	run := newTestRun()
	require.NoError(t, store.CreateRun(ctx, run))

	q := types.Question{Name: "two-sum", Category: "arrays", Ordinal: 0}
	require.NoError(t, store.SaveMergedArtifact(ctx, run.ID, types.MergedArtifact{
		Question: q, Success: false, FailureReason: "all backends failed",
	}))
	require.NoError(t, store.SaveMergedArtifact(ctx, run.ID, types.MergedArtifact{
		Question: q, Success: true, Payload: `{"cards":[{}]}`, CardCount: 1,
	}))

	state, err := store.LoadResumeState(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, state.Processed, 1)
	art := state.Processed[q.UnitID()]
	require.NotNil(t, art)
	assert.True(t, art.Success)
	assert.Equal(t, 1, art.CardCount)
}

func TestLoadResumeStateUnknownRun(t *testing.T) {
	store := NewMemory()
	_, err := store.LoadResumeState(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestFinalizeRunIsMonotonic(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	run := newTestRun()
	require.NoError(t, store.CreateRun(ctx, run))

	totals := types.RunTotals{TotalUnits: 5, SuccessUnits: 4, FailedUnits: 1, CostUSD: 0.25}
	require.NoError(t, store.FinalizeRun(ctx, run.ID, types.RunStatusCompleted, totals))

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, 4, got.SuccessUnits)

	// A later finalize, as a crash replay would issue, must not regress
	// the terminal state.
	require.NoError(t, store.FinalizeRun(ctx, run.ID, types.RunStatusFailed, types.RunTotals{}))
	got, err = store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusCompleted, got.Status)
	assert.Equal(t, 4, got.SuccessUnits)
}

func TestFinalizeRunRejectsNonTerminal(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	run := newTestRun()
	require.NoError(t, store.CreateRun(ctx, run))

	assert.Error(t, store.FinalizeRun(ctx, run.ID, types.RunStatusRunning, types.RunTotals{}))
}

func TestListRunsNewestFirst(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	older := newTestRun()
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := newTestRun()

	require.NoError(t, store.CreateRun(ctx, older))
	require.NoError(t, store.CreateRun(ctx, newer))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)

	limited, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, newer.ID, limited[0].ID)
}
