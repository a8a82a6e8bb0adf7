// Package orchestrator drives a full generation run: it owns the run
// record, schedules questions onto the bounded pool, enforces the cost
// ceiling between launches, and finalizes the run into exactly one
// terminal state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/not-lucky/LLM2Deck/internal/budget"
	"github.com/not-lucky/LLM2Deck/internal/generator"
	"github.com/not-lucky/LLM2Deck/internal/repository"
	"github.com/not-lucky/LLM2Deck/internal/scheduler"
	"github.com/not-lucky/LLM2Deck/internal/types"
)

// errBudgetExceeded flags a unit that was never dispatched because the
// spend ceiling had been reached.
var errBudgetExceeded = errors.New("budget exceeded")

// ProgressFunc receives unit lifecycle events for display.
type ProgressFunc func(event ProgressEvent)

// ProgressEvent is one unit lifecycle notification.
type ProgressEvent struct {
	Stage    string // "start", "done", "skip"
	Question types.Question
	Artifact *types.MergedArtifact
	Err      error
}

// Stage names for progress events
const (
	StageStart = "start"
	StageDone  = "done"
	StageSkip  = "skip"
)

// Options configures one run.
type Options struct {
	Subject     string
	CardType    types.CardType
	Label       string
	Concurrency int
	LaunchDelay time.Duration

	// Ordered selects input-order scheduling; when false, results are
	// collected as they complete and reassembled by ordinal afterwards.
	Ordered bool

	BudgetUSD float64

	// Resume, when set, continues the identified prior run instead of
	// creating a new one. Units already recorded as successful are
	// skipped.
	Resume uuid.UUID

	OnProgress ProgressFunc
}

// Outcome is the result of a completed (or stopped) run.
type Outcome struct {
	Run       *types.Run
	Artifacts []*types.MergedArtifact // ordinal order, resumed units included
	Skipped   int
	Totals    types.RunTotals
}

// Orchestrator wires the run-level collaborators.
type Orchestrator struct {
	Repo  repository.Store
	Guard *budget.Guard
	Gen   *generator.Generator
}

// Run executes all questions and returns the outcome. The returned error
// is reserved for orchestration failures such as an unreachable run
// store; per-unit failures are reported through the outcome instead.
func (o *Orchestrator) Run(ctx context.Context, qs []types.Question, opts Options) (*Outcome, error) {
	run, prior, err := o.openRun(ctx, qs, opts)
	if err != nil {
		return nil, err
	}
	o.Gen.RunID = run.ID

	pending, resumed, skipped := partition(qs, prior, opts.OnProgress)

	pool := scheduler.New(opts.Concurrency,
		scheduler.WithLaunchDelay(opts.LaunchDelay),
	)
	tasks := make([]scheduler.Task[*types.MergedArtifact], len(pending))
	for i, q := range pending {
		q := q
		tasks[i] = scheduler.Task[*types.MergedArtifact]{
			Label: q.Name,
			Run: func(taskCtx context.Context) (*types.MergedArtifact, error) {
				// The ceiling is checked per unit, before any backend
				// dispatch. In-flight units always run to completion.
				if o.Guard != nil && !o.Guard.Allow() {
					pool.Stop()
					return nil, errBudgetExceeded
				}
				emit(opts.OnProgress, ProgressEvent{Stage: StageStart, Question: q})
				artifact, procErr := o.Gen.ProcessQuestion(taskCtx, q)
				emit(opts.OnProgress, ProgressEvent{Stage: StageDone, Question: q, Artifact: artifact, Err: procErr})
				return artifact, procErr
			},
		}
	}

	var results []scheduler.Result[*types.MergedArtifact]
	if opts.Ordered {
		results = scheduler.RunOrdered(ctx, pool, tasks)
	} else {
		results = scheduler.RunCompleted(ctx, pool, tasks)
	}

	outcome := o.assemble(run, resumed, results, skipped)
	if err := o.finalize(ctx, run, outcome, ctx.Err()); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// openRun creates a fresh run or reopens the one being resumed.
func (o *Orchestrator) openRun(ctx context.Context, qs []types.Question, opts Options) (*types.Run, map[string]*types.MergedArtifact, error) {
	if opts.Resume != uuid.Nil {
		state, err := o.Repo.LoadResumeState(ctx, opts.Resume)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load run for resume: %w", err)
		}
		if err := o.Repo.ReopenRun(ctx, state.Run.ID); err != nil {
			return nil, nil, err
		}
		state.Run.Status = types.RunStatusRunning
		state.Run.TotalUnits = len(qs)
		return state.Run, state.Processed, nil
	}

	run := &types.Run{
		ID:         uuid.New(),
		Label:      opts.Label,
		Subject:    opts.Subject,
		CardType:   opts.CardType,
		Status:     types.RunStatusRunning,
		CreatedAt:  time.Now().UTC(),
		TotalUnits: len(qs),
		BudgetUSD:  opts.BudgetUSD,
	}
	if err := o.Repo.CreateRun(ctx, run); err != nil {
		return nil, nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil, nil
}

// partition splits questions into pending work and prior successes.
func partition(qs []types.Question, prior map[string]*types.MergedArtifact, progress ProgressFunc) (pending []types.Question, resumed []*types.MergedArtifact, skipped int) {
	for _, q := range qs {
		if art, ok := prior[q.UnitID()]; ok && art.Success {
			// Keep the current enumeration's position so the final deck
			// ordering holds even if the prior run used other filters.
			kept := *art
			kept.Question = q
			resumed = append(resumed, &kept)
			skipped++
			emit(progress, ProgressEvent{Stage: StageSkip, Question: q, Artifact: &kept})
			continue
		}
		pending = append(pending, q)
	}
	return pending, resumed, skipped
}

// assemble merges fresh and resumed artifacts into ordinal order and
// tallies the run counters.
func (o *Orchestrator) assemble(run *types.Run, resumed []*types.MergedArtifact, results []scheduler.Result[*types.MergedArtifact], skipped int) *Outcome {
	outcome := &Outcome{Run: run, Skipped: skipped}
	outcome.Artifacts = append(outcome.Artifacts, resumed...)

	budgetStopped := false
	for _, res := range results {
		switch {
		case res.Value != nil:
			outcome.Artifacts = append(outcome.Artifacts, res.Value)
		case errors.Is(res.Err, errBudgetExceeded):
			budgetStopped = true
		case errors.Is(res.Err, scheduler.ErrStopped):
			// Unlaunched units stay unrecorded; a resume picks them up.
		}
	}

	sort.Slice(outcome.Artifacts, func(i, j int) bool {
		return outcome.Artifacts[i].Question.Ordinal < outcome.Artifacts[j].Question.Ordinal
	})

	totals := types.RunTotals{TotalUnits: run.TotalUnits}
	for _, art := range outcome.Artifacts {
		if art.Success {
			totals.SuccessUnits++
		} else {
			totals.FailedUnits++
		}
	}
	if o.Guard != nil {
		snap := o.Guard.Snapshot()
		totals.InputTokens = snap.Usage.InputTokens
		totals.OutputTokens = snap.Usage.OutputTokens
		totals.CostUSD = snap.CostUSD
		budgetStopped = budgetStopped || snap.Exceeded
	}
	outcome.Totals = totals

	run.SuccessUnits = totals.SuccessUnits
	run.FailedUnits = totals.FailedUnits
	run.InputTokens = totals.InputTokens
	run.OutputTokens = totals.OutputTokens
	run.CostUSD = totals.CostUSD
	run.Status = terminalStatus(budgetStopped)
	return outcome
}

func terminalStatus(budgetStopped bool) types.RunStatus {
	if budgetStopped {
		return types.RunStatusBudgetExceeded
	}
	return types.RunStatusCompleted
}

// finalize writes the terminal state. A context error outranks the
// computed status since a canceled run did not complete its work.
func (o *Orchestrator) finalize(ctx context.Context, run *types.Run, outcome *Outcome, ctxErr error) error {
	if ctxErr != nil && run.Status == types.RunStatusCompleted {
		run.Status = types.RunStatusFailed
	}
	// Finalization must proceed even when the run context was canceled.
	finalizeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := o.Repo.FinalizeRun(finalizeCtx, run.ID, run.Status, outcome.Totals); err != nil {
		return fmt.Errorf("failed to finalize run %s: %w", run.ID, err)
	}
	now := time.Now().UTC()
	run.CompletedAt = &now
	return nil
}

func emit(fn ProgressFunc, event ProgressEvent) {
	if fn != nil {
		fn(event)
	}
}
