// Package types defines the shared domain types for deck generation runs.
package types

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of a generation run.
// Transitions are monotonic: running moves to exactly one terminal state
// and never regresses.
type RunStatus string

// Run lifecycle states
const (
	RunStatusRunning        RunStatus = "running"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusBudgetExceeded RunStatus = "budget_exceeded"
)

// Terminal reports whether the status is a terminal state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusBudgetExceeded
}

// CardType selects the card format for a run.
type CardType string

// Supported card formats
const (
	CardTypeStandard CardType = "standard"
	CardTypeMCQ      CardType = "mcq"
)

// Run tracks one invocation of the generation pipeline.
type Run struct {
	ID           uuid.UUID  `json:"id"`
	Label        string     `json:"label,omitempty"`
	Subject      string     `json:"subject"`
	CardType     CardType   `json:"card_type"`
	Status       RunStatus  `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	TotalUnits   int        `json:"total_units"`
	SuccessUnits int        `json:"successful_units"`
	FailedUnits  int        `json:"failed_units"`
	InputTokens  int64      `json:"input_tokens"`
	OutputTokens int64      `json:"output_tokens"`
	CostUSD      float64    `json:"cost_usd"`
	BudgetUSD    float64    `json:"budget_usd,omitempty"` // 0 means unlimited
}

// Question is one independently processable unit of work within a run.
// Questions are enumerated once at run start and never mutated.
type Question struct {
	Name          string `json:"name"`
	Category      string `json:"category,omitempty"`
	CategoryIndex int    `json:"category_index,omitempty"` // 1-based
	ProblemIndex  int    `json:"problem_index,omitempty"`  // 1-based within category
	Ordinal       int    `json:"ordinal"`                  // 0-based position in the run's question list
}

// UnitID is the stable identifier used to key per-question records. It is
// derived from content, not position, so resumed runs match prior records
// even when filters change the enumeration order.
func (q Question) UnitID() string {
	if q.Category == "" {
		return q.Name
	}
	return q.Category + "/" + q.Name
}

// TokenUsage reports the input/output token counts of one backend call.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Add accumulates another usage report into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// BackendResult is the raw candidate produced by one backend for one
// question. Immutable after creation.
type BackendResult struct {
	Backend   string     `json:"backend"`
	Model     string     `json:"model"`
	Success   bool       `json:"success"`
	Payload   string     `json:"payload,omitempty"`
	ErrorText string     `json:"error,omitempty"`
	Usage     TokenUsage `json:"usage"`
	FromCache bool       `json:"from_cache"`
	Elapsed   float64    `json:"elapsed_seconds"`
}

// MergedArtifact is the single combined result for one question, produced
// by the combiner backend from the successful BackendResults.
type MergedArtifact struct {
	Question      Question `json:"question"`
	Success       bool     `json:"success"`
	Payload       string   `json:"payload,omitempty"`
	CardCount     int      `json:"card_count"`
	FailureReason string   `json:"failure_reason,omitempty"`
}

// RunTotals carries the cumulative counters recorded when a run finishes.
type RunTotals struct {
	TotalUnits   int     `json:"total_units"`
	SuccessUnits int     `json:"successful_units"`
	FailedUnits  int     `json:"failed_units"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// ResumeState is the prior run state loaded when resuming. Processed maps
// question name to the successful merged artifact recorded for it; questions
// absent from the map (or recorded without success) are reprocessed.
type ResumeState struct {
	Run       *Run
	Processed map[string]*MergedArtifact
}
