// Package generator runs the per-question pipeline: fan out to producing
// backends, validate and cache their candidates, then merge the survivors
// into one artifact.
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/not-lucky/LLM2Deck/internal/backend"
	"github.com/not-lucky/LLM2Deck/internal/cache"
	"github.com/not-lucky/LLM2Deck/internal/prompts"
	"github.com/not-lucky/LLM2Deck/internal/repository"
	"github.com/not-lucky/LLM2Deck/internal/schemas"
	"github.com/not-lucky/LLM2Deck/internal/types"
)

// ErrAllBackendsFailed marks a question where no producing backend
// returned a valid candidate. The unit fails; the run continues.
var ErrAllBackendsFailed = errors.New("all backends failed")

// DefaultParseRetries bounds re-requests after schema-invalid output.
const DefaultParseRetries = 3

// Generator holds the wiring shared by all questions in a run.
type Generator struct {
	Producers []backend.Client
	Merger    backend.Client
	Validator *schemas.Validator
	Cache     cache.Store
	Repo      repository.Store

	RunID        uuid.UUID
	ProduceTmpl  prompts.Template
	MergeTmpl    prompts.Template
	ParseRetries int
	BypassCache  bool
}

func (g *Generator) parseRetries() int {
	if g.ParseRetries > 0 {
		return g.ParseRetries
	}
	return DefaultParseRetries
}

// ProcessQuestion runs one question end to end and returns its merged
// artifact. Per-unit persistence is best-effort; only the returned
// artifact drives run accounting.
func (g *Generator) ProcessQuestion(ctx context.Context, q types.Question) (*types.MergedArtifact, error) {
	results := make([]types.BackendResult, len(g.Producers))

	grp, grpCtx := errgroup.WithContext(ctx)
	for i, client := range g.Producers {
		i, client := i, client
		grp.Go(func() error {
			results[i] = g.produce(grpCtx, client, q)
			return nil
		})
	}
	_ = grp.Wait() // produce never returns an error; failures live in results

	var candidates []string
	for _, res := range results {
		if g.Repo != nil {
			_ = g.Repo.SaveBackendResult(ctx, g.RunID, q.UnitID(), res)
		}
		if res.Success {
			candidates = append(candidates, res.Payload)
		}
	}

	artifact := &types.MergedArtifact{Question: q}
	if len(candidates) == 0 {
		artifact.FailureReason = failureSummary(results)
		g.saveArtifact(ctx, artifact)
		return artifact, fmt.Errorf("%s: %w", q.Name, ErrAllBackendsFailed)
	}

	merged := g.merge(ctx, q, candidates)
	if !merged.Success {
		artifact.FailureReason = fmt.Sprintf("merge failed: %s", merged.ErrorText)
		g.saveArtifact(ctx, artifact)
		return artifact, fmt.Errorf("%s: merge: %s", q.Name, merged.ErrorText)
	}

	artifact.Success = true
	artifact.Payload = merged.Payload
	artifact.CardCount = backend.CardCount(merged.Payload)
	g.saveArtifact(ctx, artifact)
	return artifact, nil
}

func (g *Generator) saveArtifact(ctx context.Context, artifact *types.MergedArtifact) {
	if g.Repo != nil {
		_ = g.Repo.SaveMergedArtifact(ctx, g.RunID, *artifact)
	}
}

// produce obtains one backend's candidate, consulting the cache first.
func (g *Generator) produce(ctx context.Context, client backend.Client, q types.Question) types.BackendResult {
	result := types.BackendResult{Backend: client.Name(), Model: client.Model()}
	fp := cache.NewFingerprint(q.Name, client.Name(), prompts.RoleProduce, g.ProduceTmpl.Version)

	if !g.BypassCache && g.Cache != nil {
		if payload, ok, err := g.Cache.Get(ctx, fp); err == nil && ok {
			result.Success = true
			result.Payload = payload
			result.FromCache = true
			return result
		}
	}

	start := time.Now()
	payload, err := g.withParseRetries(ctx, client.Name(), func() (string, error) {
		return client.ProduceCandidate(ctx, q.Name, g.ProduceTmpl)
	})
	result.Elapsed = time.Since(start).Seconds()

	if err != nil {
		result.ErrorText = err.Error()
		return result
	}

	result.Success = true
	result.Payload = payload
	if g.Cache != nil {
		_ = g.Cache.Put(ctx, fp, cache.Entry{
			Backend: client.Name(),
			Model:   client.Model(),
			Payload: payload,
		})
	}
	return result
}

// merge combines validated candidates on the merging backend.
func (g *Generator) merge(ctx context.Context, q types.Question, candidates []string) types.BackendResult {
	result := types.BackendResult{Backend: g.Merger.Name(), Model: g.Merger.Model()}
	fp := cache.NewFingerprint(q.Name, g.Merger.Name(), prompts.RoleMerge, g.MergeTmpl.Version)

	if !g.BypassCache && g.Cache != nil {
		if payload, ok, err := g.Cache.Get(ctx, fp); err == nil && ok {
			result.Success = true
			result.Payload = payload
			result.FromCache = true
			return result
		}
	}

	start := time.Now()
	payload, err := g.withParseRetries(ctx, g.Merger.Name(), func() (string, error) {
		return g.Merger.MergeCandidates(ctx, q.Name, candidates, g.MergeTmpl)
	})
	result.Elapsed = time.Since(start).Seconds()

	if err != nil {
		result.ErrorText = err.Error()
		return result
	}

	result.Success = true
	result.Payload = payload
	if g.Cache != nil {
		_ = g.Cache.Put(ctx, fp, cache.Entry{
			Backend: g.Merger.Name(),
			Model:   g.Merger.Model(),
			Payload: payload,
		})
	}
	return result
}

// withParseRetries re-issues the same request when the response fails
// schema validation. Transport retries happen below this layer; this loop
// only handles well-formed deliveries with invalid content.
func (g *Generator) withParseRetries(ctx context.Context, backendName string, call func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= g.parseRetries(); attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		payload, err := call()
		if err != nil {
			return "", err
		}

		if g.Validator == nil {
			return payload, nil
		}
		vErr := g.Validator.Validate(payload)
		if vErr == nil {
			return payload, nil
		}
		lastErr = vErr
	}
	return "", backend.NewError(backendName, backend.KindParse,
		fmt.Sprintf("invalid output after %d attempts", g.parseRetries()), lastErr)
}

func failureSummary(results []types.BackendResult) string {
	summary := "all backends failed:"
	for _, res := range results {
		summary += fmt.Sprintf(" [%s: %s]", res.Backend, res.ErrorText)
	}
	return summary
}
