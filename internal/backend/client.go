// Package backend provides the capability interface over text-generation
// providers, concrete Gemini and OpenAI-compatible clients, the retry
// policy that wraps them, and the registry that resolves the configured set.
package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/not-lucky/LLM2Deck/internal/prompts"
	"github.com/not-lucky/LLM2Deck/internal/types"
)

// UsageCallback receives token usage for every backend attempt, success or
// failure, so failed-but-billed calls are still accounted for.
type UsageCallback func(backendName, model string, usage types.TokenUsage, success bool)

// Client is the capability interface over one text-generation backend.
// The orchestration core never branches on the concrete type beyond using
// Name() as a map key for fingerprints and cost attribution.
type Client interface {
	// Name returns the stable backend identifier (e.g. "gemini", "cerebras").
	Name() string
	// Model returns the model identifier the client is configured with.
	Model() string
	// ProduceCandidate generates one candidate payload for a question.
	ProduceCandidate(ctx context.Context, question string, tmpl prompts.Template) (string, error)
	// MergeCandidates combines candidate payloads into a single artifact.
	MergeCandidates(ctx context.Context, question string, candidates []string, tmpl prompts.Template) (string, error)
	// SetUsageCallback installs the token usage side-channel. Safe to call
	// once before the run starts; implementations are not required to
	// support replacement mid-run.
	SetUsageCallback(cb UsageCallback)
	// Close releases any resources held by the client.
	Close() error
}

// CleanJSONBlock removes markdown code fences that models wrap around JSON
// payloads despite being asked not to.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// JoinCandidates renders candidate payloads as the numbered sets the merge
// prompt expects.
func JoinCandidates(candidates []string) string {
	var sb strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&sb, "Set %d:\n%s\n\n", i+1, c)
	}
	return sb.String()
}
