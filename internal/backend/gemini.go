package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/not-lucky/LLM2Deck/internal/prompts"
	"github.com/not-lucky/LLM2Deck/internal/types"
)

// GeminiClient implements Client for Google Gemini.
type GeminiClient struct {
	name    string
	model   string
	client  *genai.Client
	keys    *KeyRing
	schema  string
	onUsage UsageCallback
}

// GeminiConfig configures a Gemini backend.
type GeminiConfig struct {
	Name       string // backend identifier, defaults to "gemini"
	Model      string // e.g. "gemini-2.5-flash"
	APIKeys    []string
	SchemaJSON string // JSON schema injected into prompts
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	keys := NewKeyRing(cfg.APIKeys)
	if keys.Len() == 0 {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Name == "" {
		cfg.Name = "gemini"
	}

	// The genai client binds one key at construction, so the ring picks
	// the key this instance is built with. Multi-key Gemini setups create
	// one client per key via the registry.
	client, err := genai.NewClient(ctx, option.WithAPIKey(keys.Next()))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		name:   cfg.Name,
		model:  cfg.Model,
		client: client,
		keys:   keys,
		schema: cfg.SchemaJSON,
	}, nil
}

// Name returns the backend identifier.
func (c *GeminiClient) Name() string { return c.name }

// Model returns the configured model.
func (c *GeminiClient) Model() string { return c.model }

// SetUsageCallback installs the token usage side-channel.
func (c *GeminiClient) SetUsageCallback(cb UsageCallback) { c.onUsage = cb }

// Close releases resources held by the underlying genai client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// ProduceCandidate generates one candidate card set for a question.
func (c *GeminiClient) ProduceCandidate(ctx context.Context, question string, tmpl prompts.Template) (string, error) {
	prompt := prompts.Format(tmpl.Text, map[string]string{
		"Question": question,
		"Schema":   c.schema,
	})
	return c.generate(ctx, prompt)
}

// MergeCandidates combines candidate card sets into one deck.
func (c *GeminiClient) MergeCandidates(ctx context.Context, question string, candidates []string, tmpl prompts.Template) (string, error) {
	prompt := prompts.Format(tmpl.Text, map[string]string{
		"Question":   question,
		"Candidates": JoinCandidates(candidates),
		"Schema":     c.schema,
	})
	return c.generate(ctx, prompt)
}

func (c *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0.4)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))

	usage := types.TokenUsage{}
	if resp != nil && resp.UsageMetadata != nil {
		usage.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	c.reportUsage(usage, err == nil)

	if err != nil {
		return "", NewError(c.name, Classify(err), "failed to generate content", err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", NewError(c.name, KindTransient, "empty response", err)
	}

	return CleanJSONBlock(text), nil
}

func (c *GeminiClient) reportUsage(usage types.TokenUsage, success bool) {
	if c.onUsage != nil {
		c.onUsage(c.name, c.model, usage, success)
	}
}

// extractTextFromResponse extracts text from a Gemini API response.
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}

// CardCount reports the number of cards in a payload, or 0 when the
// payload does not parse. Used for result bookkeeping only.
func CardCount(payload string) int {
	var parsed struct {
		Cards []json.RawMessage `json:"cards"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return 0
	}
	return len(parsed.Cards)
}
