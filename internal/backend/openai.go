package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/not-lucky/LLM2Deck/internal/prompts"
	"github.com/not-lucky/LLM2Deck/internal/types"
)

// DefaultHTTPTimeout is the per-request timeout for OpenAI-compatible calls.
const DefaultHTTPTimeout = 120 * time.Second

// OpenAICompatClient implements Client against any chat-completions
// endpoint that speaks the OpenAI wire format (Cerebras, NVIDIA,
// OpenRouter and similar hosts differ only in base URL and pricing).
type OpenAICompatClient struct {
	name        string
	model       string
	baseURL     string
	keys        *KeyRing
	schema      string
	temperature float32
	maxTokens   int
	httpClient  *http.Client
	onUsage     UsageCallback
}

// OpenAICompatConfig configures an OpenAI-compatible backend.
type OpenAICompatConfig struct {
	Name        string
	Model       string
	BaseURL     string // e.g. "https://api.cerebras.ai/v1"
	APIKeys     []string
	SchemaJSON  string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// NewOpenAICompatClient creates a client for an OpenAI-compatible endpoint.
func NewOpenAICompatClient(cfg OpenAICompatConfig) (*OpenAICompatClient, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("openai-compatible backend requires a name")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s: base URL is required", cfg.Name)
	}
	keys := NewKeyRing(cfg.APIKeys)
	if keys.Len() == 0 {
		return nil, fmt.Errorf("%s: API key is required", cfg.Name)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.4
	}

	return &OpenAICompatClient{
		name:        cfg.Name,
		model:       cfg.Model,
		baseURL:     cfg.BaseURL,
		keys:        keys,
		schema:      cfg.SchemaJSON,
		temperature: temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the backend identifier.
func (c *OpenAICompatClient) Name() string { return c.name }

// Model returns the configured model.
func (c *OpenAICompatClient) Model() string { return c.model }

// SetUsageCallback installs the token usage side-channel.
func (c *OpenAICompatClient) SetUsageCallback(cb UsageCallback) { c.onUsage = cb }

// Close is a no-op; the client holds no persistent connections beyond the
// http.Client's pool.
func (c *OpenAICompatClient) Close() error { return nil }

// ProduceCandidate generates one candidate card set for a question.
func (c *OpenAICompatClient) ProduceCandidate(ctx context.Context, question string, tmpl prompts.Template) (string, error) {
	prompt := prompts.Format(tmpl.Text, map[string]string{
		"Question": question,
		"Schema":   c.schema,
	})
	return c.complete(ctx, prompt)
}

// MergeCandidates combines candidate card sets into one deck.
func (c *OpenAICompatClient) MergeCandidates(ctx context.Context, question string, candidates []string, tmpl prompts.Template) (string, error) {
	prompt := prompts.Format(tmpl.Text, map[string]string{
		"Question":   question,
		"Candidates": JoinCandidates(candidates),
		"Schema":     c.schema,
	})
	return c.complete(ctx, prompt)
}

// chatRequest is the OpenAI chat-completions request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the subset of the response body the client consumes.
type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *OpenAICompatClient) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", NewError(c.name, KindFatal, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", NewError(c.name, KindFatal, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.keys.Next())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.reportUsage(types.TokenUsage{}, false)
		return "", NewError(c.name, KindTransient, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.reportUsage(types.TokenUsage{}, false)
		return "", NewError(c.name, KindTransient, "failed to read response", err)
	}

	var parsed chatResponse
	// Some hosts return usage even on error responses; decode before
	// checking the status so billed failures are still accounted for.
	_ = json.Unmarshal(raw, &parsed)
	usage := types.TokenUsage{
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}

	if resp.StatusCode != http.StatusOK {
		c.reportUsage(usage, false)
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if parsed.Error != nil {
			msg = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", NewError(c.name, KindFromHTTPStatus(resp.StatusCode), msg, nil)
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		c.reportUsage(usage, false)
		return "", NewError(c.name, KindTransient, "empty response", nil)
	}

	c.reportUsage(usage, true)
	return CleanJSONBlock(parsed.Choices[0].Message.Content), nil
}

func (c *OpenAICompatClient) reportUsage(usage types.TokenUsage, success bool) {
	if c.onUsage != nil {
		c.onUsage(c.name, c.model, usage, success)
	}
}
