// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// BackendConfig describes one configured LLM backend.
type BackendConfig struct {
	Name      string `json:"name" validate:"required"`
	Kind      string `json:"kind" validate:"required,oneof=gemini openai"`
	Model     string `json:"model" validate:"required"`
	BaseURL   string `json:"base_url,omitempty" validate:"omitempty,url"`
	APIKeyEnv string `json:"api_key_env" validate:"required"`
	MaxTokens int    `json:"max_tokens,omitempty" validate:"gte=0"`
}

// Keys reads the backend's API keys from the environment. Multiple keys
// separated by commas rotate round-robin across requests.
func (b BackendConfig) Keys() []string {
	raw := os.Getenv(b.APIKeyEnv)
	if raw == "" {
		return nil
	}
	var keys []string
	for _, key := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}

// Config is the CLI configuration loadable from a JSON file. Missing
// values use defaults or must be provided via flags.
type Config struct {
	// Input
	QuestionsFile string `json:"questions_file,omitempty"`
	Subject       string `json:"subject,omitempty"`
	CardType      string `json:"card_type,omitempty" validate:"omitempty,oneof=standard mcq"`
	OutputDir     string `json:"output_dir,omitempty"`

	// Backends
	Backends []BackendConfig `json:"backends,omitempty" validate:"dive"`
	Merger   string          `json:"merger,omitempty"` // backend name; defaults to the first backend

	// Scheduling
	Concurrency   int `json:"concurrency,omitempty" validate:"gte=0"`
	LaunchDelayMS int `json:"launch_delay_ms,omitempty" validate:"gte=0"`

	// Retry
	MaxRetries   int `json:"max_retries,omitempty" validate:"gte=0"`
	ParseRetries int `json:"parse_retries,omitempty" validate:"gte=0"`

	// Spend
	BudgetUSD float64 `json:"budget_usd,omitempty" validate:"gte=0"`

	// Behavior
	Verbose     bool   `json:"verbose,omitempty"`
	Ordered     bool   `json:"ordered,omitempty"`
	DatabaseURL string `json:"database_url,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		QuestionsFile: "questions.json",
		Subject:       "leetcode",
		CardType:      "standard",
		OutputDir:     ".",
		Concurrency:   3,
		LaunchDelayMS: 500,
		MaxRetries:    5,
		ParseRetries:  3,
	}
}

// LaunchDelay returns the launch delay as a duration.
func (c *Config) LaunchDelay() time.Duration {
	return time.Duration(c.LaunchDelayMS) * time.Millisecond
}

// LoadConfig loads configuration from a JSON file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks field values and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	seen := make(map[string]bool)
	for _, b := range c.Backends {
		if seen[b.Name] {
			return fmt.Errorf("config error: duplicate backend name %q", b.Name)
		}
		seen[b.Name] = true
		if b.Kind == "openai" && b.BaseURL == "" {
			return fmt.Errorf("config error: backend %q needs 'base_url'", b.Name)
		}
	}
	if c.Merger != "" && len(c.Backends) > 0 && !seen[c.Merger] {
		return fmt.Errorf("config error: merger %q is not a configured backend", c.Merger)
	}
	return nil
}

// MergeWithDefaults fills unset fields from defaults. Boolean flags are
// not merged since unset and false are indistinguishable; flags win.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.QuestionsFile == "" {
		result.QuestionsFile = defaults.QuestionsFile
	}
	if result.Subject == "" {
		result.Subject = defaults.Subject
	}
	if result.CardType == "" {
		result.CardType = defaults.CardType
	}
	if result.OutputDir == "" {
		result.OutputDir = defaults.OutputDir
	}
	if result.Merger == "" {
		result.Merger = defaults.Merger
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if len(result.Backends) == 0 {
		result.Backends = defaults.Backends
	}

	if result.Concurrency == 0 {
		result.Concurrency = defaults.Concurrency
	}
	if result.LaunchDelayMS == 0 {
		result.LaunchDelayMS = defaults.LaunchDelayMS
	}
	if result.MaxRetries == 0 {
		result.MaxRetries = defaults.MaxRetries
	}
	if result.ParseRetries == 0 {
		result.ParseRetries = defaults.ParseRetries
	}
	if result.BudgetUSD == 0 {
		result.BudgetUSD = defaults.BudgetUSD
	}

	return result
}
