package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `{
		"subject": "cs",
		"card_type": "mcq",
		"concurrency": 5,
		"budget_usd": 2.5,
		"backends": [
			{"name": "gemini", "kind": "gemini", "model": "gemini-2.5-pro", "api_key_env": "GEMINI_API_KEY"}
		]
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "cs", cfg.Subject)
	assert.Equal(t, "mcq", cfg.CardType)
	assert.Equal(t, 5, cfg.Concurrency)
	assert.InDelta(t, 2.5, cfg.BudgetUSD, 1e-9)
	require.Len(t, cfg.Backends, 1)
	assert.Equal(t, "gemini", cfg.Backends[0].Kind)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig("")
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := writeConfig(t, `{not json`)
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		CardType: "standard",
		Backends: []BackendConfig{
			{Name: "gemini", Kind: "gemini", Model: "m", APIKeyEnv: "K"},
			{Name: "deepseek", Kind: "openai", Model: "m", BaseURL: "https://api.deepseek.com/v1", APIKeyEnv: "K2"},
		},
		Merger: "gemini",
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad card type", func(c *Config) { c.CardType = "cloze" }},
		{"bad backend kind", func(c *Config) { c.Backends[0].Kind = "llama" }},
		{"missing model", func(c *Config) { c.Backends[0].Model = "" }},
		{"duplicate backend name", func(c *Config) { c.Backends[1].Name = "gemini" }},
		{"openai without base url", func(c *Config) { c.Backends[1].BaseURL = "" }},
		{"unknown merger", func(c *Config) { c.Merger = "nope" }},
		{"negative concurrency", func(c *Config) { c.Concurrency = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			cfg.Backends = append([]BackendConfig{}, valid.Backends...)
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{Subject: "physics", Concurrency: 8}
	merged := cfg.MergeWithDefaults(Defaults())

	assert.Equal(t, "physics", merged.Subject, "set values win")
	assert.Equal(t, 8, merged.Concurrency)
	assert.Equal(t, "standard", merged.CardType)
	assert.Equal(t, "questions.json", merged.QuestionsFile)
	assert.Equal(t, 5, merged.MaxRetries)
	assert.Equal(t, 3, merged.ParseRetries)
	assert.Equal(t, 500*time.Millisecond, merged.LaunchDelay())
}

func TestBackendKeys(t *testing.T) {
	b := BackendConfig{APIKeyEnv: "TEST_DECK_KEYS"}

	t.Setenv("TEST_DECK_KEYS", "")
	assert.Nil(t, b.Keys())

	t.Setenv("TEST_DECK_KEYS", "one")
	assert.Equal(t, []string{"one"}, b.Keys())

	t.Setenv("TEST_DECK_KEYS", " one , two,three ,")
	assert.Equal(t, []string{"one", "two", "three"}, b.Keys())
}
