// Package prompts provides embedded LLM prompt templates keyed by role and
// card format. Each template carries a stable version identity derived from
// its content, used for cache fingerprinting.
package prompts

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/not-lucky/LLM2Deck/internal/types"
)

//go:embed *.json
var promptFiles embed.FS

// Role distinguishes the two operations a backend performs.
type Role string

// Template roles
const (
	RoleProduce Role = "produce"
	RoleMerge   Role = "merge"
)

// Template is an opaque prompt template plus the identity the cache
// fingerprint needs. The orchestration core never inspects Text.
type Template struct {
	Role    Role
	Version string
	Text    string
}

var (
	cache   = make(map[string]map[string]string)
	cacheMu sync.RWMutex
)

// Get retrieves the template for a role and card format. The version is the
// first 12 hex chars of the template's content hash, so editing a prompt
// automatically invalidates cached responses built from it.
func Get(role Role, cardType types.CardType) (Template, error) {
	templates, err := loadFile("templates.json")
	if err != nil {
		return Template{}, err
	}

	key := fmt.Sprintf("%s_%s", role, cardType)
	text, ok := templates[key]
	if !ok {
		return Template{}, fmt.Errorf("prompt key %q not found in templates.json", key)
	}

	sum := sha256.Sum256([]byte(text))
	return Template{
		Role:    role,
		Version: hex.EncodeToString(sum[:])[:12],
		Text:    text,
	}, nil
}

// MustGet retrieves a template, panicking if not found. Use for templates
// required at initialization time.
func MustGet(role Role, cardType types.CardType) Template {
	tmpl, err := Get(role, cardType)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return tmpl
}

// Format replaces placeholders of the form {{.Key}} with values from data.
func Format(template string, data map[string]string) string {
	result := template
	for key, value := range data {
		placeholder := fmt.Sprintf("{{.%s}}", key)
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}

// loadFile loads and caches a prompt file.
func loadFile(filename string) (map[string]string, error) {
	cacheMu.RLock()
	if templates, exists := cache[filename]; exists {
		cacheMu.RUnlock()
		return templates, nil
	}
	cacheMu.RUnlock()

	data, err := promptFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}

	var templates map[string]string
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}

	cacheMu.Lock()
	cache[filename] = templates
	cacheMu.Unlock()

	return templates, nil
}

// ClearCache clears the template cache. Useful for testing.
func ClearCache() {
	cacheMu.Lock()
	cache = make(map[string]map[string]string)
	cacheMu.Unlock()
}
