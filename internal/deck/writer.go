// Package deck assembles merged artifacts into the final deck file.
package deck

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/not-lucky/LLM2Deck/internal/types"
)

// Entry is one question's slot in the final deck, in enumeration order.
type Entry struct {
	Question string            `json:"question"`
	Category string            `json:"category,omitempty"`
	Cards    []json.RawMessage `json:"cards"`
}

var filenameUnsafe = regexp.MustCompile(`[^\w\s-]`)
var filenameSeparators = regexp.MustCompile(`[-\s]+`)

// SanitizeFilename lowercases a name and collapses it to underscore-safe
// characters for use in output filenames.
func SanitizeFilename(name string) string {
	cleaned := filenameUnsafe.ReplaceAllString(name, "")
	cleaned = strings.ToLower(strings.TrimSpace(cleaned))
	return filenameSeparators.ReplaceAllString(cleaned, "_")
}

// Build converts artifacts into deck entries, dropping failed units and
// preserving input order.
func Build(artifacts []*types.MergedArtifact) ([]Entry, error) {
	var entries []Entry
	for _, art := range artifacts {
		if !art.Success {
			continue
		}
		var payload struct {
			Cards []json.RawMessage `json:"cards"`
		}
		if err := json.Unmarshal([]byte(art.Payload), &payload); err != nil {
			return nil, fmt.Errorf("artifact for %q holds invalid JSON: %w", art.Question.Name, err)
		}
		entries = append(entries, Entry{
			Question: art.Question.Name,
			Category: art.Question.Category,
			Cards:    payload.Cards,
		})
	}
	return entries, nil
}

// Write saves the deck to <dir>/<prefix>_anki_deck_<timestamp>.json and
// returns the path.
func Write(dir, prefix string, artifacts []*types.MergedArtifact) (string, error) {
	entries, err := Build(artifacts)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode deck: %w", err)
	}

	timestamp := time.Now().Format("20060102T150405")
	filename := fmt.Sprintf("%s_anki_deck_%s.json", SanitizeFilename(prefix), timestamp)
	path := filepath.Join(dir, filename)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write deck: %w", err)
	}
	return path, nil
}
