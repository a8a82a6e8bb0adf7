package deck

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/not-lucky/LLM2Deck/internal/types"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"LeetCode", "leetcode"},
		{"Two Sum (Easy)", "two_sum_easy"},
		{"  cs - fundamentals  ", "cs_fundamentals"},
		{"already_clean", "already_clean"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in))
	}
}

func TestBuildSkipsFailedUnits(t *testing.T) {
	artifacts := []*types.MergedArtifact{
		{
			Question: types.Question{Name: "Two Sum", Category: "arrays", Ordinal: 0},
			Success:  true,
			Payload:  `{"cards":[{"front":"a","back":"b"},{"front":"c","back":"d"}]}`,
		},
		{
			Question:      types.Question{Name: "Broken", Ordinal: 1},
			Success:       false,
			FailureReason: "all backends failed",
		},
		{
			Question: types.Question{Name: "Clone Graph", Category: "graphs", Ordinal: 2},
			Success:  true,
			Payload:  `{"cards":[{"front":"e","back":"f"}]}`,
		},
	}

	entries, err := Build(artifacts)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Two Sum", entries[0].Question)
	assert.Len(t, entries[0].Cards, 2)
	assert.Equal(t, "Clone Graph", entries[1].Question)
}

func TestBuildRejectsCorruptPayload(t *testing.T) {
	artifacts := []*types.MergedArtifact{
		{Question: types.Question{Name: "bad"}, Success: true, Payload: `not json`},
	}
	_, err := Build(artifacts)
	assert.Error(t, err)
}

func TestWriteProducesOrderedDeckFile(t *testing.T) {
	dir := t.TempDir()
	artifacts := []*types.MergedArtifact{
		{
			Question: types.Question{Name: "first", Ordinal: 0},
			Success:  true,
			Payload:  `{"cards":[{"front":"1","back":"a"}]}`,
		},
		{
			Question: types.Question{Name: "second", Ordinal: 1},
			Success:  true,
			Payload:  `{"cards":[{"front":"2","back":"b"}]}`,
		},
	}

	path, err := Write(dir, "Lee tCode!", artifacts)
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(path), "lee_tcode_anki_deck_")
	assert.Contains(t, filepath.Base(path), ".json")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []Entry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Question)
	assert.Equal(t, "second", entries[1].Question)
}
