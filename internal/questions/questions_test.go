package questions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/not-lucky/LLM2Deck/internal/types"
)

const sampleFile = `{
	"leetcode": {
		"Arrays": ["Two Sum", "Three Sum"],
		"Graphs": ["Course Schedule"]
	},
	"cs": {
		"Operating Systems": ["Deadlock conditions"]
	}
}`

func TestParsePreservesOrder(t *testing.T) {
	catalog, err := Parse([]byte(sampleFile))
	require.NoError(t, err)

	assert.Equal(t, []string{"leetcode", "cs"}, catalog.SubjectNames())

	leetcode := catalog.Subject("leetcode")
	require.NotNil(t, leetcode)
	require.Len(t, leetcode.Categories, 2)
	assert.Equal(t, "Arrays", leetcode.Categories[0].Name)
	assert.Equal(t, "Graphs", leetcode.Categories[1].Name)
	assert.Equal(t, []string{"Two Sum", "Three Sum"}, leetcode.Categories[0].Problems)

	assert.Nil(t, catalog.Subject("physics"))
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not an object", `["a"]`},
		{"category not a list", `{"s": {"c": "not a list"}}`},
		{"truncated", `{"s": {"c": ["a"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestEnumerateIndices(t *testing.T) {
	catalog, err := Parse([]byte(sampleFile))
	require.NoError(t, err)

	qs := Enumerate(catalog.Subject("leetcode"))
	require.Len(t, qs, 3)

	assert.Equal(t, types.Question{
		Name: "Two Sum", Category: "Arrays",
		CategoryIndex: 1, ProblemIndex: 1, Ordinal: 0,
	}, qs[0])
	assert.Equal(t, types.Question{
		Name: "Three Sum", Category: "Arrays",
		CategoryIndex: 1, ProblemIndex: 2, Ordinal: 1,
	}, qs[1])
	assert.Equal(t, types.Question{
		Name: "Course Schedule", Category: "Graphs",
		CategoryIndex: 2, ProblemIndex: 1, Ordinal: 2,
	}, qs[2])
}

func TestFilterApply(t *testing.T) {
	qs := []types.Question{
		{Name: "Two Sum", Category: "Arrays", Ordinal: 0},
		{Name: "Three Sum", Category: "Arrays", Ordinal: 1},
		{Name: "Course Schedule", Category: "Graphs", Ordinal: 2},
		{Name: "Clone Graph", Category: "Graphs", Ordinal: 3},
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"no filters", Filter{}, []string{"Two Sum", "Three Sum", "Course Schedule", "Clone Graph"}},
		{"category partial match", Filter{Category: "graph"}, []string{"Course Schedule", "Clone Graph"}},
		{"name partial match", Filter{Name: "sum"}, []string{"Two Sum", "Three Sum"}},
		{"skip until includes match", Filter{SkipUntil: "course"}, []string{"Course Schedule", "Clone Graph"}},
		{"skip until not found", Filter{SkipUntil: "nope"}, nil},
		{"limit", Filter{Limit: 2}, []string{"Two Sum", "Three Sum"}},
		{"combined", Filter{Category: "arrays", Limit: 1}, []string{"Two Sum"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(qs)
			var names []string
			for _, q := range got {
				names = append(names, q.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestFilterReassignsOrdinals(t *testing.T) {
	qs := []types.Question{
		{Name: "a", Category: "x", Ordinal: 0},
		{Name: "b", Category: "y", Ordinal: 1},
		{Name: "c", Category: "y", Ordinal: 2},
	}

	got := Filter{Category: "y"}.Apply(qs)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Ordinal)
	assert.Equal(t, 1, got[1].Ordinal)
}
