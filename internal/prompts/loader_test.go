package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/not-lucky/LLM2Deck/internal/types"
)

func TestGetAllRoleFormatPairs(t *testing.T) {
	ClearCache()

	for _, role := range []Role{RoleProduce, RoleMerge} {
		for _, ct := range []types.CardType{types.CardTypeStandard, types.CardTypeMCQ} {
			tmpl, err := Get(role, ct)
			require.NoError(t, err, "role=%s cardType=%s", role, ct)
			assert.Equal(t, role, tmpl.Role)
			assert.NotEmpty(t, tmpl.Text)
			assert.Len(t, tmpl.Version, 12)
		}
	}
}

func TestGetUnknownKey(t *testing.T) {
	ClearCache()

	_, err := Get(Role("review"), types.CardTypeStandard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "review_standard")
}

func TestVersionIsStableAndContentDerived(t *testing.T) {
	ClearCache()

	first, err := Get(RoleProduce, types.CardTypeStandard)
	require.NoError(t, err)
	second, err := Get(RoleProduce, types.CardTypeStandard)
	require.NoError(t, err)
	assert.Equal(t, first.Version, second.Version, "same content must yield the same version")

	merge, err := Get(RoleMerge, types.CardTypeStandard)
	require.NoError(t, err)
	assert.NotEqual(t, first.Version, merge.Version, "different templates carry different versions")
}

func TestMustGetPanicsOnMissing(t *testing.T) {
	ClearCache()

	assert.Panics(t, func() {
		MustGet(Role("nonexistent"), types.CardTypeStandard)
	})
	assert.NotPanics(t, func() {
		MustGet(RoleMerge, types.CardTypeMCQ)
	})
}

func TestFormat(t *testing.T) {
	out := Format("Solve {{.Question}} as {{.Format}} cards", map[string]string{
		"Question": "Two Sum",
		"Format":   "standard",
	})
	assert.Equal(t, "Solve Two Sum as standard cards", out)

	unchanged := Format("no placeholders here", map[string]string{"Question": "x"})
	assert.Equal(t, "no placeholders here", unchanged)
}

func TestProduceTemplatesMentionSchema(t *testing.T) {
	ClearCache()

	tmpl := MustGet(RoleProduce, types.CardTypeStandard)
	assert.True(t, strings.Contains(tmpl.Text, "{{.Question}}"), "produce template must accept a question")
}
