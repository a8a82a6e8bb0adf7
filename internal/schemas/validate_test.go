package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/not-lucky/LLM2Deck/internal/types"
)

func TestStandardSchemaAcceptsValidDeck(t *testing.T) {
	v, err := ForCardType(types.CardTypeStandard)
	require.NoError(t, err)

	payload := `{"cards":[{"front":"What is a heap?","back":"A tree-shaped priority structure.","tags":["data-structures"]}]}`
	assert.NoError(t, v.Validate(payload))
}

func TestStandardSchemaRejections(t *testing.T) {
	v, err := ForCardType(types.CardTypeStandard)
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload string
	}{
		{"missing cards key", `{"deck":[]}`},
		{"empty cards array", `{"cards":[]}`},
		{"card missing back", `{"cards":[{"front":"q"}]}`},
		{"empty front", `{"cards":[{"front":"","back":"a"}]}`},
		{"unknown card field", `{"cards":[{"front":"q","back":"a","hint":"h"}]}`},
		{"not json at all", `Sure! Here are your cards:`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.payload)
			require.Error(t, err)

			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.NotEmpty(t, validationErr.Errors)
		})
	}
}

func TestMCQSchemaAcceptsValidDeck(t *testing.T) {
	v, err := ForCardType(types.CardTypeMCQ)
	require.NoError(t, err)

	payload := `{"cards":[{
		"question":"Which traversal visits the root first?",
		"options":["pre-order","in-order","post-order"],
		"answer":"pre-order",
		"explanation":"Pre-order visits root, left, right."
	}]}`
	assert.NoError(t, v.Validate(payload))
}

func TestMCQSchemaRequiresTwoOptions(t *testing.T) {
	v, err := ForCardType(types.CardTypeMCQ)
	require.NoError(t, err)

	payload := `{"cards":[{"question":"q","options":["only one"],"answer":"a","explanation":"e"}]}`
	err = v.Validate(payload)
	require.Error(t, err)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
}

func TestValidationErrorMessageListsFields(t *testing.T) {
	v, err := ForCardType(types.CardTypeStandard)
	require.NoError(t, err)

	err = v.Validate(`{"cards":[{"front":"q"}]}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, err.Error(), "back")
}

func TestSchemaJSONIsNonEmpty(t *testing.T) {
	for _, ct := range []types.CardType{types.CardTypeStandard, types.CardTypeMCQ} {
		v, err := ForCardType(ct)
		require.NoError(t, err)
		assert.Contains(t, v.SchemaJSON(), `"cards"`)
	}
}
