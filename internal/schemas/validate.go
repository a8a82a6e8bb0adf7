// Package schemas validates backend output against the embedded card
// schemas. A validation failure is the signal that triggers a parse retry
// on the producing backend.
package schemas

import (
	"embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/not-lucky/LLM2Deck/internal/types"
)

//go:embed card_standard.json card_mcq.json
var schemaFS embed.FS

// ValidationError reports schema violations with field paths.
type ValidationError struct {
	Errors []FieldError
}

// FieldError is a single violation at one field.
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// SchemaLoadError reports problems with the schema itself, as opposed to
// the document under validation.
type SchemaLoadError struct {
	Name    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Name, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Name, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// Validator validates card payloads against one compiled schema.
type Validator struct {
	name   string
	raw    string
	schema *gojsonschema.Schema
}

// ForCardType compiles the embedded schema for a card format.
func ForCardType(cardType types.CardType) (*Validator, error) {
	name := "card_standard.json"
	if cardType == types.CardTypeMCQ {
		name = "card_mcq.json"
	}

	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		return nil, &SchemaLoadError{Name: name, Message: "schema not embedded", Cause: err}
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, &SchemaLoadError{Name: name, Message: "schema failed to compile", Cause: err}
	}

	return &Validator{name: name, raw: string(raw), schema: schema}, nil
}

// SchemaJSON returns the raw schema text, suitable for embedding in
// prompts so backends see the exact contract they are validated against.
func (v *Validator) SchemaJSON() string {
	return v.raw
}

// Validate checks a JSON payload. Returns nil when valid, a
// *ValidationError describing the violations when invalid, and a
// *SchemaLoadError when the payload is not even parseable JSON.
func (v *Validator) Validate(payload string) error {
	result, err := v.schema.Validate(gojsonschema.NewStringLoader(payload))
	if err != nil {
		// gojsonschema reports unparseable documents here rather than as
		// result errors; treat them as a validation failure of the root.
		return &ValidationError{Errors: []FieldError{
			{Field: "(root)", Message: fmt.Sprintf("invalid JSON: %v", err)},
		}}
	}

	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
