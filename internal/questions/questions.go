// Package questions loads the categorized question catalog and enumerates
// it into the ordered unit list a run processes.
package questions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/not-lucky/LLM2Deck/internal/types"
)

// Category is one named group of problems, in file order.
type Category struct {
	Name     string
	Problems []string
}

// Subject is one top-level question set, such as "leetcode" or "cs".
type Subject struct {
	Name       string
	Categories []Category
}

// Catalog is the full parsed question file.
type Catalog struct {
	Subjects []Subject
}

// Subject returns a subject by name, or nil when absent.
func (c *Catalog) Subject(name string) *Subject {
	for i := range c.Subjects {
		if c.Subjects[i].Name == name {
			return &c.Subjects[i]
		}
	}
	return nil
}

// SubjectNames lists the available subjects in file order.
func (c *Catalog) SubjectNames() []string {
	names := make([]string, 0, len(c.Subjects))
	for _, s := range c.Subjects {
		names = append(names, s.Name)
	}
	return names
}

// Load parses a question file of the form
// {"subject": {"category": ["problem", ...], ...}, ...}.
// Category order within a subject is preserved; ordinary map decoding
// would scramble it, so parsing walks the token stream.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question file: %w", err)
	}
	catalog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse question file %s: %w", path, err)
	}
	return catalog, nil
}

// Parse decodes question file content.
func Parse(data []byte) (*Catalog, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	catalog := &Catalog{}
	for dec.More() {
		subjectName, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		subject := Subject{Name: subjectName}

		if err := expectDelim(dec, '{'); err != nil {
			return nil, fmt.Errorf("subject %q: %w", subjectName, err)
		}
		for dec.More() {
			categoryName, err := readKey(dec)
			if err != nil {
				return nil, err
			}
			var problems []string
			if err := dec.Decode(&problems); err != nil {
				return nil, fmt.Errorf("category %q: %w", categoryName, err)
			}
			subject.Categories = append(subject.Categories, Category{
				Name:     categoryName,
				Problems: problems,
			})
		}
		if _, err := dec.Token(); err != nil { // closing brace
			return nil, err
		}

		catalog.Subjects = append(catalog.Subjects, subject)
	}
	return catalog, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

// Enumerate flattens a subject into the run's question list. Category and
// problem indices are 1-based for display; the ordinal is the 0-based
// position in the list.
func Enumerate(subject *Subject) []types.Question {
	var out []types.Question
	for ci, category := range subject.Categories {
		for pi, problem := range category.Problems {
			out = append(out, types.Question{
				Name:          problem,
				Category:      category.Name,
				CategoryIndex: ci + 1,
				ProblemIndex:  pi + 1,
				Ordinal:       len(out),
			})
		}
	}
	return out
}

// Filter narrows an enumerated question list. Matches are case-insensitive
// substring matches, applied in order: category, name, skip-until, limit.
type Filter struct {
	Category  string
	Name      string
	SkipUntil string
	Limit     int
}

// Apply returns the filtered list with ordinals reassigned to positions in
// the filtered list, since that list is what the run actually processes.
func (f Filter) Apply(questions []types.Question) []types.Question {
	result := questions

	if f.Category != "" {
		needle := strings.ToLower(f.Category)
		result = keep(result, func(q types.Question) bool {
			return strings.Contains(strings.ToLower(q.Category), needle)
		})
	}

	if f.Name != "" {
		needle := strings.ToLower(f.Name)
		result = keep(result, func(q types.Question) bool {
			return strings.Contains(strings.ToLower(q.Name), needle)
		})
	}

	if f.SkipUntil != "" {
		needle := strings.ToLower(f.SkipUntil)
		start := -1
		for i, q := range result {
			if strings.Contains(strings.ToLower(q.Name), needle) {
				start = i
				break
			}
		}
		if start < 0 {
			result = nil
		} else {
			result = result[start:]
		}
	}

	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}

	out := make([]types.Question, len(result))
	for i, q := range result {
		q.Ordinal = i
		out[i] = q
	}
	return out
}

func keep(questions []types.Question, pred func(types.Question) bool) []types.Question {
	var out []types.Question
	for _, q := range questions {
		if pred(q) {
			out = append(out, q)
		}
	}
	return out
}
