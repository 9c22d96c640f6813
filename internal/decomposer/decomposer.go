// Package decomposer splits multi-part questions into independently
// searchable fragments.
package decomposer

import "strings"

// Decomposer turns a question into one or more search fragments
type Decomposer interface {
	Decompose(question string) []string
}

// DefaultSeparators are applied in order; each one splits every fragment
// produced by the separators before it.
var DefaultSeparators = []string{" and ", " AND ", " also ", " ALSO ", "; ", ","}

// DefaultMinLength is the length a fragment must exceed to be kept
const DefaultMinLength = 3

// SeparatorDecomposer splits on literal separators
type SeparatorDecomposer struct {
	Separators []string
	// MinLength drops fragments of MinLength characters or fewer
	MinLength int
}

// NewSeparatorDecomposer returns a decomposer with the default separators
// and minimum fragment length.
func NewSeparatorDecomposer() *SeparatorDecomposer {
	return &SeparatorDecomposer{
		Separators: DefaultSeparators,
		MinLength:  DefaultMinLength,
	}
}

// Decompose returns the cleaned, case-insensitively deduplicated fragments
// of question in order of first appearance. When no fragment survives, the
// original question is returned as the only fragment.
func (d *SeparatorDecomposer) Decompose(question string) []string {
	fragments := []string{question}
	for _, sep := range d.Separators {
		var next []string
		for _, f := range fragments {
			next = append(next, strings.Split(f, sep)...)
		}
		fragments = next
	}

	seen := make(map[string]bool, len(fragments))
	out := make([]string, 0, len(fragments))
	for _, f := range fragments {
		f = clean(f)
		if len([]rune(f)) <= d.MinLength {
			continue
		}
		key := strings.ToLower(f)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}

	if len(out) == 0 {
		return []string{question}
	}
	return out
}

// clean strips surrounding whitespace and question marks
func clean(s string) string {
	return strings.Trim(s, "? \t\r\n")
}
