package synthesizer

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/dshills/hybridrag/internal/storage"
)

// DefaultSentencesPerFragment bounds the extract quoted for each fragment
const DefaultSentencesPerFragment = 2

// Extractive answers without a model by quoting, for each fragment, the
// context sentences sharing the most terms with it. It needs no network and
// gives deterministic output.
type Extractive struct {
	sentences int
}

// NewExtractive creates an extractive synthesizer quoting up to
// sentencesPerFragment sentences per fragment.
func NewExtractive(sentencesPerFragment int) *Extractive {
	if sentencesPerFragment <= 0 {
		sentencesPerFragment = DefaultSentencesPerFragment
	}
	return &Extractive{sentences: sentencesPerFragment}
}

// Name returns "extractive"
func (e *Extractive) Name() string {
	return "extractive"
}

type sentence struct {
	text     string
	filename string
	order    int
	terms    map[string]bool
}

// Synthesize writes one paragraph per fragment in fragment order
func (e *Extractive) Synthesize(ctx context.Context, req Request) (string, error) {
	if len(req.Chunks) == 0 {
		return "", ErrNoContext
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var pool []sentence
	for _, c := range req.Chunks {
		for _, s := range splitSentences(c.Content) {
			terms := make(map[string]bool)
			for _, t := range contentTerms(s) {
				terms[t] = true
			}
			pool = append(pool, sentence{text: s, filename: c.Filename, order: len(pool), terms: terms})
		}
	}

	var b strings.Builder
	for i, fragment := range fragmentsOf(req) {
		if i > 0 {
			b.WriteString("\n\n")
		}
		picked := e.pick(pool, contentTerms(fragment))
		if len(picked) == 0 {
			fmt.Fprintf(&b, "%s: the provided documents contain no information about this.", fragment)
			continue
		}
		fmt.Fprintf(&b, "%s:", fragment)
		for _, s := range picked {
			fmt.Fprintf(&b, " %s [%s]", s.text, s.filename)
		}
	}
	return b.String(), nil
}

// pick returns the best matching sentences in context order
func (e *Extractive) pick(pool []sentence, terms []string) []sentence {
	type scored struct {
		s     sentence
		score int
	}
	var matches []scored
	for _, s := range pool {
		n := 0
		for _, t := range terms {
			if s.terms[t] {
				n++
			}
		}
		if n > 0 {
			matches = append(matches, scored{s, n})
		}
	}

	slices.SortStableFunc(matches, func(a, b scored) int {
		return b.score - a.score
	})
	if len(matches) > e.sentences {
		matches = matches[:e.sentences]
	}
	slices.SortFunc(matches, func(a, b scored) int {
		return a.s.order - b.s.order
	})

	out := make([]sentence, len(matches))
	for i, m := range matches {
		out[i] = m.s
	}
	return out
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true, "were": true,
	"what": true, "which": true, "who": true, "how": true, "when": true, "where": true,
	"does": true, "did": true, "our": true, "their": true, "this": true, "that": true,
	"with": true, "from": true, "about": true, "into": true, "have": true, "has": true,
}

// contentTerms returns the query terms of text minus stop words and short
// terms without digits.
func contentTerms(text string) []string {
	var out []string
	for _, t := range storage.QueryTerms(text) {
		if stopWords[t] || (len([]rune(t)) < 3 && !strings.ContainsAny(t, "0123456789")) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// splitSentences splits on terminal punctuation and line breaks
func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		s := strings.TrimSpace(cur.String())
		if s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' {
			flush()
			continue
		}
		cur.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			flush()
		}
	}
	flush()
	return out
}
