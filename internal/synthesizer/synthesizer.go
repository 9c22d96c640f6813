// Package synthesizer turns a question and its ranked context chunks into an
// answer. Two implementations are provided: an LLM-backed synthesizer built
// on langchaingo and an offline extractive synthesizer.
package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoContext is returned when a request carries no context chunks
var ErrNoContext = errors.New("no context chunks to synthesize from")

// ContextChunk is one ranked passage handed to the synthesizer
type ContextChunk struct {
	Filename string
	Content  string
}

// Request is a synthesis request
type Request struct {
	Question  string
	Fragments []string // decomposed parts of Question, each must be addressed
	Chunks    []ContextChunk
}

// Synthesizer produces an answer from ranked context
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (string, error)
	Name() string
}

// fragmentsOf returns the request's fragments, or the question itself
func fragmentsOf(req Request) []string {
	if len(req.Fragments) == 0 {
		return []string{req.Question}
	}
	return req.Fragments
}

// BuildInstructions returns the system instructions for a request. They
// require every fragment to be answered, or its absence stated, and the
// answer to stay within the supplied context.
func BuildInstructions(req Request) string {
	var b strings.Builder
	b.WriteString("You answer questions using only the numbered context passages provided.\n")
	b.WriteString("The question has these parts. Address every part explicitly, in order:\n")
	for i, f := range fragmentsOf(req) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, f)
	}
	b.WriteString("If the context holds no information for a part, say so for that part instead of omitting it.\n")
	b.WriteString("Cite passages by filename. Do not use outside knowledge.")
	return b.String()
}

// BuildContext renders chunks as numbered passages labelled with their filename
func BuildContext(req Request) string {
	var b strings.Builder
	for i, c := range req.Chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s\n%s", i+1, c.Filename, strings.TrimSpace(c.Content))
	}
	return b.String()
}

// BuildPrompt returns the user message: context followed by the question
func BuildPrompt(req Request) string {
	return "Context:\n" + BuildContext(req) + "\n\nQuestion: " + strings.TrimSpace(req.Question)
}
