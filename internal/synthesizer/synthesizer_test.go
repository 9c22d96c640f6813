package synthesizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// mockModel records the messages it receives and returns a fixed answer
type mockModel struct {
	answer   string
	err      error
	messages []llms.MessageContent
}

func (m *mockModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	if m.err != nil {
		return nil, m.err
	}
	if m.answer == "" {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.answer}}}, nil
}

func (m *mockModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func twoTopicRequest() Request {
	return Request{
		Question:  "What is the vacation policy and how is the dental plan funded?",
		Fragments: []string{"What is the vacation policy", "how is the dental plan funded"},
		Chunks: []ContextChunk{
			{Filename: "handbook.pdf", Content: "Vacation accrues at 1.5 days per month. Unused vacation expires in March."},
			{Filename: "benefits.pdf", Content: "The dental plan is funded by employer contributions."},
		},
	}
}

func TestBuildInstructions_ListsEveryFragment(t *testing.T) {
	req := twoTopicRequest()
	instructions := BuildInstructions(req)

	assert.Contains(t, instructions, "1. What is the vacation policy")
	assert.Contains(t, instructions, "2. how is the dental plan funded")
	assert.Contains(t, instructions, "Address every part")
	assert.Contains(t, instructions, "no information for a part")

	// Without fragments the question itself is the only part
	req.Fragments = nil
	assert.Contains(t, BuildInstructions(req), "1. "+req.Question)
}

func TestBuildContext(t *testing.T) {
	ctx := BuildContext(twoTopicRequest())
	assert.True(t, strings.HasPrefix(ctx, "[1] handbook.pdf\nVacation"))
	assert.Contains(t, ctx, "\n\n[2] benefits.pdf\nThe dental plan")
}

func TestLLM_Synthesize(t *testing.T) {
	model := &mockModel{answer: "  Vacation accrues monthly. Dental is employer funded.  "}
	s := NewLLM(model, "mock")

	answer, err := s.Synthesize(context.Background(), twoTopicRequest())
	require.NoError(t, err)
	assert.Equal(t, "Vacation accrues monthly. Dental is employer funded.", answer)
	assert.Equal(t, "mock", s.Name())

	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	system := model.messages[0].Parts[0].(llms.TextContent).Text
	assert.Contains(t, system, "how is the dental plan funded")
	human := model.messages[1].Parts[0].(llms.TextContent).Text
	assert.Contains(t, human, "benefits.pdf")
}

func TestLLM_Errors(t *testing.T) {
	_, err := NewLLM(&mockModel{answer: "x"}, "mock").Synthesize(context.Background(), Request{Question: "q"})
	assert.ErrorIs(t, err, ErrNoContext)

	_, err = NewLLM(&mockModel{}, "mock").Synthesize(context.Background(), twoTopicRequest())
	assert.ErrorIs(t, err, ErrEmptyAnswer)

	boom := errors.New("upstream 503")
	_, err = NewLLM(&mockModel{err: boom}, "mock").Synthesize(context.Background(), twoTopicRequest())
	assert.ErrorIs(t, err, boom)
}

func TestNewOpenAI_RequiresModel(t *testing.T) {
	_, err := NewOpenAI(Config{})
	assert.Error(t, err)

	s, err := NewOpenAI(Config{Model: "gpt-4o-mini", BaseURL: "http://localhost:8080/v1"})
	require.NoError(t, err)
	assert.Equal(t, "openai:gpt-4o-mini", s.Name())
}

func TestExtractive_AddressesEveryFragment(t *testing.T) {
	req := twoTopicRequest()
	req.Fragments = append(req.Fragments, "parking reimbursement")

	answer, err := NewExtractive(0).Synthesize(context.Background(), req)
	require.NoError(t, err)

	parts := strings.Split(answer, "\n\n")
	require.Len(t, parts, 3)
	assert.Contains(t, parts[0], "Vacation accrues at 1.5 days per month. [handbook.pdf]")
	assert.Contains(t, parts[1], "The dental plan is funded by employer contributions. [benefits.pdf]")
	assert.Equal(t, "parking reimbursement: the provided documents contain no information about this.", parts[2])
}

func TestExtractive_Deterministic(t *testing.T) {
	e := NewExtractive(1)
	a, err := e.Synthesize(context.Background(), twoTopicRequest())
	require.NoError(t, err)
	b, err := e.Synthesize(context.Background(), twoTopicRequest())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("Rate is 1.5 per cent. Really?\nNew line item")
	assert.Equal(t, []string{"Rate is 1.5 per cent.", "Really?", "New line item"}, got)
}
