package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrEmptyAnswer is returned when the model produced no text
var ErrEmptyAnswer = errors.New("model returned an empty answer")

// Config configures an OpenAI-compatible chat model
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
}

// LLM synthesizes answers with a chat model
type LLM struct {
	model       llms.Model
	name        string
	temperature float64
	logger      *slog.Logger
}

// Option configures an LLM synthesizer.
type Option func(*LLM)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *LLM) {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(t float64) Option {
	return func(l *LLM) {
		l.temperature = t
	}
}

// NewOpenAI creates a synthesizer for an OpenAI-compatible chat endpoint.
// An empty API key is sent as "none" for local services without auth.
func NewOpenAI(cfg Config, opts ...Option) (*LLM, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("synthesis model is required")
	}
	token := cfg.APIKey
	if token == "" {
		token = "none"
	}

	clientOpts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create chat client: %w", err)
	}

	opts = append([]Option{WithTemperature(cfg.Temperature)}, opts...)
	return NewLLM(client, "openai:"+cfg.Model, opts...), nil
}

// NewLLM wraps any langchaingo model
func NewLLM(model llms.Model, name string, opts ...Option) *LLM {
	l := &LLM{
		model:  model,
		name:   name,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "llm-synthesizer")
	return l
}

// Name returns the model identifier
func (l *LLM) Name() string {
	return l.name
}

// Synthesize sends the instructions and context to the model and returns its answer
func (l *LLM) Synthesize(ctx context.Context, req Request) (string, error) {
	if len(req.Chunks) == 0 {
		return "", ErrNoContext
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(BuildInstructions(req))},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(BuildPrompt(req))},
		},
	}

	l.logger.Debug("synthesizing answer",
		"fragments", len(fragmentsOf(req)),
		"chunks", len(req.Chunks))

	response, err := l.model.GenerateContent(ctx, content, llms.WithTemperature(l.temperature))
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", ErrEmptyAnswer
	}

	answer := strings.TrimSpace(response.Choices[0].Content)
	if answer == "" {
		return "", ErrEmptyAnswer
	}
	return answer, nil
}
