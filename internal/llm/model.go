package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/raphaelgruber/ragchat/internal/config"
	"github.com/raphaelgruber/ragchat/internal/metrics"
)

// GenerationOptions are the sampling settings sent with every answer.
type GenerationOptions struct {
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
}

// DefaultGenerationOptions returns the settings used for chat answers.
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		Temperature: 0.7,
		TopP:        0.8,
		TopK:        40,
		MaxTokens:   2048,
	}
}

const (
	answerSystemPrompt = `You are a friendly AI assistant that helps users with questions about the Happytalk service.
Answer the user's question accurately and helpfully based on the given context.
If there is previous conversation, take its context into account.`

	answerAcknowledgement = "Understood. I will answer questions about the Happytalk service."

	answerInstruction = "Answer the question based on the information above. If there is previous conversation, continue it naturally."
)

// Model wraps langchaingo LLM for text generation.
type Model struct {
	llm       llms.Model
	modelName string
	opts      GenerationOptions
	metrics   *metrics.Collector
}

// NewModel creates an LLM model based on configuration.
func NewModel(ctx context.Context, cfg config.Config, collector *metrics.Collector) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderGoogleAI:
		if cfg.GeminiAPIKey == "" {
			return nil, errors.New("GEMINI_API_KEY required")
		}
		opts := DefaultGenerationOptions()
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.GeminiAPIKey),
			googleai.WithDefaultModel(cfg.LLMModel),
			googleai.WithDefaultTemperature(opts.Temperature),
			googleai.WithDefaultTopP(opts.TopP),
			googleai.WithDefaultTopK(opts.TopK),
			googleai.WithDefaultMaxTokens(opts.MaxTokens),
		)
		if err != nil {
			return nil, fmt.Errorf("create googleai model: %w", err)
		}

	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, errors.New("ANTHROPIC_API_KEY required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		client, bedrockErr := newBedrockClient(ctx, cfg.AWSRegion)
		if bedrockErr != nil {
			return nil, bedrockErr
		}
		model, err = bedrock.New(
			bedrock.WithModel(cfg.LLMModel),
			bedrock.WithClient(client),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return NewModelWith(model, cfg.LLMModel, collector), nil
}

// NewModelWith wraps an existing langchaingo model.
func NewModelWith(model llms.Model, modelName string, collector *metrics.Collector) *Model {
	return &Model{
		llm:       model,
		modelName: modelName,
		opts:      DefaultGenerationOptions(),
		metrics:   collector,
	}
}

// GenerateAnswer produces an answer to query grounded in promptContext.
// The system prompt is sent as a user turn followed by a model
// acknowledgement so providers without system roles behave the same.
func (m *Model) GenerateAnswer(ctx context.Context, query, promptContext string) (string, error) {
	userPrompt := fmt.Sprintf("%s\n\nCurrent question: %s\n\n%s", promptContext, query, answerInstruction)

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, answerSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeAI, answerAcknowledgement),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	return m.generate(ctx, messages)
}

func (m *Model) generate(ctx context.Context, messages []llms.MessageContent) (string, error) {
	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(m.opts.Temperature),
		llms.WithTopP(m.opts.TopP),
		llms.WithTopK(m.opts.TopK),
		llms.WithMaxTokens(m.opts.MaxTokens),
	)
	duration := time.Since(start)

	if err != nil {
		slog.Warn("generation failed", "model", m.modelName, "duration_ms", duration.Milliseconds(), "error", err)
		m.metrics.RecordFailure(metrics.OpLLMGenerate, duration)
		return "", fmt.Errorf("%w: %w", ErrGeneration, wrapFatalError(err))
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: no response choices", ErrGeneration)
	}

	choice := response.Choices[0]
	inputTokens, outputTokens := tokenUsage(choice.GenerationInfo)
	m.metrics.RecordLLMUsage(metrics.OpLLMGenerate, duration, inputTokens, outputTokens)

	slog.Debug("generation complete", "model", m.modelName, "duration_ms", duration.Milliseconds(),
		"input_tokens", inputTokens, "output_tokens", outputTokens)
	return choice.Content, nil
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// tokenUsage reads token counts from provider generation info. Providers
// disagree on key names and integer types.
func tokenUsage(info map[string]any) (input, output int64) {
	input = firstInt(info, "input_tokens", "InputTokens", "PromptTokens")
	output = firstInt(info, "output_tokens", "OutputTokens", "CompletionTokens")
	return input, output
}

func firstInt(info map[string]any, keys ...string) int64 {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}
