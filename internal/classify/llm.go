package classify

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/ricesearch/review-topics/internal/pkg/errors"
)

// DefaultTemperature is the sampling temperature used when none is set.
const DefaultTemperature = 0.3

// ChatModel answers one prompt. Implementations must be safe for sequential
// reuse across reviews.
type ChatModel interface {
	Chat(ctx context.Context, system, prompt string) (string, error)
}

// OpenAIConfig configures an OpenAI-compatible chat endpoint such as Ollama's /v1 API.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64 // 0 selects DefaultTemperature
	Timeout     time.Duration
	MaxRetries  int
}

// OpenAIChat is a ChatModel backed by the chat completions API.
type OpenAIChat struct {
	client      openai.Client
	model       string
	temperature float64
}

// NewOpenAIChat creates a chat client for cfg.Model.
func NewOpenAIChat(cfg OpenAIConfig) (*OpenAIChat, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.ValidationError("model name is required")
	}

	opts := []option.RequestOption{option.WithMaxRetries(cfg.MaxRetries)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}

	return &OpenAIChat{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: temperature,
	}, nil
}

// Model returns the model name sent with every request.
func (c *OpenAIChat) Model() string {
	return c.model
}

// Chat sends the system prompt and the user prompt and returns the first choice.
func (c *OpenAIChat) Chat(ctx context.Context, system, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(c.model),
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		// The per-request timeout expired while ctx is still live.
		if stderrors.Is(err, context.DeadlineExceeded) {
			return "", errors.TimeoutError("chat completion", err).WithDetail("model", c.model)
		}
		return "", errors.LLMError("chat completion failed", err).WithDetail("model", c.model)
	}
	if len(resp.Choices) == 0 {
		return "", errors.LLMError("chat completion returned no choices", nil).WithDetail("model", c.model)
	}
	return resp.Choices[0].Message.Content, nil
}
