package llm

import (
	"context"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"go.uber.org/zap"
)

// NewChatClient selects the chat provider named in the deployment config.
func NewChatClient(provider, model string) LLMClient {
	switch provider {
	case "", "anthropic":
		return NewAnthropicClient(model)
	case "groq":
		return NewGroqClient(model)
	default:
		logger.Fatal("Unknown llm provider", zap.String("provider", provider))
		return nil
	}
}

// LLMClient is the chat-completion contract the answer layer depends on.
type LLMClient interface {
	GenerateInference(
		ctx context.Context,
		messages []Message,
		callback func(chunk string) error,
		opts ...LLMOption,
	) error

	GetModel() string
}

type LLMSettings struct {
	model       string  // model name
	temperature float64 // randomness (0.0 to 1.0)
	maxTokens   int     // maximum tokens to generate
	system      string  // system prompt
}

type LLMOption func(*LLMSettings)

func WithModel(model string) LLMOption {
	return func(s *LLMSettings) { s.model = model }
}

func WithTemperature(temp float64) LLMOption {
	return func(s *LLMSettings) { s.temperature = temp }
}

func WithMaxTokens(tokens int) LLMOption {
	return func(s *LLMSettings) { s.maxTokens = tokens }
}

func WithSystemPrompt(prompt string) LLMOption {
	return func(s *LLMSettings) { s.system = prompt }
}

type Message struct {
	Role    string `json:"role"`    // "user", "assistant", "system"
	Content string `json:"content"` // the message content
}
