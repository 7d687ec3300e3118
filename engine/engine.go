package engine

import (
	"context"

	"github.com/asifkhan0410/recallchat/entity"
	"github.com/asifkhan0410/recallchat/internal/mylog"
	"github.com/asifkhan0410/recallchat/memory"
)

type (
	// Engine turns a conversation history plus retrieved memories into an
	// assistant reply. Replies cite memories inline as [memory:<id>].
	Engine interface {
		Generate(ctx context.Context, history []entity.Message, memories []memory.Memory) (*Response, error)
	}

	Response struct {
		Content        string
		CitedMemoryIDs []string
	}

	Config struct {
		Provider        string
		Model           string
		OpenAIAPIKey    string
		AnthropicAPIKey string
		Temperature     float64
		MaxTokens       int64
	}
)

const apologyMessage = "I apologize, but I am currently unable to generate responses. Please check the API configuration."

// NewEngine picks the provider from config. A missing API key gives the
// fallback engine, which still answers with a fixed apology so the chat
// pipeline keeps persisting messages.
func NewEngine(logger *mylog.Logger, conf Config) Engine {
	switch conf.Provider {
	case "anthropic":
		if conf.AnthropicAPIKey == "" {
			logger.Warn("anthropic api key missing, responses will be placeholders")
			return &fallbackEngine{}
		}
		return newAnthropicEngine(logger, conf)
	default:
		if conf.OpenAIAPIKey == "" {
			logger.Warn("openai api key missing, responses will be placeholders")
			return &fallbackEngine{}
		}
		return newOpenAIEngine(logger, conf)
	}
}

type fallbackEngine struct{}

var _ Engine = (*fallbackEngine)(nil)

func (e *fallbackEngine) Generate(context.Context, []entity.Message, []memory.Memory) (*Response, error) {
	return &Response{Content: apologyMessage, CitedMemoryIDs: []string{}}, nil
}
