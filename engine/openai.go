package engine

import (
	"context"

	"github.com/asifkhan0410/recallchat/entity"
	"github.com/asifkhan0410/recallchat/errors"
	"github.com/asifkhan0410/recallchat/internal/mylog"
	"github.com/asifkhan0410/recallchat/memory"
	goopenai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type openaiEngine struct {
	logger *mylog.Logger
	client *goopenai.Client
	conf   Config
	models []string
}

var _ Engine = (*openaiEngine)(nil)

func newOpenAIEngine(logger *mylog.Logger, conf Config) Engine {
	client := goopenai.NewClient(
		option.WithAPIKey(conf.OpenAIAPIKey),
	)

	models := []string{conf.Model}
	if conf.Model != "gpt-4o-mini" {
		models = append(models, "gpt-4o-mini")
	}

	return &openaiEngine{
		logger: logger,
		client: &client,
		conf:   conf,
		models: models,
	}
}

func (e *openaiEngine) Generate(ctx context.Context, history []entity.Message, memories []memory.Memory) (*Response, error) {
	messages := make([]goopenai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	messages = append(messages, goopenai.SystemMessage(buildSystemPrompt(memories)))
	for _, msg := range history {
		switch msg.Role {
		case entity.MessageRoleAssistant:
			messages = append(messages, goopenai.AssistantMessage(msg.Content))
		case entity.MessageRoleSystem:
			messages = append(messages, goopenai.SystemMessage(msg.Content))
		default:
			messages = append(messages, goopenai.UserMessage(msg.Content))
		}
	}

	var lastErr error
	for _, model := range e.models {
		res, err := e.client.Chat.Completions.New(ctx, goopenai.ChatCompletionNewParams{
			Model:       goopenai.ChatModel(model),
			Messages:    messages,
			Temperature: goopenai.Float(e.conf.Temperature),
			MaxTokens:   goopenai.Int(e.conf.MaxTokens),
		})
		if err != nil {
			e.logger.Warn("chat completion failed, trying next model", "model", model, "error", err)
			lastErr = err
			continue
		}
		if len(res.Choices) == 0 {
			lastErr = errors.New("chat completion returned no choices")
			continue
		}

		content := res.Choices[0].Message.Content
		return &Response{
			Content:        content,
			CitedMemoryIDs: ExtractCitations(content),
		}, nil
	}

	return nil, errors.Wrapf(lastErr, "all models failed")
}
