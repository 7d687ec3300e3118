package engine

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/asifkhan0410/recallchat/entity"
	"github.com/asifkhan0410/recallchat/errors"
	"github.com/asifkhan0410/recallchat/internal/mylog"
	"github.com/asifkhan0410/recallchat/memory"
)

type anthropicEngine struct {
	logger *mylog.Logger
	client *anthropic.Client
	conf   Config
}

var _ Engine = (*anthropicEngine)(nil)

func newAnthropicEngine(logger *mylog.Logger, conf Config) Engine {
	client := anthropic.NewClient(
		option.WithAPIKey(conf.AnthropicAPIKey),
	)

	return &anthropicEngine{
		logger: logger,
		client: &client,
		conf:   conf,
	}
}

func (e *anthropicEngine) Generate(ctx context.Context, history []entity.Message, memories []memory.Memory) (*Response, error) {
	messages := make([]anthropic.MessageParam, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case entity.MessageRoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	res, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.conf.Model),
		MaxTokens: e.conf.MaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: buildSystemPrompt(memories)},
		},
		Temperature: anthropic.Float(e.conf.Temperature),
		Messages:    messages,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "anthropic message failed")
	}

	var sb strings.Builder
	for _, content := range res.Content {
		switch block := content.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(block.Text)
		}
	}

	content := sb.String()
	return &Response{
		Content:        content,
		CitedMemoryIDs: ExtractCitations(content),
	}, nil
}
