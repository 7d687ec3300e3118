package recallchat

import (
	"context"
	"strings"

	"github.com/asifkhan0410/recallchat/engine"
	"github.com/asifkhan0410/recallchat/entity"
	"github.com/asifkhan0410/recallchat/errors"
	"github.com/asifkhan0410/recallchat/ledger"
	"github.com/asifkhan0410/recallchat/memory"
	"github.com/mokiat/gog"
	"github.com/samber/lo"
	"gorm.io/datatypes"
)

type SendMessageResult struct {
	UserMessage      *entity.Message
	AssistantMessage *entity.Message
	References       []entity.MemoryReference
}

const (
	searchLimit    = 5
	maxTitleLength = 50
)

// SendMessage runs one chat turn. Grounding and generation degrade
// gracefully; the user's message is persisted no matter what. Memory
// extraction and reconciliation run in the background after the reply is
// ready.
func (r *ChatRuntime) SendMessage(ctx context.Context, userID, conversationID, text string) (*SendMessageResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "message text is required")
	}

	conversation, err := r.threads.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	userMsg, err := r.threads.AddMessage(ctx, conversation.ID, entity.MessageRoleUser, text)
	if err != nil {
		return nil, err
	}

	if conversation.Title == "" {
		if err := r.autoTitle(ctx, conversation.ID, text); err != nil {
			r.logger.Warn("failed to title conversation", "conversation_id", conversation.ID, "error", err)
		}
	}

	history, err := r.threads.GetMessages(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}

	memories, err := r.memory.SearchMemories(ctx, userID, text, searchLimit)
	if err != nil {
		r.logger.Warn("memory search failed for turn", "conversation_id", conversation.ID, "error", err)
		memories = []memory.Memory{}
	}

	response, err := r.engine.Generate(ctx, history, memories)
	if err != nil {
		r.logger.Warn("generation failed, sending apology", "conversation_id", conversation.ID, "error", err)
		response = &engine.Response{
			Content:        "I apologize, but I am currently unable to generate responses. Please check the API configuration.",
			CitedMemoryIDs: []string{},
		}
	}

	assistantMsg, err := r.threads.AddMessage(ctx, conversation.ID, entity.MessageRoleAssistant, response.Content)
	if err != nil {
		return nil, err
	}

	references := buildReferences(assistantMsg.ID, response.CitedMemoryIDs, memories)
	if err := r.threads.AddMemoryReferences(ctx, references); err != nil {
		r.logger.Warn("failed to save memory references", "message_id", assistantMsg.ID, "error", err)
		references = nil
	}

	if err := r.threads.TouchConversation(ctx, conversation.ID); err != nil {
		r.logger.Warn("failed to touch conversation", "conversation_id", conversation.ID, "error", err)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.rememberTurn(context.WithoutCancel(ctx), userID, conversation.ID, userMsg.ID, text)
	}()

	return &SendMessageResult{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		References:       references,
	}, nil
}

// rememberTurn extracts memories from the user's message and reconciles
// pending operations. Nobody waits on it; failures are logged only.
func (r *ChatRuntime) rememberTurn(ctx context.Context, userID, conversationID, messageID, text string) {
	added, err := r.memory.AddMemory(ctx, userID, text, map[string]any{
		"conversation_id": conversationID,
		"message_id":      messageID,
	})
	if err != nil {
		r.logger.Warn("background memory add failed", "message_id", messageID, "error", err)
	}
	for _, add := range added {
		if !strings.EqualFold(add.Event, "ADD") {
			continue
		}
		if _, err := r.appendAddEntry(ctx, messageID, add.ID, add.Memory); err != nil {
			r.logger.Warn("failed to record memory add", "mem0_id", add.ID, "error", err)
		}
	}

	if _, err := r.reconciler.Reconcile(ctx, userID, messageID, text); err != nil {
		r.logger.Warn("reconciliation failed", "message_id", messageID, "error", err)
	}
}

func (r *ChatRuntime) appendAddEntry(ctx context.Context, messageID, mem0ID, content string) (*entity.MemoryLink, error) {
	return r.ledger.Append(ctx, ledger.AppendEntry{
		MessageID:  messageID,
		Mem0ID:     mem0ID,
		Operation:  entity.MemoryOperationAdd,
		NewContent: gog.PtrOf(content),
	})
}

func (r *ChatRuntime) autoTitle(ctx context.Context, conversationID, text string) error {
	title := []rune(strings.TrimSpace(text))
	if len(title) > maxTitleLength {
		title = append(title[:maxTitleLength], []rune("...")...)
	}
	return r.threads.RenameConversation(ctx, conversationID, string(title))
}

// buildReferences snapshots each cited memory in citation order. Citations
// of ids that were not among the retrieved memories are dropped.
func buildReferences(messageID string, citedIDs []string, memories []memory.Memory) []entity.MemoryReference {
	references := make([]entity.MemoryReference, 0, len(citedIDs))
	for _, id := range citedIDs {
		cited, ok := lo.Find(memories, func(m memory.Memory) bool {
			return m.ID == id
		})
		if !ok {
			continue
		}

		var score float64
		if cited.Score != nil {
			score = *cited.Score
		}

		references = append(references, entity.MemoryReference{
			MessageID:       messageID,
			MemoryID:        cited.ID,
			MemoryText:      cited.Memory,
			RelevanceScore:  score,
			ReferenceOrder:  len(references) + 1,
			MemoryMetadata:  datatypes.NewJSONType(cited.Metadata),
			MemoryCreatedAt: cited.CreatedAt,
			MemoryUpdatedAt: cited.UpdatedAt,
		})
	}
	return references
}
