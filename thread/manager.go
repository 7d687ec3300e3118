package thread

import (
	"context"
	"encoding/json"

	"github.com/asifkhan0410/recallchat/entity"
	"github.com/asifkhan0410/recallchat/errors"
	"github.com/asifkhan0410/recallchat/internal/db"
	"github.com/asifkhan0410/recallchat/internal/mylog"
	"gorm.io/gorm"
)

type (
	Manager interface {
		CreateConversation(ctx context.Context, userID, title string) (*entity.Conversation, error)
		GetConversation(ctx context.Context, conversationID, userID string) (*entity.Conversation, error)
		GetConversations(ctx context.Context, userID string) ([]entity.Conversation, error)
		DeleteConversation(ctx context.Context, conversationID, userID string) error
		RenameConversation(ctx context.Context, conversationID, title string) error
		TouchConversation(ctx context.Context, conversationID string) error

		AddMessage(ctx context.Context, conversationID string, role entity.MessageRole, content string) (*entity.Message, error)
		GetMessages(ctx context.Context, conversationID string) ([]entity.Message, error)

		CreateSystemAnchor(ctx context.Context, userID string, kind SystemAnchorKind, snapshot AnchorSnapshot) (*entity.Message, error)

		AddMemoryReferences(ctx context.Context, refs []entity.MemoryReference) error
		GetMemoryReferences(ctx context.Context, messageID, userID string) ([]entity.MemoryReference, error)
	}

	manager struct {
		logger *mylog.Logger
		db     *gorm.DB
	}

	// SystemAnchorKind selects which per-user synthetic conversation a
	// system message is filed under.
	SystemAnchorKind string

	// AnchorSnapshot is serialized into the synthetic system message so the
	// UI can show what changed even after the memory is gone remotely.
	AnchorSnapshot struct {
		MemoryID      string `json:"memoryId"`
		MemoryContent string `json:"memoryContent,omitempty"`
		OldContent    string `json:"oldContent,omitempty"`
		NewContent    string `json:"newContent,omitempty"`
	}
)

const (
	SystemAnchorUpdates   SystemAnchorKind = "[System] Memory Updates"
	SystemAnchorDeletions SystemAnchorKind = "[System] Memory Deletions"
)

var (
	_ Manager = (*manager)(nil)
)

func NewManager(logger *mylog.Logger, gdb *gorm.DB) Manager {
	return &manager{
		logger: logger,
		db:     gdb,
	}
}

func (m *manager) CreateConversation(ctx context.Context, userID, title string) (*entity.Conversation, error) {
	_, tx := db.OpenSession(ctx, m.db)

	conversation := entity.Conversation{
		UserID: userID,
		Title:  title,
	}
	if err := tx.Create(&conversation).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to create conversation")
	}

	return &conversation, nil
}

func (m *manager) GetConversation(ctx context.Context, conversationID, userID string) (*entity.Conversation, error) {
	_, tx := db.OpenSession(ctx, m.db)

	var conversation entity.Conversation
	if r := tx.Find(&conversation, "id = ? AND user_id = ?", conversationID, userID); r.Error != nil {
		return nil, errors.Wrapf(r.Error, "failed to find conversation")
	} else if r.RowsAffected == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "conversation not found")
	}

	return &conversation, nil
}

func (m *manager) GetConversations(ctx context.Context, userID string) ([]entity.Conversation, error) {
	_, tx := db.OpenSession(ctx, m.db)

	var conversations []entity.Conversation
	if err := tx.Where("user_id = ?", userID).Order("updated_at DESC").Find(&conversations).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to find conversations")
	}

	return conversations, nil
}

func (m *manager) DeleteConversation(ctx context.Context, conversationID, userID string) error {
	_, tx := db.OpenSession(ctx, m.db)

	r := tx.Where("id = ? AND user_id = ?", conversationID, userID).Delete(&entity.Conversation{})
	if r.Error != nil {
		return errors.Wrapf(r.Error, "failed to delete conversation")
	}
	if r.RowsAffected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "conversation not found")
	}

	return nil
}

func (m *manager) RenameConversation(ctx context.Context, conversationID, title string) error {
	_, tx := db.OpenSession(ctx, m.db)

	r := tx.Model(&entity.Conversation{}).Where("id = ?", conversationID).Update("title", title)
	if r.Error != nil {
		return errors.Wrapf(r.Error, "failed to rename conversation")
	}
	if r.RowsAffected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "conversation not found")
	}

	return nil
}

func (m *manager) TouchConversation(ctx context.Context, conversationID string) error {
	_, tx := db.OpenSession(ctx, m.db)

	return errors.Wrapf(
		tx.Model(&entity.Conversation{}).Where("id = ?", conversationID).Update("updated_at", tx.NowFunc()).Error,
		"failed to touch conversation",
	)
}

func (m *manager) AddMessage(ctx context.Context, conversationID string, role entity.MessageRole, content string) (*entity.Message, error) {
	_, tx := db.OpenSession(ctx, m.db)

	var msg entity.Message
	if err := tx.Transaction(func(tx *gorm.DB) error {
		var conversation entity.Conversation
		if r := tx.Find(&conversation, "id = ?", conversationID); r.Error != nil {
			return errors.Wrapf(r.Error, "failed to find conversation")
		} else if r.RowsAffected == 0 {
			return errors.Wrapf(errors.ErrNotFound, "conversation not found")
		}

		msg.ConversationID = conversation.ID
		msg.Role = role
		msg.Content = content

		if err := tx.Create(&msg).Error; err != nil {
			return errors.Wrapf(err, "failed to save message")
		}

		return nil
	}); err != nil {
		return nil, err
	}

	return &msg, nil
}

func (m *manager) GetMessages(ctx context.Context, conversationID string) ([]entity.Message, error) {
	_, tx := db.OpenSession(ctx, m.db)

	var messages []entity.Message
	if err := tx.Where("conversation_id = ?", conversationID).Order("created_at ASC").Find(&messages).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to find messages")
	}

	return messages, nil
}

// CreateSystemAnchor files a synthetic system message under the user's
// "[System] Memory Updates" or "[System] Memory Deletions" conversation.
// Every ledger entry must reference some message; these anchors exist for
// operations with no real conversational trigger.
func (m *manager) CreateSystemAnchor(ctx context.Context, userID string, kind SystemAnchorKind, snapshot AnchorSnapshot) (*entity.Message, error) {
	_, tx := db.OpenSession(ctx, m.db)

	content, err := json.Marshal(snapshot)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode anchor snapshot")
	}

	var msg entity.Message
	if err := tx.Transaction(func(tx *gorm.DB) error {
		var conversation entity.Conversation
		r := tx.Find(&conversation, "user_id = ? AND title = ?", userID, string(kind))
		if r.Error != nil {
			return errors.Wrapf(r.Error, "failed to find system conversation")
		}
		if r.RowsAffected == 0 {
			conversation = entity.Conversation{UserID: userID, Title: string(kind)}
			if err := tx.Create(&conversation).Error; err != nil {
				return errors.Wrapf(err, "failed to create system conversation")
			}
		}

		msg.ConversationID = conversation.ID
		msg.Role = entity.MessageRoleSystem
		msg.Content = string(content)

		return errors.Wrapf(tx.Create(&msg).Error, "failed to save system message")
	}); err != nil {
		return nil, err
	}

	return &msg, nil
}

func (m *manager) AddMemoryReferences(ctx context.Context, refs []entity.MemoryReference) error {
	if len(refs) == 0 {
		return nil
	}

	_, tx := db.OpenSession(ctx, m.db)

	return errors.Wrapf(tx.Create(&refs).Error, "failed to save memory references")
}

func (m *manager) GetMemoryReferences(ctx context.Context, messageID, userID string) ([]entity.MemoryReference, error) {
	_, tx := db.OpenSession(ctx, m.db)

	var refs []entity.MemoryReference
	if err := tx.
		Select("memory_references.*").
		Joins("JOIN messages ON messages.id = memory_references.message_id").
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("memory_references.message_id = ? AND conversations.user_id = ?", messageID, userID).
		Order("memory_references.reference_order ASC").
		Find(&refs).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to find memory references")
	}

	return refs, nil
}
