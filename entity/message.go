package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

type Message struct {
	ID             string       `gorm:"primaryKey"`
	ConversationID string       `gorm:"index:idx_messages_conversation_id;not null"`
	Role           MessageRole  `gorm:"not null"`
	Content        string       `gorm:"type:text;not null"`
	CreatedAt      time.Time
	Conversation   Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

func (m *Message) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
