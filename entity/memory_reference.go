package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MemoryReference is an immutable snapshot of a memory as it was cited by an
// assistant message. Later edits or deletions of the memory do not change
// what is shown as having grounded the answer.
type MemoryReference struct {
	ID              string                             `gorm:"primaryKey"`
	MessageID       string                             `gorm:"index:idx_memory_references_message_id;not null"`
	MemoryID        string                             `gorm:"not null"`
	MemoryText      string                             `gorm:"type:text;not null"`
	RelevanceScore  float64
	ReferenceOrder  int                                `gorm:"not null"`
	MemoryMetadata  datatypes.JSONType[map[string]any]
	MemoryCreatedAt string
	MemoryUpdatedAt string
	CreatedAt       time.Time
	Message         Message                            `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

func (r *MemoryReference) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
