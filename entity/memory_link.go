package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MemoryOperation string

const (
	MemoryOperationAdd    MemoryOperation = "add"
	MemoryOperationUpdate MemoryOperation = "update"
	MemoryOperationDelete MemoryOperation = "delete"
)

// MemoryLink is one entry of the provenance ledger. Entries are append-only:
// they are created once and never mutated, a restore is recorded as a new
// add entry rather than a reversal of the delete.
type MemoryLink struct {
	ID         string          `gorm:"primaryKey"`
	MessageID  string          `gorm:"index:idx_memory_links_message_id;not null"`
	Mem0ID     string          `gorm:"index:idx_memory_links_mem0_id;not null"`
	Operation  MemoryOperation `gorm:"not null"`
	OldContent *string         `gorm:"type:text"`
	NewContent *string         `gorm:"type:text"`
	CreatedAt  time.Time
	Message    Message         `gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

func (l *MemoryLink) BeforeCreate(_ *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
