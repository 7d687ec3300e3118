package ledger

import (
	"context"
	"time"

	"github.com/asifkhan0410/recallchat/entity"
	"github.com/asifkhan0410/recallchat/errors"
	"github.com/asifkhan0410/recallchat/internal/db"
	"github.com/asifkhan0410/recallchat/internal/mylog"
	"gorm.io/gorm"
)

type (
	// Ledger is the append-only record of memory operations. Entries are
	// never updated or deleted; corrections happen by appending new ones.
	Ledger interface {
		Append(ctx context.Context, entry AppendEntry) (*entity.MemoryLink, error)
		ActivityForMessage(ctx context.Context, messageID, userID string) (*Activity, error)
		DeletedMemoryIDs(ctx context.Context, userID string) ([]string, error)
		LatestDeletionRecord(ctx context.Context, mem0ID, userID string) (*entity.MemoryLink, error)
		ReconciliationCandidates(ctx context.Context, userID string, window time.Duration) ([]Candidate, error)
	}

	AppendEntry struct {
		MessageID  string
		Mem0ID     string
		Operation  entity.MemoryOperation
		OldContent *string
		NewContent *string
	}

	// Activity aggregates what happened to the memory store because of a
	// single message.
	Activity struct {
		Added   int                 `json:"added"`
		Updated int                 `json:"updated"`
		Deleted int                 `json:"deleted"`
		Entries []entity.MemoryLink `json:"entries"`
	}

	// Candidate is a system-anchored update or delete that has not yet been
	// re-attributed to a real conversational message.
	Candidate struct {
		Link           entity.MemoryLink
		AnchorContent  string
		ConversationID string
	}

	ledger struct {
		logger *mylog.Logger
		db     *gorm.DB
	}
)

var (
	_ Ledger = (*ledger)(nil)
)

func NewLedger(logger *mylog.Logger, gdb *gorm.DB) Ledger {
	return &ledger{
		logger: logger,
		db:     gdb,
	}
}

func (l *ledger) Append(ctx context.Context, entry AppendEntry) (*entity.MemoryLink, error) {
	if entry.MessageID == "" || entry.Mem0ID == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "message id and memory id are required")
	}

	switch entry.Operation {
	case entity.MemoryOperationAdd:
		if entry.OldContent != nil {
			return nil, errors.Wrapf(errors.ErrInvalidParams, "add entry must not carry old content")
		}
	case entity.MemoryOperationUpdate:
		if entry.OldContent == nil || entry.NewContent == nil {
			return nil, errors.Wrapf(errors.ErrInvalidParams, "update entry must carry old and new content")
		}
	case entity.MemoryOperationDelete:
		if entry.NewContent != nil {
			return nil, errors.Wrapf(errors.ErrInvalidParams, "delete entry must not carry new content")
		}
	default:
		return nil, errors.Wrapf(errors.ErrInvalidParams, "unknown operation %q", entry.Operation)
	}

	_, tx := db.OpenSession(ctx, l.db)

	link := entity.MemoryLink{
		MessageID:  entry.MessageID,
		Mem0ID:     entry.Mem0ID,
		Operation:  entry.Operation,
		OldContent: entry.OldContent,
		NewContent: entry.NewContent,
	}
	if err := tx.Create(&link).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to append memory link")
	}

	return &link, nil
}

func (l *ledger) ActivityForMessage(ctx context.Context, messageID, userID string) (*Activity, error) {
	_, tx := db.OpenSession(ctx, l.db)

	var links []entity.MemoryLink
	if err := tx.
		Select("memory_links.*").
		Joins("JOIN messages ON messages.id = memory_links.message_id").
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("memory_links.message_id = ? AND conversations.user_id = ?", messageID, userID).
		Order("memory_links.created_at ASC").
		Find(&links).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to find memory links")
	}

	activity := Activity{Entries: links}
	for _, link := range links {
		switch link.Operation {
		case entity.MemoryOperationAdd:
			activity.Added++
		case entity.MemoryOperationUpdate:
			activity.Updated++
		case entity.MemoryOperationDelete:
			activity.Deleted++
		}
	}

	return &activity, nil
}

func (l *ledger) DeletedMemoryIDs(ctx context.Context, userID string) ([]string, error) {
	_, tx := db.OpenSession(ctx, l.db)

	var ids []string
	if err := tx.Model(&entity.MemoryLink{}).
		Distinct("memory_links.mem0_id").
		Joins("JOIN messages ON messages.id = memory_links.message_id").
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("memory_links.operation = ? AND conversations.user_id = ?", entity.MemoryOperationDelete, userID).
		Pluck("memory_links.mem0_id", &ids).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to find deleted memory ids")
	}

	return ids, nil
}

func (l *ledger) LatestDeletionRecord(ctx context.Context, mem0ID, userID string) (*entity.MemoryLink, error) {
	_, tx := db.OpenSession(ctx, l.db)

	var link entity.MemoryLink
	r := tx.
		Select("memory_links.*").
		Joins("JOIN messages ON messages.id = memory_links.message_id").
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("memory_links.mem0_id = ? AND memory_links.operation = ? AND conversations.user_id = ?",
			mem0ID, entity.MemoryOperationDelete, userID).
		Order("memory_links.created_at DESC").
		Limit(1).
		Find(&link)
	if r.Error != nil {
		return nil, errors.Wrapf(r.Error, "failed to find deletion record")
	}
	if r.RowsAffected == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "no deletion record for memory %q", mem0ID)
	}

	return &link, nil
}

// ReconciliationCandidates returns system-anchored update/delete entries
// within the window that have no later non-system entry for the same
// operation and memory. A later real-anchored entry means a previous
// reconciliation pass already attributed the operation.
func (l *ledger) ReconciliationCandidates(ctx context.Context, userID string, window time.Duration) ([]Candidate, error) {
	_, tx := db.OpenSession(ctx, l.db)

	since := tx.NowFunc().Add(-window)

	var rows []struct {
		ID             string
		MessageID      string
		Mem0ID         string
		Operation      entity.MemoryOperation
		OldContent     *string
		NewContent     *string
		CreatedAt      time.Time
		AnchorContent  string
		ConversationID string
	}
	if err := tx.Model(&entity.MemoryLink{}).
		Select(`memory_links.id, memory_links.message_id, memory_links.mem0_id,
			memory_links.operation, memory_links.old_content, memory_links.new_content,
			memory_links.created_at,
			messages.content AS anchor_content, messages.conversation_id AS conversation_id`).
		Joins("JOIN messages ON messages.id = memory_links.message_id").
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("conversations.user_id = ?", userID).
		Where("messages.role = ?", entity.MessageRoleSystem).
		Where("memory_links.operation IN ?", []entity.MemoryOperation{entity.MemoryOperationUpdate, entity.MemoryOperationDelete}).
		Where("memory_links.created_at > ?", since).
		Where(`NOT EXISTS (
			SELECT 1 FROM memory_links later
			JOIN messages later_msg ON later_msg.id = later.message_id
			WHERE later.mem0_id = memory_links.mem0_id
			  AND later.operation = memory_links.operation
			  AND later.created_at > memory_links.created_at
			  AND later_msg.role <> ?
		)`, entity.MessageRoleSystem).
		Order("memory_links.created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "failed to find reconciliation candidates")
	}

	candidates := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		candidates = append(candidates, Candidate{
			Link: entity.MemoryLink{
				ID:         row.ID,
				MessageID:  row.MessageID,
				Mem0ID:     row.Mem0ID,
				Operation:  row.Operation,
				OldContent: row.OldContent,
				NewContent: row.NewContent,
				CreatedAt:  row.CreatedAt,
			},
			AnchorContent:  row.AnchorContent,
			ConversationID: row.ConversationID,
		})
	}

	return candidates, nil
}
