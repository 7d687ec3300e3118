package memory

import (
	"context"

	"github.com/asifkhan0410/recallchat/cache"
	"github.com/asifkhan0410/recallchat/entity"
	"github.com/asifkhan0410/recallchat/errors"
	"github.com/asifkhan0410/recallchat/internal/mylog"
	"github.com/asifkhan0410/recallchat/ledger"
	"github.com/asifkhan0410/recallchat/mem0"
	"github.com/asifkhan0410/recallchat/thread"
	"github.com/mokiat/gog"
)

type (
	// Service is the single gatekeeper between the application and the
	// remote memory store. All reads go through the cache and the
	// delete-filter; all writes invalidate and are recorded in the ledger.
	Service interface {
		AddMemory(ctx context.Context, userID, text string, metadata map[string]any) ([]mem0.AddedMemory, error)
		SearchMemories(ctx context.Context, userID, query string, limit int) ([]Memory, error)
		GetAllMemories(ctx context.Context, userID string, limit, offset int) (*ListResult, error)
		GetMemoryByID(ctx context.Context, memoryID, userID string) (*Memory, error)
		UpdateMemory(ctx context.Context, memoryID, userID, text string) (bool, error)
		DeleteMemory(ctx context.Context, memoryID, userID string) (bool, error)
		RestoreMemory(ctx context.Context, memoryID, userID string) (*Memory, error)
		FilterDeleted(ctx context.Context, userID string, memories []Memory) ([]Memory, error)
	}

	service struct {
		logger  *mylog.Logger
		client  mem0.Client
		cache   *cache.Service
		ledger  ledger.Ledger
		threads thread.Manager
	}
)

var (
	_ Service = (*service)(nil)
)

func NewService(
	logger *mylog.Logger,
	client mem0.Client,
	cacheService *cache.Service,
	ledgerService ledger.Ledger,
	threadManager thread.Manager,
) Service {
	return &service{
		logger:  logger,
		client:  client,
		cache:   cacheService,
		ledger:  ledgerService,
		threads: threadManager,
	}
}

// AddMemory is the one write that propagates failure: losing an extraction
// silently would leave the assistant confidently forgetful.
func (s *service) AddMemory(ctx context.Context, userID, text string, metadata map[string]any) ([]mem0.AddedMemory, error) {
	if userID == "" || text == "" {
		return nil, errors.Wrapf(errors.ErrInvalidParams, "user id and text are required")
	}

	added, err := s.client.Add(ctx, text, mem0.AddOptions{
		UserID:   userID,
		Metadata: metadata,
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrAddFailed, "mem0 add failed: %v", err)
	}

	s.cache.InvalidateUser(userID)

	return added, nil
}

func (s *service) SearchMemories(ctx context.Context, userID, query string, limit int) ([]Memory, error) {
	if cached, ok := s.cache.GetSearchResults(userID, query, limit); ok {
		if memories, ok := cached.([]Memory); ok {
			// the deleted set may have grown since this entry was cached
			return s.FilterDeleted(ctx, userID, memories)
		}
	}

	raws, err := s.client.Search(ctx, query, mem0.SearchOptions{
		UserID: userID,
		Limit:  limit,
	})
	if err != nil {
		s.logger.Warn("memory search failed, returning no memories", "user_id", userID, "error", err)
		return []Memory{}, nil
	}

	memories, err := s.FilterDeleted(ctx, userID, normalizeAll(raws))
	if err != nil {
		return nil, err
	}

	s.cache.SetSearchResults(userID, query, limit, memories)

	return memories, nil
}

// GetAllMemories accepts an offset for pagination-shaped clients, but the
// remote listing comes back in a single page, so it is not forwarded.
func (s *service) GetAllMemories(ctx context.Context, userID string, limit, _ int) (*ListResult, error) {
	if cached, ok := s.cache.GetAllMemories(userID); ok {
		if memories, ok := cached.([]Memory); ok {
			filtered, err := s.FilterDeleted(ctx, userID, memories)
			if err != nil {
				return nil, err
			}
			return &ListResult{Results: filtered, Total: len(filtered)}, nil
		}
	}

	raws, err := s.client.GetAll(ctx, mem0.GetAllOptions{
		UserID: userID,
		Limit:  limit,
	})
	if err != nil {
		s.logger.Warn("memory listing failed, returning no memories", "user_id", userID, "error", err)
		return &ListResult{Results: []Memory{}}, nil
	}

	memories, err := s.FilterDeleted(ctx, userID, normalizeAll(raws))
	if err != nil {
		return nil, err
	}

	s.cache.SetAllMemories(userID, memories)

	return &ListResult{Results: memories, Total: len(memories)}, nil
}

// GetMemoryByID bypasses the cache: single-memory lookups back edit flows
// where staleness is worse than an extra round trip. Absent and failed
// lookups both come back as nil.
func (s *service) GetMemoryByID(ctx context.Context, memoryID, userID string) (*Memory, error) {
	deleted, err := s.ledger.DeletedMemoryIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, id := range deleted {
		if id == memoryID {
			return nil, nil
		}
	}

	raw, err := s.client.Get(ctx, memoryID, userID)
	if err != nil {
		s.logger.Warn("memory lookup failed", "memory_id", memoryID, "error", err)
		return nil, nil
	}
	if raw == nil {
		return nil, nil
	}

	return gog.PtrOf(normalize(*raw)), nil
}

func (s *service) UpdateMemory(ctx context.Context, memoryID, userID, text string) (bool, error) {
	old, err := s.GetMemoryByID(ctx, memoryID, userID)
	if err != nil {
		return false, err
	}
	if old == nil {
		return false, nil
	}

	if err := s.client.Update(ctx, memoryID, text, userID); err != nil {
		s.logger.Warn("memory update failed", "memory_id", memoryID, "error", err)
		return false, nil
	}

	// the remote update already happened; a failed anchor or ledger write
	// surfaces as missing provenance, not as a failed update
	anchor, err := s.threads.CreateSystemAnchor(ctx, userID, thread.SystemAnchorUpdates, thread.AnchorSnapshot{
		MemoryID:   memoryID,
		OldContent: old.Memory,
		NewContent: text,
	})
	if err != nil {
		s.logger.Warn("failed to anchor memory update", "memory_id", memoryID, "error", err)
	} else if _, err := s.ledger.Append(ctx, ledger.AppendEntry{
		MessageID:  anchor.ID,
		Mem0ID:     memoryID,
		Operation:  entity.MemoryOperationUpdate,
		OldContent: gog.PtrOf(old.Memory),
		NewContent: gog.PtrOf(text),
	}); err != nil {
		s.logger.Warn("failed to record memory update", "memory_id", memoryID, "error", err)
	}

	s.cache.InvalidateUser(userID)

	return true, nil
}

func (s *service) DeleteMemory(ctx context.Context, memoryID, userID string) (bool, error) {
	old, err := s.GetMemoryByID(ctx, memoryID, userID)
	if err != nil {
		return false, err
	}
	if old == nil {
		return false, nil
	}

	if err := s.client.Delete(ctx, memoryID, userID); err != nil {
		s.logger.Warn("memory delete failed", "memory_id", memoryID, "error", err)
		return false, nil
	}

	anchor, err := s.threads.CreateSystemAnchor(ctx, userID, thread.SystemAnchorDeletions, thread.AnchorSnapshot{
		MemoryID:      memoryID,
		MemoryContent: old.Memory,
	})
	if err != nil {
		s.logger.Warn("failed to anchor memory deletion", "memory_id", memoryID, "error", err)
	} else if _, err := s.ledger.Append(ctx, ledger.AppendEntry{
		MessageID:  anchor.ID,
		Mem0ID:     memoryID,
		Operation:  entity.MemoryOperationDelete,
		OldContent: gog.PtrOf(old.Memory),
	}); err != nil {
		s.logger.Warn("failed to record memory deletion", "memory_id", memoryID, "error", err)
	}

	s.cache.InvalidateUser(userID)

	return true, nil
}

// RestoreMemory re-adds the content snapshotted by the latest deletion
// record. The restored memory gets a fresh id; the deleted id stays in the
// ledger and keeps being filtered forever.
func (s *service) RestoreMemory(ctx context.Context, memoryID, userID string) (*Memory, error) {
	record, err := s.ledger.LatestDeletionRecord(ctx, memoryID, userID)
	if err != nil {
		return nil, err
	}
	if record.OldContent == nil || *record.OldContent == "" {
		return nil, errors.Wrapf(errors.ErrNotFound, "deletion record for %q has no content snapshot", memoryID)
	}

	added, err := s.client.Add(ctx, *record.OldContent, mem0.AddOptions{
		UserID:   userID,
		Metadata: map[string]any{"restored_from": memoryID},
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrAddFailed, "mem0 add failed: %v", err)
	}

	anchor, err := s.threads.CreateSystemAnchor(ctx, userID, thread.SystemAnchorUpdates, thread.AnchorSnapshot{
		MemoryID:      memoryID,
		MemoryContent: *record.OldContent,
	})
	if err != nil {
		s.logger.Warn("failed to anchor memory restore", "memory_id", memoryID, "error", err)
	}
	var restored *Memory
	for _, add := range added {
		if add.Event != "ADD" && add.Event != "add" {
			continue
		}
		if restored == nil {
			restored = &Memory{ID: add.ID, Memory: add.Memory}
		}
		if anchor == nil {
			continue
		}
		if _, err := s.ledger.Append(ctx, ledger.AppendEntry{
			MessageID:  anchor.ID,
			Mem0ID:     add.ID,
			Operation:  entity.MemoryOperationAdd,
			NewContent: gog.PtrOf(add.Memory),
		}); err != nil {
			s.logger.Warn("failed to record restored memory", "memory_id", add.ID, "error", err)
		}
	}
	if restored == nil {
		return nil, errors.Wrapf(errors.ErrAddFailed, "mem0 reported no add event for restore of %q", memoryID)
	}

	s.cache.InvalidateUser(userID)

	return restored, nil
}

func (s *service) FilterDeleted(ctx context.Context, userID string, memories []Memory) ([]Memory, error) {
	if len(memories) == 0 {
		return []Memory{}, nil
	}

	ids, err := s.ledger.DeletedMemoryIDs(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve deleted memories")
	}
	if len(ids) == 0 {
		return memories, nil
	}

	deleted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		deleted[id] = struct{}{}
	}

	filtered := make([]Memory, 0, len(memories))
	for _, m := range memories {
		if _, ok := deleted[m.ID]; !ok {
			filtered = append(filtered, m)
		}
	}

	return filtered, nil
}
