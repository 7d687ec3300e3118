// Package cache provides the in-process read-through cache in front of the
// remote memory store. Three partitions with independent TTLs keep search
// results, full memory listings and miscellaneous per-user payloads.
package cache

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	DefaultSearchTTL = 5 * time.Minute
	DefaultAllTTL    = 10 * time.Minute
	DefaultMiscTTL   = 30 * time.Minute
)

type (
	Service struct {
		search *partition
		all    *partition
		misc   *partition
	}

	Options struct {
		SearchTTL time.Duration
		AllTTL    time.Duration
		MiscTTL   time.Duration
	}

	PartitionStats struct {
		Keys   int   `json:"keys"`
		Hits   int64 `json:"hits"`
		Misses int64 `json:"misses"`
	}

	Stats struct {
		Search PartitionStats `json:"searchCache"`
		All    PartitionStats `json:"memoriesCache"`
		Misc   PartitionStats `json:"userCache"`
	}

	entry struct {
		value     any
		expiresAt time.Time
	}

	partition struct {
		mu      sync.Mutex
		ttl     time.Duration
		entries map[string]entry
		hits    int64
		misses  int64
		now     func() time.Time
	}
)

func New(opts Options) *Service {
	if opts.SearchTTL <= 0 {
		opts.SearchTTL = DefaultSearchTTL
	}
	if opts.AllTTL <= 0 {
		opts.AllTTL = DefaultAllTTL
	}
	if opts.MiscTTL <= 0 {
		opts.MiscTTL = DefaultMiscTTL
	}

	return &Service{
		search: newPartition(opts.SearchTTL),
		all:    newPartition(opts.AllTTL),
		misc:   newPartition(opts.MiscTTL),
	}
}

func newPartition(ttl time.Duration) *partition {
	return &partition{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (p *partition) get(key string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[key]
	if !ok || p.now().After(e.expiresAt) || e.value == nil {
		if ok {
			delete(p.entries, key)
		}
		p.misses++
		return nil, false
	}

	p.hits++
	return e.value, true
}

func (p *partition) set(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries[key] = entry{value: value, expiresAt: p.now().Add(p.ttl)}
}

func (p *partition) deleteWhere(match func(key string, value any) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for key, e := range p.entries {
		if now.After(e.expiresAt) || match(key, e.value) {
			delete(p.entries, key)
		}
	}
}

func (p *partition) stats() PartitionStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for key, e := range p.entries {
		if now.After(e.expiresAt) {
			delete(p.entries, key)
		}
	}

	return PartitionStats{
		Keys:   len(p.entries),
		Hits:   p.hits,
		Misses: p.misses,
	}
}

func (p *partition) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries = make(map[string]entry)
}

func searchKey(userID, query string, limit int) string {
	return fmt.Sprintf("search:%s:%s:%d", userID, query, limit)
}

func allKey(userID string) string {
	return fmt.Sprintf("memories:%s", userID)
}

func miscKey(userID, kind string) string {
	return fmt.Sprintf("user:%s:%s", userID, kind)
}

// GetSearchResults returns the cached result for a (user, query, limit)
// triple. Never-set and expired entries are indistinguishable.
func (s *Service) GetSearchResults(userID, query string, limit int) (any, bool) {
	return s.search.get(searchKey(userID, query, limit))
}

func (s *Service) SetSearchResults(userID, query string, limit int, value any) {
	s.search.set(searchKey(userID, query, limit), value)
}

func (s *Service) GetAllMemories(userID string) (any, bool) {
	return s.all.get(allKey(userID))
}

func (s *Service) SetAllMemories(userID string, value any) {
	s.all.set(allKey(userID), value)
}

func (s *Service) GetUserData(userID, kind string) (any, bool) {
	return s.misc.get(miscKey(userID, kind))
}

func (s *Service) SetUserData(userID, kind string, value any) {
	s.misc.set(miscKey(userID, kind), value)
}

// InvalidateUser removes every entry, across all partitions, whose key
// embeds the user id. Called after any write for that user: one write can
// invalidate arbitrarily many cached search-result sets.
func (s *Service) InvalidateUser(userID string) {
	searchPrefix := fmt.Sprintf("search:%s:", userID)
	s.search.deleteWhere(func(key string, _ any) bool {
		return strings.HasPrefix(key, searchPrefix)
	})

	memoriesKey := allKey(userID)
	s.all.deleteWhere(func(key string, _ any) bool {
		return key == memoriesKey
	})

	miscPrefix := fmt.Sprintf("user:%s:", userID)
	s.misc.deleteWhere(func(key string, _ any) bool {
		return strings.HasPrefix(key, miscPrefix)
	})
}

// InvalidateMemory removes every entry whose serialized value mentions the
// memory id. A full scan across all users and partitions: the fallback for
// writers that do not know which user the memory belongs to.
func (s *Service) InvalidateMemory(memoryID string) {
	match := func(_ string, value any) bool {
		serialized, err := json.Marshal(value)
		if err != nil {
			return false
		}
		return strings.Contains(string(serialized), memoryID)
	}

	s.search.deleteWhere(match)
	s.all.deleteWhere(match)
	s.misc.deleteWhere(match)
}

func (s *Service) GetStats() Stats {
	return Stats{
		Search: s.search.stats(),
		All:    s.all.stats(),
		Misc:   s.misc.stats(),
	}
}

func (s *Service) ClearAll() {
	s.search.flush()
	s.all.flush()
	s.misc.flush()
}
