package mem0test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/asifkhan0410/recallchat/errors"
	"github.com/asifkhan0410/recallchat/mem0"
	"github.com/mokiat/gog"
)

// FakeClient is a stateful in-memory stand-in for the remote memory store.
// Search scores by naive word overlap, which is enough for tests to steer
// which memories come back.
type FakeClient struct {
	mu     sync.Mutex
	seq    int
	store  map[string]*record
	FailOn map[string]bool // operation name -> force error
}

type record struct {
	id        string
	userID    string
	text      string
	metadata  map[string]any
	createdAt time.Time
	updatedAt time.Time
}

var _ mem0.Client = (*FakeClient)(nil)

func NewFakeClient() *FakeClient {
	return &FakeClient{
		store:  make(map[string]*record),
		FailOn: make(map[string]bool),
	}
}

// Seed inserts a memory with a fixed id, bypassing the add path.
func (f *FakeClient) Seed(id, userID, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	f.store[id] = &record{id: id, userID: userID, text: text, createdAt: now, updatedAt: now}
}

func (f *FakeClient) Add(_ context.Context, text string, opts mem0.AddOptions) ([]mem0.AddedMemory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailOn["add"] {
		return nil, errors.New("fake mem0: add failed")
	}

	f.seq++
	id := fmt.Sprintf("mem-%d", f.seq)
	now := time.Now().UTC()
	f.store[id] = &record{
		id:        id,
		userID:    opts.UserID,
		text:      text,
		metadata:  opts.Metadata,
		createdAt: now,
		updatedAt: now,
	}

	return []mem0.AddedMemory{{ID: id, Memory: text, Event: "ADD"}}, nil
}

func (f *FakeClient) Search(_ context.Context, query string, opts mem0.SearchOptions) ([]mem0.RawMemory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailOn["search"] {
		return nil, errors.New("fake mem0: search failed")
	}

	queryWords := strings.Fields(strings.ToLower(query))

	var results []mem0.RawMemory
	for _, rec := range f.store {
		if rec.userID != opts.UserID {
			continue
		}
		score := overlap(queryWords, strings.Fields(strings.ToLower(rec.text)))
		if score == 0 {
			continue
		}
		results = append(results, f.raw(rec, gog.PtrOf(score)))
		if opts.Limit > 0 && len(results) >= opts.Limit {
			break
		}
	}

	return results, nil
}

func (f *FakeClient) GetAll(_ context.Context, opts mem0.GetAllOptions) ([]mem0.RawMemory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailOn["getAll"] {
		return nil, errors.New("fake mem0: getAll failed")
	}

	var results []mem0.RawMemory
	for _, rec := range f.store {
		if rec.userID != opts.UserID {
			continue
		}
		results = append(results, f.raw(rec, nil))
		if opts.Limit > 0 && len(results) >= opts.Limit {
			break
		}
	}

	return results, nil
}

func (f *FakeClient) Get(_ context.Context, memoryID string, _ string) (*mem0.RawMemory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailOn["get"] {
		return nil, errors.New("fake mem0: get failed")
	}

	rec, ok := f.store[memoryID]
	if !ok {
		return nil, nil
	}
	raw := f.raw(rec, nil)
	return &raw, nil
}

func (f *FakeClient) Update(_ context.Context, memoryID string, text string, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailOn["update"] {
		return errors.New("fake mem0: update failed")
	}

	rec, ok := f.store[memoryID]
	if !ok {
		return errors.Errorf("fake mem0: memory %s not found", memoryID)
	}
	rec.text = text
	rec.updatedAt = time.Now().UTC()

	return nil
}

func (f *FakeClient) Delete(_ context.Context, memoryID string, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailOn["delete"] {
		return errors.New("fake mem0: delete failed")
	}

	delete(f.store, memoryID)
	return nil
}

func (f *FakeClient) raw(rec *record, score *float64) mem0.RawMemory {
	return mem0.RawMemory{
		ID:        rec.id,
		Memory:    rec.text,
		Metadata:  rec.metadata,
		Score:     score,
		CreatedAt: rec.createdAt.Format(time.RFC3339),
		UpdatedAt: rec.updatedAt.Format(time.RFC3339),
	}
}

func overlap(queryWords, memoryWords []string) float64 {
	if len(queryWords) == 0 {
		return 0
	}
	m := make(map[string]struct{}, len(memoryWords))
	for _, w := range memoryWords {
		m[w] = struct{}{}
	}
	var common int
	for _, w := range queryWords {
		if _, ok := m[w]; ok {
			common++
		}
	}
	return float64(common) / float64(len(queryWords))
}
