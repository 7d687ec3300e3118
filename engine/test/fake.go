package enginetest

import (
	"context"
	"sync"

	"github.com/asifkhan0410/recallchat/engine"
	"github.com/asifkhan0410/recallchat/entity"
	"github.com/asifkhan0410/recallchat/memory"
)

// FakeEngine replies from a scripted queue and records what it was asked.
type FakeEngine struct {
	mu sync.Mutex

	Replies []string
	Err     error

	Calls []Call
}

type Call struct {
	History  []entity.Message
	Memories []memory.Memory
}

var _ engine.Engine = (*FakeEngine)(nil)

func NewFakeEngine(replies ...string) *FakeEngine {
	return &FakeEngine{Replies: replies}
}

func (e *FakeEngine) Generate(_ context.Context, history []entity.Message, memories []memory.Memory) (*engine.Response, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Calls = append(e.Calls, Call{History: history, Memories: memories})

	if e.Err != nil {
		return nil, e.Err
	}

	content := "I have nothing to say."
	if len(e.Replies) > 0 {
		content = e.Replies[0]
		if len(e.Replies) > 1 {
			e.Replies = e.Replies[1:]
		}
	}

	return &engine.Response{
		Content:        content,
		CitedMemoryIDs: engine.ExtractCitations(content),
	}, nil
}
