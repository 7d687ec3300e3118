package recallchat_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/asifkhan0410/recallchat"
	enginetest "github.com/asifkhan0410/recallchat/engine/test"
	recallchaterrors "github.com/asifkhan0410/recallchat/errors"
	"github.com/asifkhan0410/recallchat/internal/db"
	"github.com/asifkhan0410/recallchat/internal/mylog"
	mem0test "github.com/asifkhan0410/recallchat/mem0/test"
	"github.com/stretchr/testify/suite"
)

type ChatRuntimeTestSuite struct {
	suite.Suite

	client  *mem0test.FakeClient
	engine  *enginetest.FakeEngine
	runtime *recallchat.ChatRuntime
}

func (s *ChatRuntimeTestSuite) newRuntime() {
	gdb, err := db.OpenDB(filepath.Join(s.T().TempDir(), "recallchat_test.db"))
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(gdb))

	s.client = mem0test.NewFakeClient()
	s.engine = enginetest.NewFakeEngine()

	s.runtime, err = recallchat.NewChatRuntime(context.Background(),
		recallchat.WithDB(gdb),
		recallchat.WithMem0Client(s.client),
		recallchat.WithEngine(s.engine),
		recallchat.WithLogger(mylog.NewLogger("error", "json")),
	)
	s.Require().NoError(err)
}

func (s *ChatRuntimeTestSuite) SetupTest() {
	s.newRuntime()
}

func (s *ChatRuntimeTestSuite) TearDownTest() {
	s.Require().NoError(s.runtime.Close())
}

func (s *ChatRuntimeTestSuite) TestTurnRemembersAndCites() {
	ctx := context.Background()

	conv, err := s.runtime.Threads().CreateConversation(ctx, "john", "")
	s.Require().NoError(err)

	s.engine.Replies = []string{
		"Nice to meet you!",
		"You told me you work as a software engineer [memory:mem-1].",
	}

	first, err := s.runtime.SendMessage(ctx, "john", conv.ID, "My name is John and I work as a software engineer")
	s.Require().NoError(err)
	s.Require().Equal("Nice to meet you!", first.AssistantMessage.Content)
	s.Require().Empty(first.References)

	// drain the background add + reconcile before the next turn
	s.runtime.Wait()

	activity, err := s.runtime.Ledger().ActivityForMessage(ctx, first.UserMessage.ID, "john")
	s.Require().NoError(err)
	s.Require().Equal(1, activity.Added)
	s.Require().Equal("mem-1", activity.Entries[0].Mem0ID)

	second, err := s.runtime.SendMessage(ctx, "john", conv.ID, "What do I do for work as an engineer?")
	s.Require().NoError(err)
	s.runtime.Wait()

	s.Require().Len(second.References, 1)
	s.Require().Equal("mem-1", second.References[0].MemoryID)
	s.Require().Equal(1, second.References[0].ReferenceOrder)
	s.Require().Contains(second.References[0].MemoryText, "software engineer")

	// the engine saw the retrieved memory
	lastCall := s.engine.Calls[len(s.engine.Calls)-1]
	s.Require().NotEmpty(lastCall.Memories)
	s.Require().Equal("mem-1", lastCall.Memories[0].ID)

	// history was passed in creation order, user turn included
	s.Require().Equal("What do I do for work as an engineer?", lastCall.History[len(lastCall.History)-1].Content)
}

func (s *ChatRuntimeTestSuite) TestConversationOwnershipEnforced() {
	ctx := context.Background()

	conv, err := s.runtime.Threads().CreateConversation(ctx, "john", "Private")
	s.Require().NoError(err)

	_, err = s.runtime.SendMessage(ctx, "mallory", conv.ID, "hello?")
	s.Require().ErrorIs(err, recallchaterrors.ErrNotFound)
}

func (s *ChatRuntimeTestSuite) TestGenerationFailureStillPersistsTurn() {
	ctx := context.Background()

	conv, err := s.runtime.Threads().CreateConversation(ctx, "john", "Chat")
	s.Require().NoError(err)

	s.engine.Err = errors.New("model unavailable")

	result, err := s.runtime.SendMessage(ctx, "john", conv.ID, "are you there?")
	s.Require().NoError(err)
	s.Require().Contains(result.AssistantMessage.Content, "I apologize")
	s.runtime.Wait()

	messages, err := s.runtime.Threads().GetMessages(ctx, conv.ID)
	s.Require().NoError(err)
	s.Require().Len(messages, 2)
	s.Require().Equal("are you there?", messages[0].Content)
}

func (s *ChatRuntimeTestSuite) TestFirstMessageTitlesConversation() {
	ctx := context.Background()

	conv, err := s.runtime.Threads().CreateConversation(ctx, "john", "")
	s.Require().NoError(err)

	_, err = s.runtime.SendMessage(ctx, "john", conv.ID, "Plan a weekend trip to the coast with the dog")
	s.Require().NoError(err)
	s.runtime.Wait()

	got, err := s.runtime.Threads().GetConversation(ctx, conv.ID, "john")
	s.Require().NoError(err)
	s.Require().Equal("Plan a weekend trip to the coast with the dog", got.Title)
}

func (s *ChatRuntimeTestSuite) TestMemoryAddFailureDoesNotSurface() {
	ctx := context.Background()

	conv, err := s.runtime.Threads().CreateConversation(ctx, "john", "Chat")
	s.Require().NoError(err)

	s.client.FailOn["add"] = true

	result, err := s.runtime.SendMessage(ctx, "john", conv.ID, "remember that I like sailing")
	s.Require().NoError(err)
	s.Require().NotNil(result.AssistantMessage)
	s.runtime.Wait()

	activity, err := s.runtime.Ledger().ActivityForMessage(ctx, result.UserMessage.ID, "john")
	s.Require().NoError(err)
	s.Require().Zero(activity.Added)
}

func TestChatRuntime(t *testing.T) {
	suite.Run(t, new(ChatRuntimeTestSuite))
}
