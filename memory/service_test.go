package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/asifkhan0410/recallchat/cache"
	"github.com/asifkhan0410/recallchat/entity"
	"github.com/asifkhan0410/recallchat/errors"
	"github.com/asifkhan0410/recallchat/internal/mylog"
	"github.com/asifkhan0410/recallchat/internal/mytesting"
	"github.com/asifkhan0410/recallchat/ledger"
	"github.com/asifkhan0410/recallchat/mem0/test"
	"github.com/asifkhan0410/recallchat/memory"
	"github.com/asifkhan0410/recallchat/thread"
	"github.com/stretchr/testify/suite"
)

type MemoryServiceTestSuite struct {
	mytesting.Suite

	client  *mem0test.FakeClient
	cache   *cache.Service
	ledger  ledger.Ledger
	manager thread.Manager
	service memory.Service
}

func (s *MemoryServiceTestSuite) SetupTest() {
	s.Suite.SetupTest()

	logger := mylog.NewLogger("error", "json")
	s.client = mem0test.NewFakeClient()
	s.cache = cache.New(cache.Options{
		SearchTTL: 5 * time.Minute,
		AllTTL:    10 * time.Minute,
		MiscTTL:   30 * time.Minute,
	})
	s.ledger = ledger.NewLedger(logger, s.DB)
	s.manager = thread.NewManager(logger, s.DB)
	s.service = memory.NewService(logger, s.client, s.cache, s.ledger, s.manager)
}

func (s *MemoryServiceTestSuite) TestAddFailurePropagatesTyped() {
	s.client.FailOn["add"] = true

	_, err := s.service.AddMemory(s.Context, "alice", "likes coffee", nil)
	s.Require().ErrorIs(err, errors.ErrAddFailed)
}

func (s *MemoryServiceTestSuite) TestAddInvalidatesUserCaches() {
	s.client.Seed("mem-old", "alice", "likes coffee")

	results, err := s.service.SearchMemories(s.Context, "alice", "coffee", 5)
	s.Require().NoError(err)
	s.Require().Len(results, 1)

	added, err := s.service.AddMemory(s.Context, "alice", "prefers coffee with milk", nil)
	s.Require().NoError(err)
	s.Require().NotEmpty(added)

	// the cached search entry is gone, so the new memory is visible
	results, err = s.service.SearchMemories(s.Context, "alice", "coffee", 5)
	s.Require().NoError(err)
	s.Require().Len(results, 2)
}

func (s *MemoryServiceTestSuite) TestSearchDegradesToEmpty() {
	s.client.FailOn["search"] = true

	results, err := s.service.SearchMemories(s.Context, "alice", "coffee", 5)
	s.Require().NoError(err)
	s.Require().Empty(results)
}

func (s *MemoryServiceTestSuite) TestGetAllDegradesToEmpty() {
	s.client.FailOn["getAll"] = true

	result, err := s.service.GetAllMemories(s.Context, "alice", 100, 0)
	s.Require().NoError(err)
	s.Require().Empty(result.Results)
	s.Require().Zero(result.Total)
}

func (s *MemoryServiceTestSuite) TestDeleteFilterAppliesToCachedResults() {
	s.client.Seed("mem-1", "alice", "likes coffee")
	s.client.Seed("mem-2", "alice", "drinks coffee daily")

	results, err := s.service.SearchMemories(s.Context, "alice", "coffee", 5)
	s.Require().NoError(err)
	s.Require().Len(results, 2)

	// append a deletion record without going through the service, so the
	// cached entry survives and the filter has to catch it on read
	anchor, err := s.manager.CreateSystemAnchor(s.Context, "alice", thread.SystemAnchorDeletions, thread.AnchorSnapshot{MemoryID: "mem-1"})
	s.Require().NoError(err)
	_, err = s.ledger.Append(s.Context, ledger.AppendEntry{
		MessageID: anchor.ID,
		Mem0ID:    "mem-1",
		Operation: entity.MemoryOperationDelete,
	})
	s.Require().NoError(err)

	results, err = s.service.SearchMemories(s.Context, "alice", "coffee", 5)
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Require().Equal("mem-2", results[0].ID)
}

func (s *MemoryServiceTestSuite) TestDeleteHidesMemoryEverywhere() {
	s.client.Seed("mem-1", "alice", "likes coffee")
	s.client.Seed("mem-2", "alice", "has a dog")

	ok, err := s.service.DeleteMemory(s.Context, "mem-1", "alice")
	s.Require().NoError(err)
	s.Require().True(ok)

	results, err := s.service.SearchMemories(s.Context, "alice", "coffee", 5)
	s.Require().NoError(err)
	s.Require().Empty(results)

	all, err := s.service.GetAllMemories(s.Context, "alice", 100, 0)
	s.Require().NoError(err)
	s.Require().Len(all.Results, 1)
	s.Require().Equal("mem-2", all.Results[0].ID)

	got, err := s.service.GetMemoryByID(s.Context, "mem-1", "alice")
	s.Require().NoError(err)
	s.Require().Nil(got)

	// the deletion is in the ledger with a content snapshot
	record, err := s.ledger.LatestDeletionRecord(s.Context, "mem-1", "alice")
	s.Require().NoError(err)
	s.Require().Equal("likes coffee", *record.OldContent)
}

func (s *MemoryServiceTestSuite) TestUpdateSnapshotsOldContent() {
	s.client.Seed("mem-1", "alice", "lives in Paris")

	ok, err := s.service.UpdateMemory(s.Context, "mem-1", "alice", "lives in Berlin")
	s.Require().NoError(err)
	s.Require().True(ok)

	got, err := s.service.GetMemoryByID(s.Context, "mem-1", "alice")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Require().Equal("lives in Berlin", got.Memory)

	var links []entity.MemoryLink
	s.Require().NoError(s.DB.Where("mem0_id = ?", "mem-1").Find(&links).Error)
	s.Require().Len(links, 1)
	s.Require().Equal(entity.MemoryOperationUpdate, links[0].Operation)
	s.Require().Equal("lives in Paris", *links[0].OldContent)
	s.Require().Equal("lives in Berlin", *links[0].NewContent)
}

func (s *MemoryServiceTestSuite) TestUpdateMissingMemoryReturnsFalse() {
	ok, err := s.service.UpdateMemory(s.Context, "mem-404", "alice", "anything")
	s.Require().NoError(err)
	s.Require().False(ok)

	ok, err = s.service.DeleteMemory(s.Context, "mem-404", "alice")
	s.Require().NoError(err)
	s.Require().False(ok)
}

func (s *MemoryServiceTestSuite) TestRestoreRoundTrip() {
	s.client.Seed("mem-1", "alice", "likes hiking in the alps")

	ok, err := s.service.DeleteMemory(s.Context, "mem-1", "alice")
	s.Require().NoError(err)
	s.Require().True(ok)

	restored, err := s.service.RestoreMemory(s.Context, "mem-1", "alice")
	s.Require().NoError(err)
	s.Require().NotEqual("mem-1", restored.ID)
	s.Require().Equal("likes hiking in the alps", restored.Memory)

	// the old id stays filtered, the restored copy is visible
	all, err := s.service.GetAllMemories(s.Context, "alice", 100, 0)
	s.Require().NoError(err)
	s.Require().Len(all.Results, 1)
	s.Require().Equal(restored.ID, all.Results[0].ID)
}

func (s *MemoryServiceTestSuite) TestDeleteSurvivesAnchorFailure() {
	s.client.Seed("mem-1", "alice", "likes coffee")
	svc := memory.NewService(mylog.NewLogger("error", "json"), s.client, s.cache, s.ledger, &anchorlessManager{s.manager})

	results, err := svc.SearchMemories(s.Context, "alice", "coffee", 5)
	s.Require().NoError(err)
	s.Require().Len(results, 1)

	ok, err := svc.DeleteMemory(s.Context, "mem-1", "alice")
	s.Require().NoError(err)
	s.Require().True(ok)

	// the cached entry was invalidated, so the remote deletion is visible
	// even though no ledger record could be written
	results, err = svc.SearchMemories(s.Context, "alice", "coffee", 5)
	s.Require().NoError(err)
	s.Require().Empty(results)
}

func (s *MemoryServiceTestSuite) TestUpdateSurvivesAnchorFailure() {
	s.client.Seed("mem-1", "alice", "lives in Paris")
	svc := memory.NewService(mylog.NewLogger("error", "json"), s.client, s.cache, s.ledger, &anchorlessManager{s.manager})

	ok, err := svc.UpdateMemory(s.Context, "mem-1", "alice", "lives in Berlin")
	s.Require().NoError(err)
	s.Require().True(ok)

	got, err := svc.GetMemoryByID(s.Context, "mem-1", "alice")
	s.Require().NoError(err)
	s.Require().Equal("lives in Berlin", got.Memory)

	// the update went through, it just carries no provenance
	var links []entity.MemoryLink
	s.Require().NoError(s.DB.Where("mem0_id = ?", "mem-1").Find(&links).Error)
	s.Require().Empty(links)
}

func (s *MemoryServiceTestSuite) TestRestoreWithoutDeletionRecord() {
	_, err := s.service.RestoreMemory(s.Context, "mem-404", "alice")
	s.Require().ErrorIs(err, errors.ErrNotFound)
}

// anchorlessManager simulates the local provenance store being unavailable
// while the remote memory API keeps working.
type anchorlessManager struct {
	thread.Manager
}

func (m *anchorlessManager) CreateSystemAnchor(context.Context, string, thread.SystemAnchorKind, thread.AnchorSnapshot) (*entity.Message, error) {
	return nil, errors.New("anchor store unavailable")
}

func TestMemoryService(t *testing.T) {
	suite.Run(t, new(MemoryServiceTestSuite))
}
