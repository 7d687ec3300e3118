package mytesting

import (
	"context"
	"path/filepath"

	"github.com/asifkhan0410/recallchat/internal/db"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// Suite gives each test a cancellable context and a fresh sqlite database
// in a per-test temporary directory.
type Suite struct {
	suite.Suite
	context.Context

	Cancel context.CancelFunc
	DB     *gorm.DB
}

func (s *Suite) SetupTest() {
	s.Context, s.Cancel = context.WithCancel(context.TODO())

	dbPath := filepath.Join(s.T().TempDir(), "recallchat_test.db")
	gdb, err := db.OpenDB(dbPath)
	s.Require().NoError(err)
	s.Require().NoError(db.AutoMigrate(gdb))
	s.DB = gdb
}

func (s *Suite) TearDownTest() {
	if s.DB != nil {
		s.Require().NoError(db.CloseDB(s.DB))
	}
	s.Cancel()
}
