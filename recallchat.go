package recallchat

import (
	"context"
	"sync"

	"github.com/asifkhan0410/recallchat/cache"
	"github.com/asifkhan0410/recallchat/config"
	"github.com/asifkhan0410/recallchat/engine"
	"github.com/asifkhan0410/recallchat/internal/db"
	"github.com/asifkhan0410/recallchat/internal/mylog"
	"github.com/asifkhan0410/recallchat/ledger"
	"github.com/asifkhan0410/recallchat/mem0"
	"github.com/asifkhan0410/recallchat/memory"
	"github.com/asifkhan0410/recallchat/reconciler"
	"github.com/asifkhan0410/recallchat/thread"
	"gorm.io/gorm"
)

type (
	// ChatRuntime wires the chat pipeline together: conversation store,
	// memory gateway, provenance ledger, LLM engine and reconciler.
	ChatRuntime struct {
		logger     *mylog.Logger
		db         *gorm.DB
		cache      *cache.Service
		client     mem0.Client
		ledger     ledger.Ledger
		threads    thread.Manager
		memory     memory.Service
		engine     engine.Engine
		reconciler reconciler.Reconciler

		conf *config.Config
		wg   sync.WaitGroup
	}
	Option func(*ChatRuntime)
)

func NewChatRuntime(ctx context.Context, optionFuncs ...Option) (*ChatRuntime, error) {
	r := &ChatRuntime{
		conf: config.Default(),
	}
	for _, f := range optionFuncs {
		f(r)
	}

	if r.logger == nil {
		r.logger = mylog.NewLogger(r.conf.Log.Level, r.conf.Log.Handler)
	}

	if r.db == nil {
		gdb, err := db.OpenDB(r.conf.Database.Path)
		if err != nil {
			return nil, err
		}
		if err := db.AutoMigrate(gdb); err != nil {
			return nil, err
		}
		r.db = gdb
	}

	if r.cache == nil {
		r.cache = cache.New(cache.Options{
			SearchTTL: r.conf.Cache.SearchTTL,
			AllTTL:    r.conf.Cache.AllTTL,
			MiscTTL:   r.conf.Cache.MiscTTL,
		})
	}

	if r.client == nil {
		r.client = mem0.NewHTTPClient(mem0.HTTPClientOptions{
			BaseURL:   r.conf.Mem0.BaseURL,
			APIKey:    r.conf.Mem0.APIKey,
			ProjectID: r.conf.Mem0.ProjectID,
			Timeout:   r.conf.Mem0.Timeout,
		})
	}

	r.ledger = ledger.NewLedger(r.logger, r.db)
	r.threads = thread.NewManager(r.logger, r.db)
	r.memory = memory.NewService(r.logger, r.client, r.cache, r.ledger, r.threads)

	if r.engine == nil {
		r.engine = engine.NewEngine(r.logger, engine.Config{
			Provider:        r.conf.Model.Provider,
			Model:           r.conf.Model.Model,
			OpenAIAPIKey:    r.conf.Model.OpenAIAPIKey,
			AnthropicAPIKey: r.conf.Model.AnthropicAPIKey,
			Temperature:     r.conf.Model.Temperature,
			MaxTokens:       int64(r.conf.Model.MaxTokens),
		})
	}

	r.reconciler = reconciler.NewReconciler(r.logger, r.ledger, r.client, reconciler.DefaultConfig())

	return r, nil
}

// Wait blocks until the in-flight background memory work has drained. Used
// on shutdown so asynchronous adds and reconciliations are not cut off.
func (r *ChatRuntime) Wait() {
	r.wg.Wait()
}

func (r *ChatRuntime) Close() error {
	r.Wait()
	return db.CloseDB(r.db)
}

func (r *ChatRuntime) Threads() thread.Manager {
	return r.threads
}

func (r *ChatRuntime) Memory() memory.Service {
	return r.memory
}

func (r *ChatRuntime) Ledger() ledger.Ledger {
	return r.ledger
}

func (r *ChatRuntime) Cache() *cache.Service {
	return r.cache
}

func WithConfig(conf *config.Config) Option {
	return func(r *ChatRuntime) {
		r.conf = conf
	}
}

func WithLogger(logger *mylog.Logger) Option {
	return func(r *ChatRuntime) {
		r.logger = logger
	}
}

func WithDB(gdb *gorm.DB) Option {
	return func(r *ChatRuntime) {
		r.db = gdb
	}
}

func WithMem0Client(client mem0.Client) Option {
	return func(r *ChatRuntime) {
		r.client = client
	}
}

func WithEngine(e engine.Engine) Option {
	return func(r *ChatRuntime) {
		r.engine = e
	}
}

func WithCache(c *cache.Service) Option {
	return func(r *ChatRuntime) {
		r.cache = c
	}
}
