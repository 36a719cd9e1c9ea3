package corecontext

import (
	"context"
	"errors"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/corlin/hicrm-core/internal/agent"
	"github.com/corlin/hicrm-core/internal/agent/specialized"
	"github.com/corlin/hicrm-core/internal/customerstore"
	"github.com/corlin/hicrm-core/internal/rag"
	"github.com/corlin/hicrm-core/internal/retrieval/embedding"
	"github.com/corlin/hicrm-core/internal/retrieval/keyword"
	"github.com/corlin/hicrm-core/internal/retrieval/rerank"
	"github.com/corlin/hicrm-core/internal/retrieval/vectorstore"
	"github.com/corlin/hicrm-core/internal/retrieval/vectorstore/pgvector"
	"github.com/corlin/hicrm-core/internal/retrieval/vectorstore/qdrant"
	"github.com/corlin/hicrm-core/internal/router"
	"github.com/corlin/hicrm-core/internal/router/cache"
	"github.com/corlin/hicrm-core/internal/tools"
	"github.com/corlin/hicrm-core/internal/workflow"
)

// CoreContext holds every shared service handle, built once at process
// start and threaded into agents/workflows by explicit reference
// rather than module-global singletons (spec §9).
type CoreContext struct {
	Config Config

	DB          *gorm.DB
	Redis       *redis.Client
	VectorStore vectorstore.Store

	Router    *router.Router
	RAG       *rag.Engine
	Tools     *tools.Registry
	Customers customerstore.Store
	Agents    *agent.Registry
	Workflow  *workflow.Engine
}

// Close releases the process-wide handles: the database connection
// pool and the Redis client. Vector-store/embedding/rerank clients are
// plain HTTP/gRPC clients with nothing to drain.
func (c *CoreContext) Close(ctx context.Context) error {
	var errs []error
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		} else {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build assembles the dependency graph described by cfg using
// go.uber.org/dig, replacing the reference design's process-wide
// router/RAG/NLU singletons (spec §9's redesign note).
func Build(cfg Config) (*CoreContext, error) {
	container := dig.New()

	providers := []interface{}{
		func() Config { return cfg },
		newDB,
		newRedisClient,
		newVectorStore,
		newEmbeddingGateway,
		newRerankGateway,
		newKeywordRetriever,
		newToolRegistry,
		newResponseCache,
		newRouter,
		newRAGEngine,
		newCustomerStore,
		newSpecializedAgents,
		newAgentRegistry,
		newWorkflowEngine,
	}
	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return nil, err
		}
	}

	cc := &CoreContext{Config: cfg}
	err := container.Invoke(func(
		db *gorm.DB,
		rdb *redis.Client,
		vstore vectorstore.Store,
		r *router.Router,
		ragEngine *rag.Engine,
		toolRegistry *tools.Registry,
		customers customerstore.Store,
		agents *agent.Registry,
		wf *workflow.Engine,
	) {
		cc.DB = db
		cc.Redis = rdb
		cc.VectorStore = vstore
		cc.Router = r
		cc.RAG = ragEngine
		cc.Tools = toolRegistry
		cc.Customers = customers
		cc.Agents = agents
		cc.Workflow = wf
	})
	if err != nil {
		return nil, err
	}
	return cc, nil
}

func newDB(cfg Config) (*gorm.DB, error) {
	if cfg.DatabaseDSN == "" {
		return nil, nil
	}
	return gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
}

func newRedisClient(cfg Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
}

func newVectorStore(cfg Config, db *gorm.DB) (vectorstore.Store, error) {
	switch cfg.VectorBackend {
	case VectorBackendPGVector:
		if db == nil {
			return nil, errors.New("corecontext: pgvector vector store backend requires a non-empty DatabaseDSN")
		}
		return pgvector.New(db)
	default:
		if cfg.QdrantHost == "" {
			return nil, errors.New("corecontext: qdrant vector store backend requires QdrantHost")
		}
		return qdrant.New(cfg.QdrantHost, cfg.QdrantPort, cfg.QdrantUseTLS)
	}
}

func newEmbeddingGateway(cfg Config) embedding.Gateway {
	return embedding.New(cfg.EmbeddingAPIKey, cfg.EmbeddingBaseURL, cfg.EmbeddingModel)
}

func newRerankGateway(cfg Config) rerank.Gateway {
	return rerank.New(cfg.RerankAPIKey, cfg.RerankBaseURL, cfg.RerankModel)
}

// newKeywordRetriever degrades to nil (pure-vector hybrid mode) when no
// Elasticsearch cluster is configured, rather than failing Build.
func newKeywordRetriever(cfg Config) keyword.Retriever {
	if len(cfg.ElasticsearchAddrs) == 0 {
		return nil
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: cfg.ElasticsearchAddrs})
	if err != nil {
		return nil
	}
	return keyword.New(client)
}

func newToolRegistry(cfg Config, db *gorm.DB) *tools.Registry {
	registry := tools.NewRegistry(cfg.ToolTimeout)
	registry.Register(tools.NewSequentialThinkingTool())
	if db != nil {
		registry.Register(tools.NewDatabaseQueryTool(db))
	}
	return registry
}

// newResponseCache degrades to a nil ResponseCache (router.ChatCompletion
// simply never populates/consults one) when no Redis address is
// configured.
func newResponseCache(cfg Config, rdb *redis.Client) router.ResponseCache {
	if rdb == nil {
		return nil
	}
	return cache.New(rdb, cfg.ResponseCacheTTL)
}

func newRouter(cfg Config, toolRegistry *tools.Registry, responseCache router.ResponseCache) *router.Router {
	return router.New(cfg.Endpoints, cfg.Models, cfg.DefaultModel, toolRegistry, responseCache)
}

func newRAGEngine(cfg Config, vstore vectorstore.Store, embedder embedding.Gateway, reranker rerank.Gateway, r *router.Router, keywordRetriever keyword.Retriever) *rag.Engine {
	engine := rag.New(cfg.RAGConfig, vstore, embedder, reranker, r)
	if keywordRetriever != nil {
		engine.SetKeywordRetriever(keywordRetriever)
	}
	return engine
}

// newCustomerStore degrades to nil (discovery workflow skips persistence
// on successful contact) when no database is configured.
func newCustomerStore(db *gorm.DB) customerstore.Store {
	if db == nil {
		return nil
	}
	return customerstore.New(db)
}

func newSpecializedAgents(cfg Config, r *router.Router, ragEngine *rag.Engine, toolRegistry *tools.Registry) (*specialized.SalesAgent, *specialized.ManagementStrategyAgent, *specialized.CRMExpertAgent) {
	sales := specialized.NewSalesAgent(cfg.SalesAgentID, r, ragEngine, toolRegistry, cfg.SalesKnowledgeCollection)
	management := specialized.NewManagementStrategyAgent(cfg.ManagementAgentID, r, ragEngine, toolRegistry, cfg.StrategyKnowledgeCollection)
	crm := specialized.NewCRMExpertAgent(cfg.CRMAgentID, r, ragEngine, toolRegistry, cfg.CRMKnowledgeCollection)
	return sales, management, crm
}

func newAgentRegistry(sales *specialized.SalesAgent, management *specialized.ManagementStrategyAgent, crm *specialized.CRMExpertAgent) *agent.Registry {
	registry := agent.NewRegistry()
	registry.Register(sales)
	registry.Register(management)
	registry.Register(crm)
	return registry
}

func newWorkflowEngine(cfg Config, sales *specialized.SalesAgent, ragEngine *rag.Engine, customers customerstore.Store) *workflow.Engine {
	return workflow.New(sales, ragEngine, customers, cfg.WorkflowKnowledgeCollection)
}
