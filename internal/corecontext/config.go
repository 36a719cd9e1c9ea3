// Package corecontext wires the process-wide dependency graph through
// go.uber.org/dig (spec §9's redesign note: "Replacing module-global
// singletons" — a CoreContext struct threaded into every agent and
// workflow at construction time, instead of the reference design's
// process-wide singletons for router/RAG/NLU).
package corecontext

import (
	"time"

	"github.com/corlin/hicrm-core/internal/types"
)

// VectorBackend selects which vectorstore.Store adapter Build wires up.
type VectorBackend string

const (
	VectorBackendQdrant   VectorBackend = "qdrant"
	VectorBackendPGVector VectorBackend = "pgvector"
)

// Config is every externally-supplied setting the dependency graph
// needs. Zero-value optional fields (RedisAddr, ElasticsearchAddrs,
// DatabaseDSN) degrade their owning component to a no-op rather than
// failing Build, matching the "never throws" degradation pattern used
// throughout the RAG engine and router. The exception is the vector
// store: Build fails when the selected VectorBackend lacks its setting
// (QdrantHost for qdrant, DatabaseDSN for pgvector).
type Config struct {
	// Model router
	Endpoints        []types.Endpoint
	Models           []types.ModelDescriptor
	DefaultModel     string
	ToolTimeout      time.Duration
	ResponseCacheTTL time.Duration

	// RAG engine
	RAGConfig           types.RAGConfig
	VectorBackend       VectorBackend
	QdrantHost          string
	QdrantPort          int
	QdrantUseTLS        bool
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingModel      string
	RerankAPIKey        string
	RerankBaseURL       string
	RerankModel         string
	ElasticsearchAddrs  []string

	// Shared storage (customer store + pgvector backend, when selected)
	DatabaseDSN string

	// Cache / queue
	RedisAddr string
	RedisDB   int

	// Specialized agents
	SalesAgentID          string
	SalesKnowledgeCollection string
	ManagementAgentID        string
	StrategyKnowledgeCollection string
	CRMAgentID               string
	CRMKnowledgeCollection   string

	// Discovery workflow
	WorkflowKnowledgeCollection string
}

// DefaultConfig returns a Config with the same numeric defaults as
// types.DefaultRAGConfig and the router's DefaultTimeout, leaving every
// external address empty (degraded/no-op) until the caller fills them in.
func DefaultConfig() Config {
	return Config{
		RAGConfig:               types.DefaultRAGConfig(),
		VectorBackend:           VectorBackendQdrant,
		ToolTimeout:             30 * time.Second,
		ResponseCacheTTL:        10 * time.Minute,
		SalesAgentID:            "sales_agent",
		SalesKnowledgeCollection: "sales-knowledge",
		ManagementAgentID:       "management_agent",
		StrategyKnowledgeCollection: "strategy-knowledge",
		CRMAgentID:              "crm_agent",
		CRMKnowledgeCollection:  "crm-knowledge",
		WorkflowKnowledgeCollection: "sales-knowledge",
	}
}
