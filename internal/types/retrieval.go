// Package types holds the data model shared by the RAG pipeline, the
// model router and the agent runtime (spec §3). Types here are plain
// value objects; behavior lives in the owning package.
package types

import "time"

// Chunk is the atomic retrieval unit produced by the chunker on ingest.
// Immutable once created.
type Chunk struct {
	ID            string
	OriginalDocID string
	ChunkIndex    int
	TotalChunks   int
	Content       string
	Metadata      map[string]interface{}
}

// ScoredChunk pairs a Chunk with a similarity/relevance score, as
// returned by the vector store or result fusion. Non-persistent.
type ScoredChunk struct {
	Chunk    Chunk
	Score    float64
	Distance *float64
}

// RetrievalMode selects which of the four retrieval procedures (§4.9)
// the RAG engine runs.
type RetrievalMode string

const (
	ModeSimple RetrievalMode = "simple"
	ModeFusion RetrievalMode = "fusion"
	ModeRerank RetrievalMode = "rerank"
	ModeHybrid RetrievalMode = "hybrid"
)

// FusionMethod selects the result-fusion strategy (§4.3).
type FusionMethod string

const (
	FusionRRF      FusionMethod = "rrf"
	FusionWeighted FusionMethod = "weighted"
	FusionMax      FusionMethod = "max"
)

// RetrievalResult is the outcome of a single retrieve() call.
type RetrievalResult struct {
	Documents      []ScoredChunk
	Mode           RetrievalMode
	RetrievalTimeMs int64
	Metadata       map[string]interface{}
}

// AnswerSource is one cited passage in a RAGAnswer.
type AnswerSource struct {
	Index          int
	ContentPreview string
	Metadata       map[string]interface{}
	Score          float64
}

// RAGAnswer is the final output of RAGEngine.Query.
type RAGAnswer struct {
	Answer        string
	Sources       []AnswerSource
	Confidence    float64
	RetrievalMs   int64
	GenerationMs  int64
	TotalMs       int64
	Mode          RetrievalMode
	Metadata      map[string]interface{}
}

// RAGConfig is the mutable runtime configuration of the RAG engine
// (§3). Updates replace the value atomically; RAGEngine.UpdateConfig
// rebuilds the chunker and packer from the new value.
type RAGConfig struct {
	ChunkSize           int
	ChunkOverlap        int
	TopK                int
	SimilarityThreshold float64
	RerankTopK          int
	ContextWindowTokens int
	EnableRerank        bool
	EnableFusion        bool
	Temperature         float64
	MaxGenTokens        int
}

// DefaultRAGConfig mirrors original_source's RAGConfig defaults
// (chunk_size=512, chunk_overlap=50, top_k=10, ...).
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		ChunkSize:           512,
		ChunkOverlap:        50,
		TopK:                10,
		SimilarityThreshold: 0.7,
		RerankTopK:          5,
		ContextWindowTokens: 4000,
		EnableRerank:        true,
		EnableFusion:        true,
		Temperature:         0.1,
		MaxGenTokens:        1000,
	}
}

// DocumentInput is one document passed to RAGEngine.AddDocuments.
type DocumentInput struct {
	ID       string
	Content  string
	Metadata map[string]interface{}
}

// IngestTimestamp is attached to chunk metadata on ingest; kept as a
// named type so callers don't thread raw time.Time through maps.
type IngestTimestamp = time.Time
