// Package vectorstore defines the vector store gateway external contract
// (spec §4.5) implemented by the qdrant and pgvector adapters.
package vectorstore

import (
	"context"

	"github.com/corlin/hicrm-core/internal/types"
)

// EmbeddedChunk pairs a Chunk with its embedding vector for upsert.
type EmbeddedChunk struct {
	Chunk     types.Chunk
	Embedding []float32
}

// Store is the vector store gateway external contract (spec §4.5).
// Implementations must be idempotent on Upsert by chunk id.
type Store interface {
	// Upsert writes chunks with their embeddings into collection,
	// idempotent by chunk id.
	Upsert(ctx context.Context, collection string, chunks []EmbeddedChunk) error

	// Search returns up to limit chunks from collection with similarity
	// >= scoreThreshold, sorted descending by similarity. queryText is
	// passed alongside queryEmbedding; the qdrant and pgvector adapters
	// do not embed it themselves and reject an empty queryEmbedding with
	// a validation error.
	Search(ctx context.Context, collection string, queryEmbedding []float32, queryText string,
		limit int, scoreThreshold float64) ([]types.ScoredChunk, error)
}
