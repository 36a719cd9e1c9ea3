// Package qdrant implements the vector store gateway (spec §4.5) against
// a Qdrant instance, grounded on the teacher's
// application/repository/retriever/qdrant/structs.go payload shape
// (content/source/knowledge ids kept as payload fields) using
// github.com/qdrant/go-client.
package qdrant

import (
	"context"
	"fmt"

	qdrantclient "github.com/qdrant/go-client/qdrant"

	"github.com/corlin/hicrm-core/internal/retrieval/vectorstore"
	"github.com/corlin/hicrm-core/internal/tracing"
	"github.com/corlin/hicrm-core/internal/types"
)

// Adapter is a vectorstore.Store backed by Qdrant. Payload fields mirror
// the teacher's QdrantVectorEmbedding (content/original doc id/chunk
// index), narrowed to the fields the RAG engine's Chunk type carries.
type Adapter struct {
	client *qdrantclient.Client
}

// New dials a Qdrant instance at host:port.
func New(host string, port int, useTLS bool) (*Adapter, error) {
	client, err := qdrantclient.NewClient(&qdrantclient.Config{
		Host:   host,
		Port:   port,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, types.NewError(types.KindBackend, "dial qdrant", err)
	}
	return &Adapter{client: client}, nil
}

// EnsureCollection creates collection if it does not already exist,
// sized for vectorSize-dimensional cosine-distance vectors.
func (a *Adapter) EnsureCollection(ctx context.Context, collection string, vectorSize uint64) error {
	exists, err := a.client.CollectionExists(ctx, collection)
	if err != nil {
		return types.NewError(types.KindBackend, "check qdrant collection", err)
	}
	if exists {
		return nil
	}
	return a.client.CreateCollection(ctx, &qdrantclient.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrantclient.NewVectorsConfig(&qdrantclient.VectorParams{
			Size:     vectorSize,
			Distance: qdrantclient.Distance_Cosine,
		}),
	})
}

func (a *Adapter) Upsert(ctx context.Context, collection string, chunks []vectorstore.EmbeddedChunk) error {
	ctx, span := tracing.Start(ctx, "vectorstore.qdrant.upsert")
	defer span.End()

	points := make([]*qdrantclient.PointStruct, 0, len(chunks))
	for _, ec := range chunks {
		points = append(points, &qdrantclient.PointStruct{
			Id:      qdrantclient.NewID(ec.Chunk.ID),
			Vectors: qdrantclient.NewVectors(ec.Embedding...),
			Payload: qdrantclient.NewValueMap(map[string]any{
				"content":          ec.Chunk.Content,
				"original_doc_id":  ec.Chunk.OriginalDocID,
				"chunk_index":      ec.Chunk.ChunkIndex,
				"total_chunks":     ec.Chunk.TotalChunks,
			}),
		})
	}

	_, err := a.client.Upsert(ctx, &qdrantclient.UpsertPoints{
		CollectionName: collection,
		Points:         points,
		Wait:           qdrantclient.PtrOf(true),
	})
	if err != nil {
		return types.NewError(types.KindBackend, fmt.Sprintf("qdrant upsert into %s", collection), err)
	}
	return nil
}

func (a *Adapter) Search(ctx context.Context, collection string, queryEmbedding []float32, queryText string,
	limit int, scoreThreshold float64,
) ([]types.ScoredChunk, error) {
	ctx, span := tracing.Start(ctx, "vectorstore.qdrant.search")
	defer span.End()

	if len(queryEmbedding) == 0 {
		return nil, types.NewError(types.KindValidation, "qdrant search requires a precomputed query embedding", nil)
	}

	limit64 := uint64(limit)
	threshold := float32(scoreThreshold)
	points, err := a.client.Query(ctx, &qdrantclient.QueryPoints{
		CollectionName: collection,
		Query:          qdrantclient.NewQuery(queryEmbedding...),
		Limit:          &limit64,
		ScoreThreshold: &threshold,
		WithPayload:    qdrantclient.NewWithPayload(true),
	})
	if err != nil {
		return nil, types.NewError(types.KindBackend, fmt.Sprintf("qdrant search in %s", collection), err)
	}

	results := make([]types.ScoredChunk, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		results = append(results, types.ScoredChunk{
			Chunk: types.Chunk{
				ID:            idToString(p.GetId()),
				Content:       stringField(payload, "content"),
				OriginalDocID: stringField(payload, "original_doc_id"),
				ChunkIndex:    int(intField(payload, "chunk_index")),
				TotalChunks:   int(intField(payload, "total_chunks")),
			},
			Score: float64(p.GetScore()),
		})
	}
	return results, nil
}

func idToString(id *qdrantclient.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func stringField(payload map[string]*qdrantclient.Value, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	return v.GetStringValue()
}

func intField(payload map[string]*qdrantclient.Value, key string) int64 {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	return v.GetIntegerValue()
}
