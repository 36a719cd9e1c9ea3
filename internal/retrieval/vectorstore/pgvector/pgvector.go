// Package pgvector implements the vector store gateway (spec §4.5)
// against Postgres, grounded on the teacher's gorm repository style
// (application/repository/custom_agent.go) using
// github.com/pgvector/pgvector-go + gorm.io/gorm + gorm.io/driver/postgres.
package pgvector

import (
	"context"
	"errors"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/corlin/hicrm-core/internal/retrieval/vectorstore"
	"github.com/corlin/hicrm-core/internal/tracing"
	"github.com/corlin/hicrm-core/internal/types"
)

// embeddingRow is the gorm model backing the chunk_embeddings table. All
// collections share that one table; the Collection column keeps their
// rows apart and every search filters on it.
type embeddingRow struct {
	ChunkID       string `gorm:"primaryKey"`
	Collection    string `gorm:"primaryKey;index"`
	OriginalDocID string
	ChunkIndex    int
	TotalChunks   int
	Content       string
	Embedding     pgvector.Vector `gorm:"type:vector"`
}

func (embeddingRow) TableName() string { return "chunk_embeddings" }

// Adapter is a vectorstore.Store backed by Postgres+pgvector.
type Adapter struct {
	db *gorm.DB
}

// New wraps an already-connected gorm DB and ensures the embeddings
// table exists.
func New(db *gorm.DB) (*Adapter, error) {
	if err := db.AutoMigrate(&embeddingRow{}); err != nil {
		return nil, types.NewError(types.KindBackend, "migrate pgvector embeddings table", err)
	}
	return &Adapter{db: db}, nil
}

func (a *Adapter) Upsert(ctx context.Context, collection string, chunks []vectorstore.EmbeddedChunk) error {
	ctx, span := tracing.Start(ctx, "vectorstore.pgvector.upsert")
	defer span.End()

	rows := make([]embeddingRow, 0, len(chunks))
	for _, ec := range chunks {
		rows = append(rows, embeddingRow{
			ChunkID:       ec.Chunk.ID,
			Collection:    collection,
			OriginalDocID: ec.Chunk.OriginalDocID,
			ChunkIndex:    ec.Chunk.ChunkIndex,
			TotalChunks:   ec.Chunk.TotalChunks,
			Content:       ec.Chunk.Content,
			Embedding:     pgvector.NewVector(ec.Embedding),
		})
	}

	err := a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chunk_id"}, {Name: "collection"}},
		UpdateAll: true,
	}).Create(&rows).Error
	if err != nil {
		return types.NewError(types.KindBackend, "pgvector upsert", err)
	}
	return nil
}

func (a *Adapter) Search(ctx context.Context, collection string, queryEmbedding []float32, queryText string,
	limit int, scoreThreshold float64,
) ([]types.ScoredChunk, error) {
	ctx, span := tracing.Start(ctx, "vectorstore.pgvector.search")
	defer span.End()

	if len(queryEmbedding) == 0 {
		return nil, types.NewError(types.KindValidation, "pgvector search requires a precomputed query embedding", nil)
	}
	query := pgvector.NewVector(queryEmbedding)

	var rows []struct {
		embeddingRow
		Similarity float64
	}
	err := a.db.WithContext(ctx).
		Table("chunk_embeddings").
		Select("*, 1 - (embedding <=> ?) as similarity", query).
		Where("collection = ?", collection).
		Where("1 - (embedding <=> ?) >= ?", query, scoreThreshold).
		Order("embedding <=> ?", query).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, types.NewError(types.KindBackend, "pgvector search", err)
	}

	results := make([]types.ScoredChunk, 0, len(rows))
	for _, r := range rows {
		results = append(results, types.ScoredChunk{
			Chunk: types.Chunk{
				ID:            r.ChunkID,
				OriginalDocID: r.OriginalDocID,
				ChunkIndex:    r.ChunkIndex,
				TotalChunks:   r.TotalChunks,
				Content:       r.Content,
			},
			Score: r.Similarity,
		})
	}
	return results, nil
}
