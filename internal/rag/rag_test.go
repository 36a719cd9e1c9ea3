package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corlin/hicrm-core/internal/retrieval/rerank"
	"github.com/corlin/hicrm-core/internal/retrieval/vectorstore"
	"github.com/corlin/hicrm-core/internal/types"
)

type fakeStore struct {
	searchFunc func(ctx context.Context, collection string, queryText string, limit int, threshold float64) ([]types.ScoredChunk, error)
	upserted   []vectorstore.EmbeddedChunk
}

func (f *fakeStore) Upsert(ctx context.Context, collection string, chunks []vectorstore.EmbeddedChunk) error {
	f.upserted = append(f.upserted, chunks...)
	return nil
}

func (f *fakeStore) Search(ctx context.Context, collection string, queryEmbedding []float32, queryText string, limit int, scoreThreshold float64) ([]types.ScoredChunk, error) {
	return f.searchFunc(ctx, collection, queryText, limit, scoreThreshold)
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

func (fakeEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

type fakeReranker struct {
	result []rerank.RankResult
}

func (f fakeReranker) Rerank(ctx context.Context, query string, docs []string, topK int) ([]rerank.RankResult, error) {
	out := append([]rerank.RankResult(nil), f.result...)
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

type fakeGenerator struct {
	lastPrompt string
}

func (f *fakeGenerator) Generate(ctx context.Context, messages []types.ChatMessage, temperature float64, maxTokens int) (types.ChatResponse, error) {
	for _, m := range messages {
		if m.Role == types.RoleUser {
			f.lastPrompt = m.Content
		}
	}
	return types.ChatResponse{Content: "generated answer"}, nil
}

func chunkAt(id, content string, score float64) types.ScoredChunk {
	return types.ScoredChunk{Chunk: types.Chunk{ID: id, Content: content}, Score: score}
}

func TestAddDocumentsSplitsEmbedsAndUpserts(t *testing.T) {
	store := &fakeStore{}
	e := New(types.DefaultRAGConfig(), store, fakeEmbedder{}, fakeReranker{}, &fakeGenerator{})

	err := e.AddDocuments(context.Background(), "docs", []types.DocumentInput{
		{ID: "doc1", Content: strings.Repeat("hello world. ", 5)},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, store.upserted)
}

func TestRetrieveSimpleMode(t *testing.T) {
	store := &fakeStore{searchFunc: func(ctx context.Context, collection, query string, limit int, threshold float64) ([]types.ScoredChunk, error) {
		return []types.ScoredChunk{chunkAt("c1", "about widgets", 0.9)}, nil
	}}
	e := New(types.DefaultRAGConfig(), store, fakeEmbedder{}, fakeReranker{}, &fakeGenerator{})

	result := e.Retrieve(context.Background(), "widgets?", types.ModeSimple, "docs")
	require.Len(t, result.Documents, 1)
	assert.Equal(t, types.ModeSimple, result.Mode)
}

func TestRetrieveFusionModeCallsThreeSearches(t *testing.T) {
	var calls []string
	store := &fakeStore{searchFunc: func(ctx context.Context, collection, query string, limit int, threshold float64) ([]types.ScoredChunk, error) {
		calls = append(calls, query)
		return []types.ScoredChunk{chunkAt("c1", "x", 0.5)}, nil
	}}
	e := New(types.DefaultRAGConfig(), store, fakeEmbedder{}, fakeReranker{}, &fakeGenerator{})

	result := e.Retrieve(context.Background(), "widgets", types.ModeFusion, "docs")
	assert.Len(t, calls, 3)
	assert.NotEmpty(t, result.Documents)
}

type fakeKeywordRetriever struct {
	calls int
	docs  []types.ScoredChunk
}

func (f *fakeKeywordRetriever) Search(ctx context.Context, collection, query string, limit int) ([]types.ScoredChunk, error) {
	f.calls++
	return f.docs, nil
}

func TestHybridModeFusesKeywordRetrieverWhenConfigured(t *testing.T) {
	store := &fakeStore{searchFunc: func(ctx context.Context, collection, query string, limit int, threshold float64) ([]types.ScoredChunk, error) {
		return []types.ScoredChunk{chunkAt("vec1", "vector hit", 0.6)}, nil
	}}
	e := New(types.DefaultRAGConfig(), store, fakeEmbedder{}, fakeReranker{}, &fakeGenerator{})
	kw := &fakeKeywordRetriever{docs: []types.ScoredChunk{chunkAt("kw1", "keyword hit", 0.4)}}
	e.SetKeywordRetriever(kw)

	result := e.Retrieve(context.Background(), "widgets", types.ModeHybrid, "docs")
	assert.Equal(t, 1, kw.calls)

	var ids []string
	for _, d := range result.Documents {
		ids = append(ids, d.Chunk.ID)
	}
	assert.Contains(t, ids, "kw1")
	assert.Contains(t, ids, "vec1")
}

func TestRetrieveDegradesToEmptyOnBackendError(t *testing.T) {
	store := &fakeStore{searchFunc: func(ctx context.Context, collection, query string, limit int, threshold float64) ([]types.ScoredChunk, error) {
		return nil, assertError{}
	}}
	e := New(types.DefaultRAGConfig(), store, fakeEmbedder{}, fakeReranker{}, &fakeGenerator{})

	result := e.Retrieve(context.Background(), "widgets", types.ModeSimple, "docs")
	assert.Empty(t, result.Documents)
}

type assertError struct{}

func (assertError) Error() string { return "backend unavailable" }

func TestGenerateReturnsNoContextAnswerWhenPackerDropsEverything(t *testing.T) {
	cfg := types.DefaultRAGConfig()
	cfg.ContextWindowTokens = 1
	e := New(cfg, &fakeStore{}, fakeEmbedder{}, fakeReranker{}, &fakeGenerator{})

	answer, err := e.Generate(context.Background(), "q", nil, types.ModeSimple)
	require.NoError(t, err)
	assert.Contains(t, answer, "could not find")
}

func TestQueryProducesConfidenceAndSources(t *testing.T) {
	store := &fakeStore{searchFunc: func(ctx context.Context, collection, query string, limit int, threshold float64) ([]types.ScoredChunk, error) {
		return []types.ScoredChunk{
			chunkAt("c1", "widgets are great", 0.9),
			chunkAt("c2", "widgets ship fast", 0.8),
		}, nil
	}}
	gen := &fakeGenerator{}
	e := New(types.DefaultRAGConfig(), store, fakeEmbedder{}, fakeReranker{}, gen)

	answer := e.Query(context.Background(), "tell me about widgets", types.ModeSimple, "docs")
	require.NotEmpty(t, answer.Sources)
	assert.Greater(t, answer.Confidence, 0.0)
	assert.LessOrEqual(t, answer.Confidence, 1.0)
	assert.Equal(t, "generated answer", answer.Answer)
	assert.Contains(t, gen.lastPrompt, "[1]")
}

func TestQueryZeroConfidenceOnEmptyRetrieval(t *testing.T) {
	store := &fakeStore{searchFunc: func(ctx context.Context, collection, query string, limit int, threshold float64) ([]types.ScoredChunk, error) {
		return nil, nil
	}}
	e := New(types.DefaultRAGConfig(), store, fakeEmbedder{}, fakeReranker{}, &fakeGenerator{})

	answer := e.Query(context.Background(), "tell me about widgets", types.ModeSimple, "docs")
	assert.Equal(t, 0.0, answer.Confidence)
}

func TestUpdateConfigRebuildsChunkerAndPacker(t *testing.T) {
	e := New(types.DefaultRAGConfig(), &fakeStore{}, fakeEmbedder{}, fakeReranker{}, &fakeGenerator{})
	newCfg := types.DefaultRAGConfig()
	newCfg.ChunkSize = 100
	e.UpdateConfig(newCfg)

	cfg, ck, _ := e.snapshot()
	assert.Equal(t, 100, cfg.ChunkSize)
	assert.Equal(t, 100, ck.ChunkSize)
}
