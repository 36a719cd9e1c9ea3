// Package rag orchestrates chunking, retrieval, fusion, reranking and
// context packing into the four retrieval modes of spec §4.9, grounded
// on original_source/src/services/rag_service.py's EnhancedRAGService
// and the teacher's chat_pipline stage sequence
// (CHUNK_SEARCH -> CHUNK_RERANK -> CHUNK_MERGE -> INTO_CHAT_MESSAGE).
package rag

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/corlin/hicrm-core/internal/chunker"
	"github.com/corlin/hicrm-core/internal/common"
	"github.com/corlin/hicrm-core/internal/contextpack"
	"github.com/corlin/hicrm-core/internal/fusion"
	"github.com/corlin/hicrm-core/internal/logger"
	"github.com/corlin/hicrm-core/internal/retrieval/embedding"
	"github.com/corlin/hicrm-core/internal/retrieval/keyword"
	"github.com/corlin/hicrm-core/internal/retrieval/rerank"
	"github.com/corlin/hicrm-core/internal/retrieval/vectorstore"
	"github.com/corlin/hicrm-core/internal/types"
)

// Generator is the narrow slice of the Model Router (C7) the RAG
// engine needs for answer generation. A *router.Router satisfies this
// via its Generate convenience method.
type Generator interface {
	Generate(ctx context.Context, messages []types.ChatMessage, temperature float64, maxTokens int) (types.ChatResponse, error)
}

const systemPromptText = "You are a helpful assistant. Answer the question using only the numbered evidence provided below; do not invent facts not present in it."

// Engine is the RAG Engine (C9). It exclusively owns its Chunker,
// Packer and Fusion strategy selection; VectorStore/Embedding/Rerank
// gateways and the Generator are shared, non-owning references.
type Engine struct {
	mu sync.RWMutex

	cfg     types.RAGConfig
	chunker *chunker.Chunker
	packer  *contextpack.Packer

	store      vectorstore.Store
	embedder   embedding.Gateway
	reranker   rerank.Gateway
	generator  Generator
	paraphrase func(query string) [2]string
	keywords   keyword.Retriever
}

// defaultParaphraser reproduces spec §4.9's fusion-mode paraphrases
// literally. Language-agnosticism (Open Question, DESIGN.md) is
// addressed by making this pluggable via SetParaphraser rather than by
// changing the wording itself.
func defaultParaphraser(query string) [2]string {
	return [2]string{
		fmt.Sprintf("information about %s", query),
		fmt.Sprintf("%s-related content", query),
	}
}

// New builds a RAG engine over the given gateways, starting from cfg.
func New(cfg types.RAGConfig, store vectorstore.Store, embedder embedding.Gateway, reranker rerank.Gateway, generator Generator) *Engine {
	return &Engine{
		cfg:        cfg,
		chunker:    chunker.New(cfg.ChunkSize, cfg.ChunkOverlap),
		packer:     contextpack.New(cfg.ContextWindowTokens),
		store:      store,
		embedder:   embedder,
		reranker:   reranker,
		generator:  generator,
		paraphrase: defaultParaphraser,
	}
}

// SetKeywordRetriever attaches a BM25-style keyword retriever (SUPPLEMENT)
// as a fourth ranked input alongside the three vector queries hybrid
// mode fuses, reflecting the teacher's ChatManage.KeywordThreshold
// field. A nil retriever (the default) leaves hybrid mode pure-vector.
func (e *Engine) SetKeywordRetriever(k keyword.Retriever) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keywords = k
}

func (e *Engine) keywordRetriever() keyword.Retriever {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.keywords
}

// SetParaphraser overrides the two paraphrases fusion mode generates
// from the query (spec §9's Open Question: kept pluggable rather than
// hard-coded to one language).
func (e *Engine) SetParaphraser(p func(query string) [2]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paraphrase = p
}

// UpdateConfig atomically replaces the engine's RAGConfig and rebuilds
// the chunker and packer from the new value (spec §3 ownership rule).
func (e *Engine) UpdateConfig(cfg types.RAGConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	e.chunker = chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	e.packer = contextpack.New(cfg.ContextWindowTokens)
}

func (e *Engine) snapshot() (types.RAGConfig, *chunker.Chunker, *contextpack.Packer) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg, e.chunker, e.packer
}

func (e *Engine) paraphraser() func(string) [2]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.paraphrase
}

// AddDocuments splits each document, embeds its chunks and upserts them
// into collection (spec §4.9 Ingest).
func (e *Engine) AddDocuments(ctx context.Context, collection string, docs []types.DocumentInput) error {
	_, ck, _ := e.snapshot()

	var allChunks []types.Chunk
	for _, doc := range docs {
		allChunks = append(allChunks, ck.SplitDocument(doc.ID, doc.Content, doc.Metadata)...)
	}
	if len(allChunks) == 0 {
		return nil
	}

	texts := make([]string, len(allChunks))
	for i, c := range allChunks {
		texts[i] = c.Content
	}
	vectors, err := e.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		common.PipelineError(ctx, "rag.ingest", "embed", map[string]interface{}{"collection": collection, "error": err.Error()})
		return types.NewError(types.KindBackend, "failed to embed documents", err)
	}

	embedded := make([]vectorstore.EmbeddedChunk, len(allChunks))
	for i, c := range allChunks {
		embedded[i] = vectorstore.EmbeddedChunk{Chunk: c, Embedding: vectors[i]}
	}

	if err := e.store.Upsert(ctx, collection, embedded); err != nil {
		common.PipelineError(ctx, "rag.ingest", "upsert", map[string]interface{}{"collection": collection, "error": err.Error()})
		return types.NewError(types.KindBackend, "failed to upsert chunks", err)
	}
	common.PipelineInfo(ctx, "rag.ingest", "complete", map[string]interface{}{"collection": collection, "chunks": len(allChunks)})
	return nil
}

// Retrieve runs one of the four retrieval modes (spec §4.9 table).
// Vector-store/embedding failures degrade to an empty result rather
// than propagating (spec §4.9 Failure).
func (e *Engine) Retrieve(ctx context.Context, query string, mode types.RetrievalMode, collection string) types.RetrievalResult {
	start := time.Now()
	cfg, _, _ := e.snapshot()

	var docs []types.ScoredChunk
	var err error
	switch mode {
	case types.ModeFusion:
		docs, err = e.fusionRetrieve(ctx, query, collection, cfg)
	case types.ModeRerank:
		docs, err = e.rerankRetrieve(ctx, query, collection, cfg)
	case types.ModeHybrid:
		docs, err = e.hybridRetrieve(ctx, query, collection, cfg)
	default:
		docs, err = e.search(ctx, collection, query, cfg.TopK, cfg.SimilarityThreshold)
	}
	if err != nil {
		logger.GetLogger(ctx).WithError(err).Warn("rag retrieve degraded to empty result")
		docs = nil
	}

	return types.RetrievalResult{
		Documents:       docs,
		Mode:            mode,
		RetrievalTimeMs: time.Since(start).Milliseconds(),
		Metadata:        map[string]interface{}{"mode": string(mode), "collection": collection},
	}
}

func (e *Engine) search(ctx context.Context, collection, query string, limit int, threshold float64) ([]types.ScoredChunk, error) {
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return e.store.Search(ctx, collection, vec, query, limit, threshold)
}

// fusionRetrieve runs three vector searches (query + two paraphrases)
// in parallel and fuses them via RRF (spec §4.9).
func (e *Engine) fusionRetrieve(ctx context.Context, query, collection string, cfg types.RAGConfig) ([]types.ScoredChunk, error) {
	paraphrases := e.paraphraser()(query)
	queries := []string{query, paraphrases[0], paraphrases[1]}
	threshold := 0.8 * cfg.SimilarityThreshold

	results := make([][]types.ScoredChunk, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			docs, err := e.search(gctx, collection, q, cfg.TopK, threshold)
			if err != nil {
				return err
			}
			results[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fusion.Fuse(results, types.FusionRRF), nil
}

// rerankRetrieve searches 2*topK candidates then asks the rerank
// gateway to reorder and trim to rerankTopK (spec §4.9).
func (e *Engine) rerankRetrieve(ctx context.Context, query, collection string, cfg types.RAGConfig) ([]types.ScoredChunk, error) {
	candidates, err := e.search(ctx, collection, query, 2*cfg.TopK, 0.7*cfg.SimilarityThreshold)
	if err != nil {
		return nil, err
	}
	return e.applyRerank(ctx, query, candidates, cfg.RerankTopK)
}

// hybridRetrieve runs fusion plus, when a keyword retriever is
// configured, a BM25 keyword search fused in as a fourth ranked list,
// then reranks the fused list when it exceeds rerankTopK and rerank is
// enabled; otherwise truncates (spec §4.9).
func (e *Engine) hybridRetrieve(ctx context.Context, query, collection string, cfg types.RAGConfig) ([]types.ScoredChunk, error) {
	fused, err := e.fusionRetrieve(ctx, query, collection, cfg)
	if err != nil {
		return nil, err
	}

	if kw := e.keywordRetriever(); kw != nil {
		kwDocs, err := kw.Search(ctx, collection, query, cfg.TopK)
		if err != nil {
			logger.GetLogger(ctx).WithError(err).Warn("keyword retrieval degraded, continuing with vector fusion only")
		} else if len(kwDocs) > 0 {
			fused = fusion.Fuse([][]types.ScoredChunk{fused, kwDocs}, types.FusionRRF)
		}
	}

	if len(fused) > cfg.RerankTopK && cfg.EnableRerank {
		return e.applyRerank(ctx, query, fused, cfg.RerankTopK)
	}
	if len(fused) > cfg.RerankTopK {
		fused = fused[:cfg.RerankTopK]
	}
	return fused, nil
}

func (e *Engine) applyRerank(ctx context.Context, query string, candidates []types.ScoredChunk, topK int) ([]types.ScoredChunk, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}
	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Chunk.Content
	}
	ranked, err := e.reranker.Rerank(ctx, query, docs, topK)
	if err != nil {
		return nil, err
	}
	out := make([]types.ScoredChunk, 0, len(ranked))
	for _, r := range ranked {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		sc := candidates[r.Index]
		sc.Score = r.Score
		out = append(out, sc)
	}
	return out, nil
}

// Generate composes a context-grounded prompt from chunks and sends it
// through the Generator. Returns a fixed "no relevant context" answer
// without calling a model when chunks is empty (spec §4.9 Generation).
func (e *Engine) Generate(ctx context.Context, query string, chunks []types.ScoredChunk, mode types.RetrievalMode) (string, error) {
	_, _, packer := e.snapshot()
	_, kept := packer.Pack(query, chunks, systemPromptText)
	return e.generateFromKept(ctx, query, kept)
}

func (e *Engine) generateFromKept(ctx context.Context, query string, kept []types.ScoredChunk) (string, error) {
	if len(kept) == 0 {
		return "I could not find relevant context to answer this question.", nil
	}
	cfg, _, _ := e.snapshot()

	prompt := buildPrompt(query, kept)
	resp, err := e.generator.Generate(ctx, []types.ChatMessage{
		{Role: types.RoleSystem, Content: systemPromptText},
		{Role: types.RoleUser, Content: prompt},
	}, cfg.Temperature, cfg.MaxGenTokens)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func buildPrompt(query string, kept []types.ScoredChunk) string {
	out := "Evidence:\n"
	for i, c := range kept {
		out += fmt.Sprintf("[%d] %s\n", i+1, c.Chunk.Content)
	}
	out += fmt.Sprintf("\nQuestion: %s\nAnswer using only the evidence above, citing source numbers.", query)
	return out
}

// Query is the top-level entry point: retrieve then generate, never
// throwing to the caller (spec §4.9 Failure).
func (e *Engine) Query(ctx context.Context, question string, mode types.RetrievalMode, collection string) types.RAGAnswer {
	totalStart := time.Now()

	retrieval := e.Retrieve(ctx, question, mode, collection)
	_, _, packer := e.snapshot()
	_, kept := packer.Pack(question, retrieval.Documents, systemPromptText)

	genStart := time.Now()
	answer, err := e.generateFromKept(ctx, question, kept)
	genMs := time.Since(genStart).Milliseconds()
	if err != nil {
		return types.RAGAnswer{
			Answer:       fmt.Sprintf("generation failed: %v", err),
			Confidence:   0,
			RetrievalMs:  retrieval.RetrievalTimeMs,
			GenerationMs: genMs,
			TotalMs:      time.Since(totalStart).Milliseconds(),
			Mode:         mode,
			Metadata:     map[string]interface{}{"mode": string(mode)},
		}
	}

	sources := make([]types.AnswerSource, len(kept))
	scores := make([]float64, len(kept))
	for i, c := range kept {
		sources[i] = types.AnswerSource{
			Index:          i,
			ContentPreview: preview(c.Chunk.Content, 200),
			Metadata:       c.Chunk.Metadata,
			Score:          c.Score,
		}
		scores[i] = c.Score
	}

	return types.RAGAnswer{
		Answer:       answer,
		Sources:      sources,
		Confidence:   confidence(scores),
		RetrievalMs:  retrieval.RetrievalTimeMs,
		GenerationMs: genMs,
		TotalMs:      time.Since(totalStart).Milliseconds(),
		Mode:         mode,
		Metadata:     map[string]interface{}{"mode": string(mode)},
	}
}

// confidence implements spec §4.9's
// 0.7*avg(scores) + 0.2*(1-variance(scores)) + 0.1*min(docCount/5, 1),
// clamped to [0,1]. Empty sources yield 0.
func confidence(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	avg := sum / float64(len(scores))

	var varSum float64
	for _, s := range scores {
		d := s - avg
		varSum += d * d
	}
	variance := varSum / float64(len(scores))

	docFactor := math.Min(float64(len(scores))/5.0, 1.0)
	c := 0.7*avg + 0.2*(1-variance) + 0.1*docFactor
	return math.Min(math.Max(c, 0), 1)
}

func preview(content string, maxRunes int) string {
	runes := []rune(content)
	if len(runes) <= maxRunes {
		return content
	}
	return string(runes[:maxRunes]) + "..."
}
