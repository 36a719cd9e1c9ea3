// Package keyword is a SUPPLEMENT (see SPEC_FULL.md / DESIGN.md):
// an Elasticsearch-backed BM25 keyword retriever fused alongside vector
// search results in the RAG engine's hybrid mode. Grounded on
// the teacher's types.ChatManage.KeywordThreshold field, which shows the
// original design already intended a keyword signal alongside the
// vector signal.
package keyword

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/corlin/hicrm-core/internal/tracing"
	"github.com/corlin/hicrm-core/internal/types"
)

// Retriever is the keyword-search contract the RAG engine's hybrid mode
// fuses in alongside its vector results when configured.
type Retriever interface {
	Search(ctx context.Context, collection, query string, limit int) ([]types.ScoredChunk, error)
}

// Elastic is an Elasticsearch-backed Retriever using a simple_query_string
// match over the chunk content field.
type Elastic struct {
	client *elasticsearch.Client
}

// New wraps an already-configured es client.
func New(client *elasticsearch.Client) *Elastic {
	return &Elastic{client: client}
}

type searchHit struct {
	ID     string          `json:"_id"`
	Score  float64         `json:"_score"`
	Source json.RawMessage `json:"_source"`
}

type chunkSource struct {
	Content       string `json:"content"`
	OriginalDocID string `json:"original_doc_id"`
	ChunkIndex    int    `json:"chunk_index"`
	TotalChunks   int    `json:"total_chunks"`
}

func (e *Elastic) Search(ctx context.Context, collection, query string, limit int) ([]types.ScoredChunk, error) {
	ctx, span := tracing.Start(ctx, "keyword.search")
	defer span.End()

	body := map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"simple_query_string": map[string]interface{}{
				"query":  query,
				"fields": []string{"content"},
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewError(types.KindInternal, "marshal keyword query", err)
	}

	req := esapi.SearchRequest{
		Index: []string{collection},
		Body:  bytes.NewReader(payload),
	}
	resp, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, types.NewError(types.KindBackend, "elasticsearch search failed", err)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return nil, types.NewError(types.KindBackend, fmt.Sprintf("elasticsearch error: %s", resp.Status()), nil)
	}

	var parsed struct {
		Hits struct {
			Hits []searchHit `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, types.NewError(types.KindInternal, "decode elasticsearch response", err)
	}

	results := make([]types.ScoredChunk, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		var src chunkSource
		if err := json.Unmarshal(hit.Source, &src); err != nil {
			continue
		}
		results = append(results, types.ScoredChunk{
			Chunk: types.Chunk{
				ID:            hit.ID,
				Content:       src.Content,
				OriginalDocID: src.OriginalDocID,
				ChunkIndex:    src.ChunkIndex,
				TotalChunks:   src.TotalChunks,
			},
			Score: hit.Score,
		})
	}
	return results, nil
}
