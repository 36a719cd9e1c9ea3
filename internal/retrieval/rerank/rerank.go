// Package rerank implements the rerank gateway external contract (spec
// §4.6), adapted from the teacher's internal/models/rerank/jina_reranker.go
// HTTP request/response shape.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/corlin/hicrm-core/internal/logger"
	"github.com/corlin/hicrm-core/internal/tracing"
	"github.com/corlin/hicrm-core/internal/types"
)

// RankResult is one (index, score) pair referring back into the input
// docText list, per spec §4.6.
type RankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"relevance_score"`
}

// Gateway is the rerank gateway external contract (spec §4.6). Rerank
// must be total: indices not returned are considered unranked.
type Gateway interface {
	Rerank(ctx context.Context, query string, docs []string, topK int) ([]RankResult, error)
}

type rerankRequest struct {
	Model           string   `json:"model"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	TopN            int      `json:"top_n,omitempty"`
	ReturnDocuments bool     `json:"return_documents,omitempty"`
}

type rerankResponse struct {
	Model   string       `json:"model"`
	Results []RankResult `json:"results"`
}

// JinaStyle reranks against any Jina/Zhipu-style POST /rerank endpoint.
type JinaStyle struct {
	modelName string
	apiKey    string
	baseURL   string
	client    *http.Client
}

// New builds a JinaStyle rerank gateway. baseURL defaults to Jina's
// public endpoint when empty.
func New(apiKey, baseURL, modelName string) *JinaStyle {
	if baseURL == "" {
		baseURL = "https://api.jina.ai/v1"
	}
	return &JinaStyle{modelName: modelName, apiKey: apiKey, baseURL: baseURL, client: &http.Client{}}
}

func (j *JinaStyle) Rerank(ctx context.Context, query string, docs []string, topK int) ([]RankResult, error) {
	ctx, span := tracing.Start(ctx, "rerank.rerank")
	defer span.End()

	body := rerankRequest{
		Model:           j.modelName,
		Query:           query,
		Documents:       docs,
		TopN:            topK,
		ReturnDocuments: false,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewError(types.KindInternal, "marshal rerank request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/rerank", j.baseURL), bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.KindInternal, "build rerank request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+j.apiKey)

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.KindBackend, "rerank request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.KindBackend, "read rerank response", err)
	}
	if resp.StatusCode != http.StatusOK {
		logger.GetLogger(ctx).WithField("status", resp.Status).Error("rerank API error")
		return nil, types.NewError(types.KindBackend, fmt.Sprintf("rerank API error: %s", resp.Status), nil)
	}

	var parsed rerankResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, types.NewError(types.KindInternal, "unmarshal rerank response", err)
	}
	if topK > 0 && len(parsed.Results) > topK {
		parsed.Results = parsed.Results[:topK]
	}
	return parsed.Results, nil
}
