// Package embedding implements the embedding gateway external contract
// (spec §4.6), grounded on the teacher's internal/models/embedding
// Embedder interface and NewEmbedder provider-dispatch factory, narrowed
// to the OpenAI-compatible path (vendor-specific embedders dropped, see
// DESIGN.md).
package embedding

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/corlin/hicrm-core/internal/tracing"
	"github.com/corlin/hicrm-core/internal/types"
)

// Gateway is the embedding gateway external contract (spec §4.6).
// Embed must return vectors of the same dimensionality for all texts
// within one process lifetime.
type Gateway interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAICompatible embeds text via any OpenAI-compatible /embeddings
// endpoint (the router's Endpoint set), grounded on the teacher's
// NewOpenAIEmbedder path.
type OpenAICompatible struct {
	client    *openai.Client
	modelName string
}

// New builds an OpenAI-compatible embedding gateway against baseURL.
func New(apiKey, baseURL, modelName string) *OpenAICompatible {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICompatible{client: openai.NewClientWithConfig(cfg), modelName: modelName}
}

func (o *OpenAICompatible) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.BatchEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (o *OpenAICompatible) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := tracing.Start(ctx, "embedding.batch_embed")
	defer span.End()

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(o.modelName),
	})
	if err != nil {
		return nil, types.NewError(types.KindBackend, "embedding request failed", err)
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
