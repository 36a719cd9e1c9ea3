// Package router is the ModelRouter (spec §4.7): endpoint-keyed
// chat/stream/embed/tool dispatch with canonicalization, context-budget
// truncation and a fallback cascade, grounded on
// original_source/src/services/llm_service.py's EnhancedLLMService.
package router

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/corlin/hicrm-core/internal/logger"
	"github.com/corlin/hicrm-core/internal/router/provider"
	"github.com/corlin/hicrm-core/internal/tokenestimate"
	"github.com/corlin/hicrm-core/internal/tools"
	"github.com/corlin/hicrm-core/internal/tracing"
	"github.com/corlin/hicrm-core/internal/types"
)

// ResponseCache backs the cachedResponse fallback strategy (optional;
// spec §4.7 names it as a best-effort degrade path).
type ResponseCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, content string)
}

// simpleResponseText is the fixed apologetic payload used as the last
// resort of the fallback cascade, grounded on llm_service.py's
// _get_simple_response.
const simpleResponseText = "I'm currently unable to generate a full response due to a temporary service issue. Please try again shortly."

// ChatRequest is one chatCompletion/chatCompletionStream/toolCall call
// (spec §4.7).
type ChatRequest struct {
	ConversationID string
	Messages       []types.ChatMessage
	Model          string
	Temperature    float64
	MaxTokens      int
	Tools          []types.Tool // explicit tool subset; nil means "use every enabled registry tool"
	Fallback       types.FallbackStrategy
}

// Router dispatches chat/embedding/tool-call requests to a set of
// OpenAI-compatible endpoints, tracking conversation contexts and
// falling back across models on backend failure.
type Router struct {
	endpoints         map[string]types.Endpoint
	clients           map[string]*openai.Client
	models            map[string]types.ModelDescriptor
	defModel          string
	defaultEndpointID string

	registry *tools.Registry
	cache    ResponseCache
	contexts *contextStore

	endpointKinds map[string]provider.Name

	mu sync.RWMutex // guards reads of models/endpoints/clients
}

// New builds a Router. endpoints and models are keyed by Endpoint.ID and
// ModelDescriptor.Name respectively; defaultModel must name an entry in
// models. The first entry in endpoints becomes the default endpoint
// (spec §4.7 "Endpoint selection": a model with no configured endpoint,
// or a stale EndpointID naming no known endpoint, dispatches to it).
func New(endpoints []types.Endpoint, models []types.ModelDescriptor, defaultModel string, registry *tools.Registry, cache ResponseCache) *Router {
	r := &Router{
		endpoints:     make(map[string]types.Endpoint, len(endpoints)),
		clients:       make(map[string]*openai.Client, len(endpoints)),
		models:        make(map[string]types.ModelDescriptor, len(models)),
		defModel:      defaultModel,
		registry:      registry,
		cache:         cache,
		contexts:      newContextStore(),
		endpointKinds: make(map[string]provider.Name, len(endpoints)),
	}
	for i, ep := range endpoints {
		r.endpoints[ep.ID] = ep
		r.clients[ep.ID] = newClient(ep)
		r.endpointKinds[ep.ID] = detectAndValidate(ep)
		if i == 0 {
			r.defaultEndpointID = ep.ID
		}
	}
	for _, m := range models {
		r.models[m.Name] = m
	}
	return r
}

// detectAndValidate infers the endpoint's provider kind from its base URL
// and runs that provider's ValidateConfig, logging (not failing) on a
// misconfigured endpoint — construction never rejects an endpoint, it
// just surfaces the problem before the first request hits it.
func detectAndValidate(ep types.Endpoint) provider.Name {
	kind := provider.DetectProvider(ep.BaseURL)
	p := provider.GetOrDefault(kind)
	if err := p.ValidateConfig(&provider.Config{BaseURL: ep.BaseURL, APIKey: ep.APIKey, ModelName: ep.ModelPrefix}); err != nil {
		logger.GetLogger(context.Background()).Warnf("router: endpoint %s (%s) failed provider validation: %v", ep.ID, kind, err)
	}
	return kind
}

// EndpointKind reports the provider kind detected for an endpoint at
// construction time (spec §4.7's per-endpoint dispatch).
func (r *Router) EndpointKind(endpointID string) (provider.Name, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kind, ok := r.endpointKinds[endpointID]
	return kind, ok
}

func newClient(ep types.Endpoint) *openai.Client {
	cfg := openai.DefaultConfig(ep.APIKey)
	if ep.BaseURL != "" {
		cfg.BaseURL = ep.BaseURL
	}
	return openai.NewClientWithConfig(cfg)
}

func (r *Router) model(name string) (types.ModelDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.defModel
	}
	m, ok := r.models[name]
	return m, ok
}

// client resolves endpointID to its *openai.Client, falling back to the
// default endpoint (the first one passed to New) when endpointID is
// empty or names no configured endpoint (spec §4.7 "Endpoint
// selection").
func (r *Router) client(endpointID string) (*openai.Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.clients[endpointID]; ok {
		return c, true
	}
	if r.defaultEndpointID == "" {
		return nil, false
	}
	c, ok := r.clients[r.defaultEndpointID]
	return c, ok
}

// fallbackModels returns every model but name, sorted by ascending
// Priority, capped at 3, grounded on llm_service.py's
// _get_fallback_models.
func (r *Router) fallbackModels(name string) []types.ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ModelDescriptor, 0, len(r.models))
	for n, m := range r.models {
		if n != name {
			out = append(out, m)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Priority < out[j-1].Priority; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}

// CreateContext registers a new conversation.
func (r *Router) CreateContext(id, userID string, metadata map[string]interface{}, maxContextTokens int) *types.ConversationContext {
	return r.contexts.create(id, userID, metadata, maxContextTokens)
}

// GetContext returns a snapshot of conversation id, if known.
func (r *Router) GetContext(id string) (*types.ConversationContext, bool) {
	return r.contexts.get(id)
}

// AppendContextMessage appends msg to conversation id, truncating to
// its MaxContextTokens budget if needed.
func (r *Router) AppendContextMessage(id string, msg types.ChatMessage) {
	r.contexts.append(id, msg)
}

func preprocess(messages []types.ChatMessage) []types.ChatMessage {
	out := make([]types.ChatMessage, len(messages))
	for i, m := range messages {
		m.Content = canonicalize(m.Content)
		out[i] = m
	}
	return out
}

func (r *Router) budgetFor(model types.ModelDescriptor, req ChatRequest) int {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = model.MaxGenTokens
	}
	budget := model.ContextWindowTokens - maxTokens
	if req.ConversationID != "" {
		if ctx, ok := r.contexts.get(req.ConversationID); ok && ctx.MaxContextTokens > 0 && ctx.MaxContextTokens < budget {
			budget = ctx.MaxContextTokens
		}
	}
	if budget < 0 {
		budget = 0
	}
	return budget
}

// buildMessages assembles the final outbound message list: stored
// conversation history (if any) + fresh request messages, canonicalized
// and truncated to the model's context budget (spec §4.7
// Pre-processing).
func (r *Router) buildMessages(model types.ModelDescriptor, req ChatRequest) []types.ChatMessage {
	fresh := preprocess(req.Messages)
	var combined []types.ChatMessage
	if req.ConversationID != "" {
		combined = r.contexts.prepend(req.ConversationID, fresh)
	} else {
		combined = fresh
	}
	return tokenestimate.Truncate(combined, r.budgetFor(model, req))
}

func toOpenAIMessages(messages []types.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}

// dispatch issues one non-streaming completion against model's
// endpoint.
func (r *Router) dispatch(ctx context.Context, model types.ModelDescriptor, req ChatRequest) (types.ChatResponse, error) {
	client, ok := r.client(model.EndpointID)
	if !ok {
		return types.ChatResponse{}, types.NewError(types.KindNotFound, "unknown endpoint: "+model.EndpointID, nil)
	}

	messages := r.buildMessages(model, req)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = model.MaxGenTokens
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model.Name,
		Messages:    toOpenAIMessages(messages),
		Temperature: float32(req.Temperature),
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return types.ChatResponse{}, types.NewError(types.KindBackend, "chat completion failed for model "+model.Name, err)
	}
	if len(resp.Choices) == 0 {
		return types.ChatResponse{}, types.NewError(types.KindBackend, "empty response from model "+model.Name, nil)
	}

	return types.ChatResponse{
		Content: resp.Choices[0].Message.Content,
		Model:   model.Name,
		Usage: types.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// ChatCompletion runs the full pipeline: canonicalize, merge/truncate
// context, dispatch, and on backend failure run req.Fallback's cascade
// (spec §4.7).
func (r *Router) ChatCompletion(ctx context.Context, req ChatRequest) (types.ChatResponse, error) {
	ctx, span := tracing.Start(ctx, "router.chatCompletion")
	defer span.End()

	model, ok := r.model(req.Model)
	if !ok {
		return types.ChatResponse{}, types.NewError(types.KindNotFound, "unknown model: "+req.Model, nil)
	}

	resp, err := r.dispatch(ctx, model, req)
	if err == nil {
		if req.ConversationID != "" {
			r.appendExchange(req, resp)
		}
		if r.cache != nil {
			r.cache.Set(ctx, cacheKey(req), resp.Content)
		}
		return resp, nil
	}

	logger.GetLogger(ctx).Warnf("router: model %s failed: %v", model.Name, err)
	return r.runFallback(ctx, model, req, err)
}

func (r *Router) appendExchange(req ChatRequest, resp types.ChatResponse) {
	for _, m := range req.Messages {
		r.contexts.append(req.ConversationID, m)
	}
	r.contexts.append(req.ConversationID, types.ChatMessage{Role: types.RoleAssistant, Content: resp.Content})
}

// runFallback implements the four fallback strategies, grounded on
// llm_service.py's _try_fallback_models/_get_simple_response/
// _get_cached_response.
func (r *Router) runFallback(ctx context.Context, failed types.ModelDescriptor, req ChatRequest, cause error) (types.ChatResponse, error) {
	strategy := req.Fallback
	if strategy == "" {
		strategy = types.FallbackNextModel
	}

	switch strategy {
	case types.FallbackNone:
		return types.ChatResponse{}, cause

	case types.FallbackNextModel:
		for _, candidate := range r.fallbackModels(failed.Name) {
			candidateReq := req
			candidateReq.Model = candidate.Name
			resp, err := r.dispatch(ctx, candidate, candidateReq)
			if err == nil {
				resp.FallbackUsed = true
				resp.OriginalModel = failed.Name
				resp.FallbackModel = candidate.Name
				resp.FallbackType = string(types.FallbackNextModel)
				if req.ConversationID != "" {
					r.appendExchange(req, resp)
				}
				return resp, nil
			}
			logger.GetLogger(ctx).Warnf("router: fallback model %s also failed: %v", candidate.Name, err)
		}
		return types.ChatResponse{
			Content:       simpleResponseText,
			Model:         failed.Name,
			FallbackUsed:  true,
			OriginalModel: failed.Name,
			FallbackType:  string(types.FallbackSimpleResponse),
		}, nil

	case types.FallbackCachedResponse:
		if r.cache != nil {
			key := cacheKey(req)
			if content, ok := r.cache.Get(ctx, key); ok {
				return types.ChatResponse{
					Content:       content,
					Model:         failed.Name,
					FallbackUsed:  true,
					OriginalModel: failed.Name,
					FallbackType:  string(types.FallbackCachedResponse),
				}, nil
			}
		}
		return types.ChatResponse{
			Content:       simpleResponseText,
			Model:         failed.Name,
			FallbackUsed:  true,
			OriginalModel: failed.Name,
			FallbackType:  string(types.FallbackSimpleResponse),
		}, nil

	case types.FallbackSimpleResponse:
		fallthrough
	default:
		return types.ChatResponse{
			Content:       simpleResponseText,
			Model:         failed.Name,
			FallbackUsed:  true,
			OriginalModel: failed.Name,
			FallbackType:  string(types.FallbackSimpleResponse),
		}, nil
	}
}

// cacheKey content-addresses req by model + canonicalized message text,
// matching the "content-addressed" response cache design (DESIGN.md).
func cacheKey(req ChatRequest) string {
	sum := sha256.New()
	sum.Write([]byte(req.Model))
	for _, m := range req.Messages {
		sum.Write([]byte{0})
		sum.Write([]byte(canonicalize(m.Content)))
	}
	return hex.EncodeToString(sum.Sum(nil))
}

// ChatCompletionStream streams deltas over a channel, closed when the
// backend finishes or errors, grounded on the teacher's
// OllamaChat.ChatStream goroutine/channel shape.
func (r *Router) ChatCompletionStream(ctx context.Context, req ChatRequest) (<-chan types.StreamDelta, error) {
	model, ok := r.model(req.Model)
	if !ok {
		return nil, types.NewError(types.KindNotFound, "unknown model: "+req.Model, nil)
	}
	client, ok := r.client(model.EndpointID)
	if !ok {
		return nil, types.NewError(types.KindNotFound, "unknown endpoint: "+model.EndpointID, nil)
	}

	messages := r.buildMessages(model, req)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = model.MaxGenTokens
	}

	stream, err := client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       model.Name,
		Messages:    toOpenAIMessages(messages),
		Temperature: float32(req.Temperature),
		MaxTokens:   maxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, types.NewError(types.KindBackend, "stream start failed for model "+model.Name, err)
	}

	out := make(chan types.StreamDelta)
	go func() {
		defer close(out)
		defer stream.Close()

		var full string
		for {
			resp, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				out <- types.StreamDelta{Err: err, Done: true}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta != "" {
				full += delta
				out <- types.StreamDelta{Content: delta}
			}
		}
		out <- types.StreamDelta{Done: true}

		if req.ConversationID != "" {
			r.appendExchange(req, types.ChatResponse{Content: full})
		}
	}()

	return out, nil
}

// ToolCall resolves req.Tools (or every enabled registry tool when nil),
// attaches them to the chat request, and executes any tool calls the
// model emits in-process via the tool registry. It does not re-invoke
// the model with tool results (spec §4.7).
func (r *Router) ToolCall(ctx context.Context, req ChatRequest) (types.ChatResponse, error) {
	model, ok := r.model(req.Model)
	if !ok {
		return types.ChatResponse{}, types.NewError(types.KindNotFound, "unknown model: "+req.Model, nil)
	}
	client, ok := r.client(model.EndpointID)
	if !ok {
		return types.ChatResponse{}, types.NewError(types.KindNotFound, "unknown endpoint: "+model.EndpointID, nil)
	}

	available := req.Tools
	if available == nil && r.registry != nil {
		available = r.registry.Enabled()
	}

	messages := r.buildMessages(model, req)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = model.MaxGenTokens
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model.Name,
		Messages:    toOpenAIMessages(messages),
		Temperature: float32(req.Temperature),
		MaxTokens:   maxTokens,
		Tools:       toOpenAITools(available),
	})
	if err != nil {
		return types.ChatResponse{}, types.NewError(types.KindBackend, "tool call failed for model "+model.Name, err)
	}
	if len(resp.Choices) == 0 {
		return types.ChatResponse{}, types.NewError(types.KindBackend, "empty response from model "+model.Name, nil)
	}

	msg := resp.Choices[0].Message
	result := types.ChatResponse{Content: msg.Content, Model: model.Name}
	for _, tc := range msg.ToolCalls {
		call := types.ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: tc.Function.Arguments}
		if r.registry != nil {
			out, execErr := r.registry.Execute(ctx, tc.Function.Name, json.RawMessage(tc.Function.Arguments))
			if execErr != nil {
				call.Error = execErr.Error()
			} else {
				encoded, _ := json.Marshal(out)
				call.Result = string(encoded)
			}
		}
		result.ToolCalls = append(result.ToolCalls, call)
	}
	return result, nil
}

func toOpenAITools(tools []types.Tool) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		var params map[string]interface{}
		_ = json.Unmarshal(t.ParamsSchema, &params)
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// Embed calls the resolved model's endpoint directly for an embedding
// vector. This is deliberately independent of internal/retrieval/
// embedding.Gateway: that gateway is the RAG engine's own document-
// indexing concern, while this is an endpoint-routed router operation
// (spec §4.7) that uses the same model/endpoint resolution as chat/tool
// calls. It has no fallback cascade: an endpoint error is returned as is.
func (r *Router) Embed(ctx context.Context, text string, modelName string) ([]float32, error) {
	model, ok := r.model(modelName)
	if !ok {
		return nil, types.NewError(types.KindNotFound, "unknown model: "+modelName, nil)
	}
	client, ok := r.client(model.EndpointID)
	if !ok {
		return nil, types.NewError(types.KindNotFound, "unknown endpoint: "+model.EndpointID, nil)
	}

	resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{canonicalize(text)},
		Model: openai.EmbeddingModel(model.Name),
	})
	if err != nil {
		return nil, types.NewError(types.KindBackend, "embedding failed for model "+model.Name, err)
	}
	if len(resp.Data) == 0 {
		return nil, types.NewError(types.KindBackend, "empty embedding response for model "+model.Name, nil)
	}
	return resp.Data[0].Embedding, nil
}

// Generate adapts ChatCompletion to internal/rag.Generator, letting the
// RAG engine dispatch generation through the router's canonicalization,
// context truncation and fallback cascade without importing this
// package's full surface.
func (r *Router) Generate(ctx context.Context, messages []types.ChatMessage, temperature float64, maxTokens int) (types.ChatResponse, error) {
	return r.ChatCompletion(ctx, ChatRequest{
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Fallback:    types.FallbackNextModel,
	})
}
