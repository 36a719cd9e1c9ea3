package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corlin/hicrm-core/internal/router/provider"
	"github.com/corlin/hicrm-core/internal/tools"
	"github.com/corlin/hicrm-core/internal/types"
)

func chatCompletionJSON(content string) string {
	payload := map[string]interface{}{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test-model",
		"choices": []map[string]interface{}{
			{"index": 0, "message": map[string]interface{}{"role": "assistant", "content": content}, "finish_reason": "stop"},
		},
		"usage": map[string]interface{}{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, types.Endpoint) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, types.Endpoint{ID: "ep", BaseURL: srv.URL + "/v1", APIKey: "test-key"}
}

func TestNewDetectsProviderKindPerEndpoint(t *testing.T) {
	openaiEP := types.Endpoint{ID: "openai-ep", BaseURL: "https://api.openai.com/v1", APIKey: "sk-test", ModelPrefix: "gpt-4"}
	localEP := types.Endpoint{ID: "local-ep", BaseURL: "http://localhost:11434", ModelPrefix: "llama3"}
	r := New([]types.Endpoint{openaiEP, localEP}, nil, "", tools.NewRegistry(0), nil)

	kind, ok := r.EndpointKind("openai-ep")
	require.True(t, ok)
	assert.Equal(t, provider.OpenAI, kind)

	kind, ok = r.EndpointKind("local-ep")
	require.True(t, ok)
	assert.Equal(t, provider.Ollama, kind)

	_, ok = r.EndpointKind("missing")
	assert.False(t, ok)
}

func TestChatCompletionFallsBackToDefaultEndpointWhenModelEndpointIDEmpty(t *testing.T) {
	_, ep := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionJSON("from default endpoint")))
	})
	model := types.ModelDescriptor{Name: "m1", MaxGenTokens: 256, ContextWindowTokens: 4096}
	r := New([]types.Endpoint{ep}, []types.ModelDescriptor{model}, "m1", nil, nil)

	resp, err := r.ChatCompletion(context.Background(), ChatRequest{
		Model:    "m1",
		Messages: []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "from default endpoint", resp.Content)
}

func TestChatCompletionFallsBackToDefaultEndpointWhenModelEndpointIDStale(t *testing.T) {
	_, ep := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionJSON("from default endpoint")))
	})
	model := types.ModelDescriptor{Name: "m1", MaxGenTokens: 256, ContextWindowTokens: 4096, EndpointID: "decommissioned-ep"}
	r := New([]types.Endpoint{ep}, []types.ModelDescriptor{model}, "m1", nil, nil)

	resp, err := r.ChatCompletion(context.Background(), ChatRequest{
		Model:    "m1",
		Messages: []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "from default endpoint", resp.Content)
}

func modelFor(ep types.Endpoint, name string, priority int) types.ModelDescriptor {
	return types.ModelDescriptor{
		Name:                name,
		MaxGenTokens:        256,
		ContextWindowTokens: 4096,
		Priority:            priority,
		EndpointID:          ep.ID,
	}
}

func TestChatCompletionDispatchesToEndpoint(t *testing.T) {
	_, ep := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionJSON("hello there")))
	})
	r := New([]types.Endpoint{ep}, []types.ModelDescriptor{modelFor(ep, "m1", 1)}, "m1", nil, nil)

	resp, err := r.ChatCompletion(context.Background(), ChatRequest{
		Model:    "m1",
		Messages: []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content)
	assert.False(t, resp.FallbackUsed)
}

func TestChatCompletionFallsBackToNextModel(t *testing.T) {
	_, failing := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, working := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionJSON("fallback answer")))
	})
	failing.ID, working.ID = "failing", "working"

	r := New(
		[]types.Endpoint{failing, working},
		[]types.ModelDescriptor{modelFor(failing, "primary", 1), modelFor(working, "secondary", 2)},
		"primary", nil, nil,
	)

	resp, err := r.ChatCompletion(context.Background(), ChatRequest{
		Model:    "primary",
		Messages: []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}},
		Fallback: types.FallbackNextModel,
	})
	require.NoError(t, err)
	assert.Equal(t, "fallback answer", resp.Content)
	assert.True(t, resp.FallbackUsed)
	assert.Equal(t, "primary", resp.OriginalModel)
	assert.Equal(t, "secondary", resp.FallbackModel)
}

func TestChatCompletionAllModelsFailReturnsSimpleResponse(t *testing.T) {
	_, epA := newTestServer(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) })
	_, epB := newTestServer(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) })
	_, epC := newTestServer(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) })
	epA.ID, epB.ID, epC.ID = "a", "b", "c"

	r := New(
		[]types.Endpoint{epA, epB, epC},
		[]types.ModelDescriptor{modelFor(epA, "A", 1), modelFor(epB, "B", 2), modelFor(epC, "C", 3)},
		"A", nil, nil,
	)

	resp, err := r.ChatCompletion(context.Background(), ChatRequest{
		Model:    "A",
		Messages: []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}},
		Fallback: types.FallbackNextModel,
	})
	require.NoError(t, err)
	assert.True(t, resp.FallbackUsed)
	assert.Equal(t, string(types.FallbackSimpleResponse), resp.FallbackType)
	assert.Equal(t, simpleResponseText, resp.Content)
}

func TestChatCompletionFallbackNoneReturnsError(t *testing.T) {
	_, ep := newTestServer(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) })
	r := New([]types.Endpoint{ep}, []types.ModelDescriptor{modelFor(ep, "m1", 1)}, "m1", nil, nil)

	_, err := r.ChatCompletion(context.Background(), ChatRequest{
		Model:    "m1",
		Messages: []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}},
		Fallback: types.FallbackNone,
	})
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindBackend))
}

type memCache struct {
	data map[string]string
}

func (c *memCache) Get(ctx context.Context, key string) (string, bool) {
	v, ok := c.data[key]
	return v, ok
}

func (c *memCache) Set(ctx context.Context, key string, content string) {
	c.data[key] = content
}

func TestChatCompletionCachedFallbackUsesPriorResponse(t *testing.T) {
	calls := 0
	_, ep := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(chatCompletionJSON("cached me")))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	})
	cache := &memCache{data: make(map[string]string)}
	r := New([]types.Endpoint{ep}, []types.ModelDescriptor{modelFor(ep, "m1", 1)}, "m1", nil, cache)

	req := ChatRequest{Model: "m1", Messages: []types.ChatMessage{{Role: types.RoleUser, Content: "hi"}}}
	first, err := r.ChatCompletion(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "cached me", first.Content)

	req.Fallback = types.FallbackCachedResponse
	second, err := r.ChatCompletion(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.FallbackUsed)
	assert.Equal(t, "cached me", second.Content)
	assert.Equal(t, string(types.FallbackCachedResponse), second.FallbackType)
}

func TestConversationContextAccumulatesAndTruncates(t *testing.T) {
	_, ep := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatCompletionJSON("ack")))
	})
	r := New([]types.Endpoint{ep}, []types.ModelDescriptor{modelFor(ep, "m1", 1)}, "m1", nil, nil)

	r.CreateContext("conv1", "user1", nil, 4096)
	_, err := r.ChatCompletion(context.Background(), ChatRequest{
		ConversationID: "conv1",
		Model:          "m1",
		Messages:       []types.ChatMessage{{Role: types.RoleUser, Content: "turn one"}},
	})
	require.NoError(t, err)

	ctx, ok := r.GetContext("conv1")
	require.True(t, ok)
	require.Len(t, ctx.Messages, 2) // user turn + assistant reply
	assert.LessOrEqual(t, ctx.TokenCount, ctx.MaxContextTokens)
}

func TestToolCallExecutesRegisteredTool(t *testing.T) {
	toolCallJSON := func() string {
		payload := map[string]interface{}{
			"id": "chatcmpl-test", "object": "chat.completion", "created": 1, "model": "test-model",
			"choices": []map[string]interface{}{
				{"index": 0, "finish_reason": "tool_calls", "message": map[string]interface{}{
					"role": "assistant",
					"tool_calls": []map[string]interface{}{
						{"id": "call1", "type": "function", "function": map[string]interface{}{"name": "echo", "arguments": `{"x":1}`}},
					},
				}},
			},
			"usage": map[string]interface{}{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		}
		b, _ := json.Marshal(payload)
		return string(b)
	}

	_, ep := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(toolCallJSON()))
	})

	registry := tools.NewRegistry(0)
	registry.Register(types.Tool{
		Name: "echo", Description: "echoes", Enabled: true,
		ParamsSchema: json.RawMessage(`{"type":"object"}`),
		Handler: func(ctx context.Context, args json.RawMessage) (*types.ToolResult, error) {
			return &types.ToolResult{Success: true, Output: string(args)}, nil
		},
	})

	r := New([]types.Endpoint{ep}, []types.ModelDescriptor{modelFor(ep, "m1", 1)}, "m1", registry, nil)

	resp, err := r.ToolCall(context.Background(), ChatRequest{
		Model:    "m1",
		Messages: []types.ChatMessage{{Role: types.RoleUser, Content: "use the echo tool"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "echo", resp.ToolCalls[0].Name)
	assert.Empty(t, resp.ToolCalls[0].Error)
	assert.Contains(t, resp.ToolCalls[0].Result, "x")
}

func TestEmbedReturnsVector(t *testing.T) {
	_, ep := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]interface{}{
			"object": "list",
			"data":   []map[string]interface{}{{"object": "embedding", "embedding": []float32{0.1, 0.2, 0.3}, "index": 0}},
			"model":  "test-embed",
			"usage":  map[string]interface{}{"prompt_tokens": 1, "total_tokens": 1},
		}
		b, _ := json.Marshal(payload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
	})
	r := New([]types.Endpoint{ep}, []types.ModelDescriptor{modelFor(ep, "embed-1", 1)}, "embed-1", nil, nil)

	vec, err := r.Embed(context.Background(), "hello", "embed-1")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestCanonicalizeCollapsesWhitespaceAndPunctuation(t *testing.T) {
	got := canonicalize("hello\n\n  world，  goodbye。")
	assert.Equal(t, "hello world, goodbye.", got)
}
