// Package tools holds the per-process tool registry (spec §4.8),
// grounded on the teacher's internal/agent/tools BaseTool{name,
// description, schema} shape, using github.com/google/jsonschema-go for
// schema generation and github.com/mark3labs/mcp-go's wire types when
// exposing a tool over MCP.
package tools

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/corlin/hicrm-core/internal/tracing"
	"github.com/corlin/hicrm-core/internal/types"
)

// DefaultTimeout is the router's default tool-execution timeout (spec
// §4.8).
const DefaultTimeout = 30 * time.Second

// Registry is the reader-many/writer-few name→Tool map owned by the
// ModelRouter (spec §3 ownership summary).
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]types.Tool
	timeout time.Duration
}

// NewRegistry builds an empty registry with the given handler timeout
// (DefaultTimeout if zero).
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{tools: make(map[string]types.Tool), timeout: timeout}
}

// Register adds or replaces a tool by name.
func (r *Registry) Register(tool types.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
}

// Unregister removes a tool by name; a no-op if absent.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (types.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Enabled returns every enabled tool, for the router to format as
// {name, description, paramsSchema} when the caller supplies no
// explicit tool list (spec §4.7 "Tool calls").
func (r *Registry) Enabled() []types.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out
}

// Execute runs name's handler with args, bounded by the registry's
// configured timeout. Returns a CoreError{Kind: KindTimeout} on expiry
// and CoreError{Kind: KindNotFound} if name is unregistered.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (*types.ToolResult, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, types.NewError(types.KindNotFound, "tool not registered: "+name, nil)
	}

	ctx, span := tracing.Start(ctx, "tool.execute."+name)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		result *types.ToolResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := tool.Handler(ctx, args)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return nil, types.NewError(types.KindTimeout, "tool execution timed out: "+name, ctx.Err())
	}
}
