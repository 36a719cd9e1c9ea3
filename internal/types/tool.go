package types

import (
	"context"
	"encoding/json"
)

// ToolHandler executes one tool invocation. May suspend; the router
// awaits it with a configurable timeout (spec §4.8).
type ToolHandler func(ctx context.Context, args json.RawMessage) (*ToolResult, error)

// ToolResult is what a tool handler returns.
type ToolResult struct {
	Success bool
	Output  string
	Data    map[string]interface{}
	Error   string
}

// Tool is a named, schema-described function a model may invoke (spec
// §3/§4.8). Tools live in a per-process registry owned by the
// ModelRouter.
type Tool struct {
	Name         string
	Description  string
	ParamsSchema json.RawMessage
	Handler      ToolHandler
	Enabled      bool
}
