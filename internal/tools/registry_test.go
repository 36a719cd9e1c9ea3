package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corlin/hicrm-core/internal/types"
)

func echoTool() types.Tool {
	return types.Tool{
		Name:        "echo",
		Description: "echoes args back",
		Enabled:     true,
		Handler: func(ctx context.Context, args json.RawMessage) (*types.ToolResult, error) {
			return &types.ToolResult{Success: true, Output: string(args)}, nil
		},
	}
}

func TestRegisterAndExecute(t *testing.T) {
	r := NewRegistry(0)
	r.Register(echoTool())

	result, err := r.Execute(context.Background(), "echo", json.RawMessage(`{"x":1}`))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, `{"x":1}`, result.Output)
}

func TestExecuteUnregisteredToolReturnsNotFound(t *testing.T) {
	r := NewRegistry(0)
	_, err := r.Execute(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindNotFound))
}

func TestExecuteTimesOut(t *testing.T) {
	r := NewRegistry(10 * time.Millisecond)
	r.Register(types.Tool{
		Name:    "slow",
		Enabled: true,
		Handler: func(ctx context.Context, args json.RawMessage) (*types.ToolResult, error) {
			select {
			case <-time.After(time.Second):
				return &types.ToolResult{Success: true}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})

	_, err := r.Execute(context.Background(), "slow", nil)
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindTimeout))
}

func TestUnregisterRemovesTool(t *testing.T) {
	r := NewRegistry(0)
	r.Register(echoTool())
	r.Unregister("echo")
	_, ok := r.Get("echo")
	assert.False(t, ok)
}

func TestEnabledFiltersDisabledTools(t *testing.T) {
	r := NewRegistry(0)
	r.Register(echoTool())
	r.Register(types.Tool{Name: "disabled", Enabled: false})

	enabled := r.Enabled()
	require.Len(t, enabled, 1)
	assert.Equal(t, "echo", enabled[0].Name)
}
