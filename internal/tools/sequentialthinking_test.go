package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialThinkingRecordsThought(t *testing.T) {
	tool := NewSequentialThinkingTool()

	args, _ := json.Marshal(sequentialThinkingInput{
		Thought: "first step", ThoughtNumber: 1, TotalThoughts: 3, NextThoughtNeeded: true,
	})
	result, err := tool.Handler(context.Background(), args)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, true, result.Data["incomplete"])
	assert.Equal(t, 1, result.Data["thoughtHistoryLength"])
}

func TestSequentialThinkingGrowsTotalThoughtsWhenExceeded(t *testing.T) {
	tool := NewSequentialThinkingTool()

	args, _ := json.Marshal(sequentialThinkingInput{
		Thought: "beyond the estimate", ThoughtNumber: 5, TotalThoughts: 3, NextThoughtNeeded: false,
	})
	result, err := tool.Handler(context.Background(), args)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Data["totalThoughts"])
	assert.Equal(t, false, result.Data["incomplete"])
}

func TestSequentialThinkingRejectsEmptyThought(t *testing.T) {
	tool := NewSequentialThinkingTool()

	args, _ := json.Marshal(sequentialThinkingInput{ThoughtNumber: 1, TotalThoughts: 1})
	_, err := tool.Handler(context.Background(), args)
	require.Error(t, err)
}

func TestSequentialThinkingTracksBranches(t *testing.T) {
	tool := NewSequentialThinkingTool()
	from := 1

	args, _ := json.Marshal(sequentialThinkingInput{
		Thought: "branch attempt", ThoughtNumber: 2, TotalThoughts: 3,
		NextThoughtNeeded: true, BranchFromThought: &from, BranchID: "alt-path",
	})
	result, err := tool.Handler(context.Background(), args)
	require.NoError(t, err)
	assert.Contains(t, result.Data["branches"], "alt-path")
}
