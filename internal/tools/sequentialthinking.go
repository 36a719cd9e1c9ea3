package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/corlin/hicrm-core/internal/types"
)

// sequentialThinkingInput is the sequential_thinking tool's parameter
// schema, adapted from the teacher's agent/tools/sequentialthinking.go
// SequentialThinkingInput.
type sequentialThinkingInput struct {
	Thought           string `json:"thought"`
	ThoughtNumber     int    `json:"thoughtNumber"`
	TotalThoughts     int    `json:"totalThoughts"`
	IsRevision        bool   `json:"isRevision,omitempty"`
	RevisesThought    *int   `json:"revisesThought,omitempty"`
	BranchFromThought *int   `json:"branchFromThought,omitempty"`
	BranchID          string `json:"branchId,omitempty"`
	NeedsMoreThoughts bool   `json:"needsMoreThoughts,omitempty"`
	NextThoughtNeeded bool   `json:"nextThoughtNeeded"`
}

const sequentialThinkingDescription = `A detailed tool for dynamic and reflective problem-solving through thoughts.

Helps analyze a problem through a flexible thinking process that can adapt and evolve: each
thought can build on, question, or revise previous insights as understanding deepens.

## When to Use This Tool
- Breaking down complex problems into steps
- Planning with room for revision
- Analysis that might need course correction
- Tasks that need to maintain context over multiple steps

## Parameters
- thought: the current thinking step, in plain language
- nextThoughtNeeded: whether another thought step is needed
- thoughtNumber: current step number
- totalThoughts: current estimate of total steps needed (can be revised)
- isRevision / revisesThought: mark a thought that revises a previous one
- branchFromThought / branchId: mark a thought that branches from a previous one
- needsMoreThoughts: set if more steps are needed after reaching the expected end`

var sequentialThinkingSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "thought": {"type": "string", "description": "The current thinking step"},
    "nextThoughtNeeded": {"type": "boolean", "description": "Whether another thought step is needed"},
    "thoughtNumber": {"type": "integer", "minimum": 1, "description": "Current thought number"},
    "totalThoughts": {"type": "integer", "minimum": 1, "description": "Estimated total thoughts needed"},
    "isRevision": {"type": "boolean", "description": "Whether this revises previous thinking"},
    "revisesThought": {"type": "integer", "minimum": 1, "description": "Which thought is being reconsidered"},
    "branchFromThought": {"type": "integer", "minimum": 1, "description": "Branching point thought number"},
    "branchId": {"type": "string", "description": "Branch identifier"},
    "needsMoreThoughts": {"type": "boolean", "description": "If more thoughts are needed"}
  },
  "required": ["thought", "nextThoughtNeeded", "thoughtNumber", "totalThoughts"]
}`)

// sequentialThinkingState holds the running history/branches across
// invocations within one agent's tool registry, adapted from the
// teacher's SequentialThinkingTool struct fields.
type sequentialThinkingState struct {
	mu       sync.Mutex
	history  []sequentialThinkingInput
	branches map[string][]sequentialThinkingInput
}

// NewSequentialThinkingTool builds the sequential_thinking tool. Each
// call creates its own state, so separate tool values never share a
// thought history; every caller of one registered tool value shares its
// history, with appends serialized by a mutex.
func NewSequentialThinkingTool() types.Tool {
	state := &sequentialThinkingState{branches: make(map[string][]sequentialThinkingInput)}
	return types.Tool{
		Name:         "sequential_thinking",
		Description:  sequentialThinkingDescription,
		ParamsSchema: sequentialThinkingSchema,
		Enabled:      true,
		Handler: func(ctx context.Context, args json.RawMessage) (*types.ToolResult, error) {
			var input sequentialThinkingInput
			if err := json.Unmarshal(args, &input); err != nil {
				return &types.ToolResult{Success: false, Error: fmt.Sprintf("failed to parse args: %v", err)}, err
			}
			if input.Thought == "" {
				return &types.ToolResult{Success: false, Error: "thought must be non-empty"}, fmt.Errorf("invalid thought")
			}
			if input.ThoughtNumber < 1 {
				return &types.ToolResult{Success: false, Error: "thoughtNumber must be >= 1"}, fmt.Errorf("invalid thoughtNumber")
			}
			if input.TotalThoughts < 1 {
				return &types.ToolResult{Success: false, Error: "totalThoughts must be >= 1"}, fmt.Errorf("invalid totalThoughts")
			}

			state.mu.Lock()
			defer state.mu.Unlock()

			if input.ThoughtNumber > input.TotalThoughts {
				input.TotalThoughts = input.ThoughtNumber
			}
			state.history = append(state.history, input)
			if input.BranchFromThought != nil && input.BranchID != "" {
				state.branches[input.BranchID] = append(state.branches[input.BranchID], input)
			}

			branchKeys := make([]string, 0, len(state.branches))
			for k := range state.branches {
				branchKeys = append(branchKeys, k)
			}
			incomplete := input.NextThoughtNeeded || input.NeedsMoreThoughts || input.ThoughtNumber < input.TotalThoughts

			outputMsg := "thought recorded"
			if incomplete {
				outputMsg = "thought recorded - unfinished steps remain"
			}

			return &types.ToolResult{
				Success: true,
				Output:  outputMsg,
				Data: map[string]interface{}{
					"thoughtNumber":        input.ThoughtNumber,
					"totalThoughts":        input.TotalThoughts,
					"nextThoughtNeeded":    input.NextThoughtNeeded,
					"branches":             branchKeys,
					"thoughtHistoryLength": len(state.history),
					"incomplete":           incomplete,
				},
			}, nil
		},
	}
}
