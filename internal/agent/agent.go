// Package agent is the Agent Runtime (spec §4.10): the
// analyze→execute→respond contract shared by every concrete agent, plus
// the base runtime's collaboration dispatch. Grounded on
// original_source's BaseAgent-derived professional agents
// (analyze_task/execute_task/generate_response) and the teacher's
// per-tenant agent registry shape implied by
// application/repository/custom_agent.go.
package agent

import (
	"context"

	"github.com/corlin/hicrm-core/internal/common"
	"github.com/corlin/hicrm-core/internal/types"
)

// Agent is the three-method contract every concrete agent implements
// (spec §4.10). Analyze is purely deterministic over the message;
// Execute may call the model router, the RAG engine, peer agents, or
// tools; Respond formats the final AgentResponse.
type Agent interface {
	ID() string
	Capabilities() []types.AgentCapability

	Analyze(ctx context.Context, message types.AgentMessage) (types.Analysis, error)
	Execute(ctx context.Context, message types.AgentMessage, analysis types.Analysis) (types.TaskResult, error)
	Respond(ctx context.Context, result types.TaskResult, collaboration *CollaborationResult) (types.AgentResponse, error)
}

// CollaborationResult is what Dispatch returns to Respond: per-peer
// responses plus any that failed, so Respond can attach a degraded note
// without failing the primary response (spec §4.10 "Partial failures in
// collaboration never fail the primary response").
type CollaborationResult struct {
	Responses []PeerResponse
	Failed    []PeerFailure
}

// PeerResponse is one successful peer dispatch outcome.
type PeerResponse struct {
	AgentID  string
	Response types.AgentResponse
}

// PeerFailure is one failed peer dispatch outcome.
type PeerFailure struct {
	AgentID string
	Err     error
}

// Communicator dispatches a message to a named peer agent. The runtime
// and a concrete agent both depend on this narrow interface rather than
// on a full agent registry, avoiding an import cycle between agent and
// its concrete implementations.
type Communicator interface {
	Dispatch(ctx context.Context, agentID string, message types.AgentMessage) (types.AgentResponse, error)
}

// Process runs the full analyze→execute(→collaborate)→respond pipeline
// for one incoming message, the shape every HTTP/CLI boundary (out of
// core scope) is expected to call. message.Content is validated first
// (common.ValidateInput) so control characters and obvious XSS payloads
// never reach Analyze/Execute; a rejected message short-circuits straight
// to Respond with a failed TaskResult, the same degrade-not-propagate
// shape used for Execute errors below. An Execute error is caught here
// and converted into a TaskResult{Success:false, FallbackResponse};
// Respond still runs on it and produces a low-confidence response rather
// than the error propagating past this boundary (spec §7).
func Process(ctx context.Context, a Agent, comm Communicator, message types.AgentMessage) (types.AgentResponse, error) {
	clean, ok := common.ValidateInput(message.Content)
	if !ok {
		return a.Respond(ctx, types.TaskResult{
			Success:          false,
			FallbackResponse: "This message could not be processed because it contains disallowed content.",
		}, nil)
	}
	message.Content = clean

	analysis, err := a.Analyze(ctx, message)
	if err != nil {
		return types.AgentResponse{}, types.NewError(types.KindInternal, "analyze failed", err)
	}

	result, err := a.Execute(ctx, message, analysis)
	if err != nil {
		result = types.TaskResult{
			Success:          false,
			Err:              err,
			FallbackResponse: "I ran into a problem handling this request. Please try again shortly.",
		}
	}

	var collab *CollaborationResult
	if analysis.NeedsCollaboration && len(analysis.RequiredAgents) > 0 && comm != nil {
		c := Dispatch(ctx, comm, message, analysis)
		collab = &c
	}

	return a.Respond(ctx, result, collab)
}
