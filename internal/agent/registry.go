package agent

import (
	"context"
	"sync"

	"github.com/corlin/hicrm-core/internal/types"
)

// Registry is a name->Agent map that also implements Communicator,
// letting every registered agent dispatch to its peers through the same
// registry that owns them (spec §3 Agent.communicator).
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRegistry builds an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Register adds or replaces an agent by its ID.
func (r *Registry) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.ID()] = a
}

// Get looks up an agent by id.
func (r *Registry) Get(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// Dispatch implements Communicator: runs the full Process pipeline for
// the named peer agent, so collaboration calls get the same
// analyze/execute/respond treatment as a top-level request.
func (r *Registry) Dispatch(ctx context.Context, agentID string, message types.AgentMessage) (types.AgentResponse, error) {
	a, ok := r.Get(agentID)
	if !ok {
		return types.AgentResponse{}, types.NewError(types.KindNotFound, "unknown agent: "+agentID, nil)
	}
	return Process(ctx, a, r, message)
}
