package agent

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/corlin/hicrm-core/internal/types"
)

// maxCollaborationWorkers bounds the worker pool backing parallel
// collaboration dispatch (spec §4.10 "fan out, fan in"), grounded on
// Tangerg-lynx's pkg/sync.PoolOfAnts wrapper style around
// panjf2000/ants.
const maxCollaborationWorkers = 8

// Dispatch sends message (or, in practice, a per-agent derived sub-task
// built by the caller before invoking Process) to every
// analysis.RequiredAgents peer via comm, per analysis.CollaborationType.
// Partial failures never abort the batch (spec §4.10).
func Dispatch(ctx context.Context, comm Communicator, message types.AgentMessage, analysis types.Analysis) CollaborationResult {
	switch analysis.CollaborationType {
	case types.CollaborationSequential:
		return dispatchSequential(ctx, comm, message, analysis.RequiredAgents)
	default:
		return dispatchParallel(ctx, comm, message, analysis.RequiredAgents)
	}
}

// dispatchSequential feeds each peer's response into the next peer's
// message content as additional context, per spec §4.10's "each
// sub-response feeds the next context".
func dispatchSequential(ctx context.Context, comm Communicator, message types.AgentMessage, peers []string) CollaborationResult {
	var result CollaborationResult
	current := message

	for _, peerID := range peers {
		resp, err := comm.Dispatch(ctx, peerID, current)
		if err != nil {
			result.Failed = append(result.Failed, PeerFailure{AgentID: peerID, Err: err})
			continue
		}
		result.Responses = append(result.Responses, PeerResponse{AgentID: peerID, Response: resp})
		current = types.AgentMessage{
			Type:     current.Type,
			SenderID: current.SenderID,
			Content:  current.Content + "\n\n" + resp.Content,
			Metadata: current.Metadata,
		}
	}
	return result
}

// dispatchParallel fans the same message out to every peer concurrently,
// bounded by a small ants pool, and fans the results back in.
func dispatchParallel(ctx context.Context, comm Communicator, message types.AgentMessage, peers []string) CollaborationResult {
	if len(peers) == 0 {
		return CollaborationResult{}
	}

	pool, err := ants.NewPool(maxCollaborationWorkers)
	if err != nil {
		// Falls back to unbounded goroutines joined by a WaitGroup; the
		// pool only exists to cap concurrency, never to gate
		// correctness.
		return dispatchParallelUnbounded(ctx, comm, message, peers)
	}
	defer pool.Release()

	var (
		mu      sync.Mutex
		result  CollaborationResult
		g, gctx = errgroup.WithContext(ctx)
	)
	for _, peerID := range peers {
		peerID := peerID
		g.Go(func() error {
			done := make(chan struct{})
			if err := pool.Submit(func() {
				defer close(done)
				resp, err := comm.Dispatch(gctx, peerID, message)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Failed = append(result.Failed, PeerFailure{AgentID: peerID, Err: err})
					return
				}
				result.Responses = append(result.Responses, PeerResponse{AgentID: peerID, Response: resp})
			}); err != nil {
				mu.Lock()
				result.Failed = append(result.Failed, PeerFailure{AgentID: peerID, Err: err})
				mu.Unlock()
				return err
			}
			<-done
			return nil
		})
	}
	_ = g.Wait() // per-peer failures are recorded in result.Failed, never escalated

	return result
}

func dispatchParallelUnbounded(ctx context.Context, comm Communicator, message types.AgentMessage, peers []string) CollaborationResult {
	var (
		mu     sync.Mutex
		result CollaborationResult
		wg     sync.WaitGroup
	)
	wg.Add(len(peers))
	for _, peerID := range peers {
		peerID := peerID
		go func() {
			defer wg.Done()
			resp, err := comm.Dispatch(ctx, peerID, message)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, PeerFailure{AgentID: peerID, Err: err})
				return
			}
			result.Responses = append(result.Responses, PeerResponse{AgentID: peerID, Response: resp})
		}()
	}
	wg.Wait()
	return result
}
