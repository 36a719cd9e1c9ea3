package router

import (
	"sync"
	"time"

	"github.com/corlin/hicrm-core/internal/tokenestimate"
	"github.com/corlin/hicrm-core/internal/types"
)

// contextStore is the router-owned ConversationContext map (spec §3
// ownership summary). Map-level mutation (create) takes the short
// top-level lock; per-conversation appends serialize on that
// conversation's own mutex so concurrent callers for different
// conversations never contend (spec §5 Shared resources).
type contextStore struct {
	mu    sync.Mutex
	entry map[string]*contextEntry
}

type contextEntry struct {
	mu  sync.Mutex
	ctx *types.ConversationContext
}

func newContextStore() *contextStore {
	return &contextStore{entry: make(map[string]*contextEntry)}
}

func (s *contextStore) create(id, userID string, metadata map[string]interface{}, maxContextTokens int) *types.ConversationContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	ctx := &types.ConversationContext{
		ConversationID:   id,
		UserID:           userID,
		Metadata:         metadata,
		CreatedAt:        now,
		UpdatedAt:        now,
		MaxContextTokens: maxContextTokens,
	}
	s.entry[id] = &contextEntry{ctx: ctx}
	return ctx
}

func (s *contextStore) get(id string) (*types.ConversationContext, bool) {
	s.mu.Lock()
	e, ok := s.entry[id]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := *e.ctx
	cp.Messages = append([]types.ChatMessage(nil), e.ctx.Messages...)
	return &cp, true
}

// append adds msg to conversation id's message list, re-estimates
// tokenCount, and truncates to maxContextTokens if needed (spec §3
// ConversationContext invariant). A no-op if id is unknown.
func (s *contextStore) append(id string, msg types.ChatMessage) {
	s.mu.Lock()
	e, ok := s.entry[id]
	s.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.ctx.Messages = append(e.ctx.Messages, msg)
	e.ctx.UpdatedAt = time.Now()
	e.recount()
}

func (e *contextEntry) recount() {
	total := 0
	for _, m := range e.ctx.Messages {
		total += tokenestimate.Estimate(m.Content)
	}
	e.ctx.TokenCount = total
	if e.ctx.MaxContextTokens > 0 && total > e.ctx.MaxContextTokens {
		e.ctx.Messages = tokenestimate.Truncate(e.ctx.Messages, e.ctx.MaxContextTokens)
		retotal := 0
		for _, m := range e.ctx.Messages {
			retotal += tokenestimate.Estimate(m.Content)
		}
		e.ctx.TokenCount = retotal
	}
}

// prepend returns id's stored messages (if any) followed by fresh, for
// building an outbound request (spec §4.7 Pre-processing).
func (s *contextStore) prepend(id string, fresh []types.ChatMessage) []types.ChatMessage {
	stored, ok := s.get(id)
	if !ok {
		return fresh
	}
	return append(append([]types.ChatMessage(nil), stored.Messages...), fresh...)
}
