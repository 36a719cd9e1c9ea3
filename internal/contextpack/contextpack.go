// Package contextpack selects and optionally truncates retrieved chunks
// to fit a model's context window (spec §4.4), grounded on the teacher's
// chat_pipline/into_chat_message.go context-template assembly generalized
// to a library-agnostic pack/truncate contract.
package contextpack

import (
	"sort"

	"github.com/corlin/hicrm-core/internal/tokenestimate"
	"github.com/corlin/hicrm-core/internal/types"
)

const (
	generationReserve   = 200
	minTruncateBudget   = 100
	truncationEllipsis  = "..."
)

// Packer packs chunks into a model's context window per spec §4.4.
type Packer struct {
	MaxContextTokens int
}

// New builds a Packer for the given context window size.
func New(maxContextTokens int) *Packer {
	return &Packer{MaxContextTokens: maxContextTokens}
}

// Pack selects chunks, in descending metadata.score order, greedily
// filling the available budget. At the first chunk that would overflow,
// packing stops: if at least minTruncateBudget tokens remain, that chunk
// is first truncated to the longest prefix fitting the remaining budget
// and kept with an ellipsis suffix; otherwise it is dropped. Returns the
// original query and the kept chunks in admission order.
func (p *Packer) Pack(query string, chunks []types.ScoredChunk, systemPromptText string) (string, []types.ScoredChunk) {
	queryTokens := tokenestimate.Estimate(query)
	systemTokens := tokenestimate.Estimate(systemPromptText)
	available := p.MaxContextTokens - queryTokens - systemTokens - generationReserve
	if available <= 0 {
		return query, nil
	}

	sorted := make([]types.ScoredChunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	var kept []types.ScoredChunk
	for _, sc := range sorted {
		cost := tokenestimate.Estimate(sc.Chunk.Content)
		if cost <= available {
			kept = append(kept, sc)
			available -= cost
			continue
		}
		if available >= minTruncateBudget {
			truncated := sc
			truncated.Chunk.Content = truncateToTokenBudget(sc.Chunk.Content, available) + truncationEllipsis
			kept = append(kept, truncated)
		}
		break
	}
	return query, kept
}

// truncateToTokenBudget trims s to the longest rune prefix whose
// estimated token cost fits budget.
func truncateToTokenBudget(s string, budget int) string {
	runes := []rune(s)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if tokenestimate.Estimate(string(runes[:mid])) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return string(runes[:lo])
}
