// Package fusion merges ranked chunk lists from multiple retrievers
// using RRF / weighted-sum / max strategies (spec §4.3), grounded on the
// teacher's CHUNK_MERGE pipeline stage and original_source's
// multi-retriever fusion in rag_service.py.
package fusion

import (
	"sort"

	"github.com/corlin/hicrm-core/internal/types"
)

const rrfK = 60

var weightedWeights = []float64{1.0, 0.8, 0.6, 0.4}

// Fuse merges lists per spec §4.3. All three methods de-duplicate by
// chunk id. Empty input yields empty output.
func Fuse(lists [][]types.ScoredChunk, method types.FusionMethod) []types.ScoredChunk {
	switch method {
	case types.FusionWeighted:
		return fuseWeighted(lists)
	case types.FusionMax:
		return fuseMax(lists)
	default:
		return fuseRRF(lists)
	}
}

func fuseRRF(lists [][]types.ScoredChunk) []types.ScoredChunk {
	scores := make(map[string]float64)
	order := make(map[string]int)
	chunks := make(map[string]types.Chunk)
	seq := 0

	for _, list := range lists {
		for r, sc := range list {
			id := sc.Chunk.ID
			if _, ok := order[id]; !ok {
				order[id] = seq
				seq++
				chunks[id] = sc.Chunk
			}
			scores[id] += 1.0 / float64(rrfK+r+1)
		}
	}
	return buildSorted(scores, order, chunks)
}

func fuseWeighted(lists [][]types.ScoredChunk) []types.ScoredChunk {
	scores := make(map[string]float64)
	order := make(map[string]int)
	chunks := make(map[string]types.Chunk)
	seq := 0

	for listIdx, list := range lists {
		weight := weightFor(listIdx)
		for _, sc := range list {
			id := sc.Chunk.ID
			if _, ok := order[id]; !ok {
				order[id] = seq
				seq++
				chunks[id] = sc.Chunk
			}
			scores[id] += weight * sc.Score
		}
	}
	return buildSorted(scores, order, chunks)
}

func fuseMax(lists [][]types.ScoredChunk) []types.ScoredChunk {
	scores := make(map[string]float64)
	order := make(map[string]int)
	chunks := make(map[string]types.Chunk)
	seq := 0

	for _, list := range lists {
		for _, sc := range list {
			id := sc.Chunk.ID
			if _, ok := order[id]; !ok {
				order[id] = seq
				seq++
				chunks[id] = sc.Chunk
				scores[id] = sc.Score
			} else if sc.Score > scores[id] {
				scores[id] = sc.Score
				chunks[id] = sc.Chunk // winning occurrence's document object
			}
		}
	}
	return buildSorted(scores, order, chunks)
}

// weightFor returns the weighted-fusion weight for list index i, per
// spec §4.3's `[1.0, 0.8, 0.6, 0.4, 0.4, ...]` sequence: indices beyond
// the named prefix repeat the final weight.
func weightFor(i int) float64 {
	if i < len(weightedWeights) {
		return weightedWeights[i]
	}
	return weightedWeights[len(weightedWeights)-1]
}

func buildSorted(scores map[string]float64, order map[string]int, chunks map[string]types.Chunk) []types.ScoredChunk {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return order[ids[i]] < order[ids[j]]
	})

	result := make([]types.ScoredChunk, 0, len(ids))
	for _, id := range ids {
		result = append(result, types.ScoredChunk{Chunk: chunks[id], Score: scores[id]})
	}
	return result
}
