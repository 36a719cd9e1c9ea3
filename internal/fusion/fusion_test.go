package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corlin/hicrm-core/internal/types"
)

func chunk(id string) types.Chunk { return types.Chunk{ID: id} }

// TestFuseRRFDeterministic reproduces spec §8 scenario 1's inputs and
// expected order, with scores computed from the 1/(60+r+1) rule.
func TestFuseRRFDeterministic(t *testing.T) {
	listA := []types.ScoredChunk{
		{Chunk: chunk("d1"), Score: 0.9},
		{Chunk: chunk("d2"), Score: 0.8},
		{Chunk: chunk("d3"), Score: 0.7},
	}
	listB := []types.ScoredChunk{
		{Chunk: chunk("d2"), Score: 0.85},
		{Chunk: chunk("d1"), Score: 0.75},
		{Chunk: chunk("d4"), Score: 0.6},
	}

	out := Fuse([][]types.ScoredChunk{listA, listB}, types.FusionRRF)
	require.Len(t, out, 4)

	ids := make([]string, len(out))
	for i, sc := range out {
		ids[i] = sc.Chunk.ID
	}
	assert.Equal(t, []string{"d1", "d2", "d3", "d4"}, ids)

	// d1 and d2 each appear once in both lists at symmetric ranks (0 and
	// 1), so their RRF sums are mathematically equal; d1 sorts first by
	// first-seen order (it leads list A). d3 and d4 both sit at rank 2 of
	// one list (1/63 each); d3 sorts first because list A is seen first.
	assert.InDelta(t, 0.03252, out[0].Score, 1e-4)
	assert.InDelta(t, 0.03252, out[1].Score, 1e-4)
	assert.InDelta(t, 0.01587, out[2].Score, 1e-4)
	assert.InDelta(t, 0.01587, out[3].Score, 1e-4)
}

func TestFuseEmptyInput(t *testing.T) {
	assert.Empty(t, Fuse(nil, types.FusionRRF))
	assert.Empty(t, Fuse([][]types.ScoredChunk{}, types.FusionWeighted))
}

func TestFuseWeightedTieBreaksByFirstSeen(t *testing.T) {
	listA := []types.ScoredChunk{{Chunk: chunk("a"), Score: 0.4}}
	listB := []types.ScoredChunk{{Chunk: chunk("b"), Score: 0.5}}

	out := Fuse([][]types.ScoredChunk{listA, listB}, types.FusionWeighted)
	require.Len(t, out, 2)
	// Both fuse to 0.4 (1.0*0.4 and 0.8*0.5); "a" was seen first, so it
	// wins the tie.
	assert.Equal(t, "a", out[0].Chunk.ID)
}

func TestFuseMaxTakesWinningOccurrence(t *testing.T) {
	listA := []types.ScoredChunk{{Chunk: types.Chunk{ID: "x", Content: "from-a"}, Score: 0.3}}
	listB := []types.ScoredChunk{{Chunk: types.Chunk{ID: "x", Content: "from-b"}, Score: 0.9}}

	out := Fuse([][]types.ScoredChunk{listA, listB}, types.FusionMax)
	require.Len(t, out, 1)
	assert.Equal(t, 0.9, out[0].Score)
	assert.Equal(t, "from-b", out[0].Chunk.Content)
}

func TestFuseDedupesByChunkID(t *testing.T) {
	listA := []types.ScoredChunk{{Chunk: chunk("a"), Score: 0.1}, {Chunk: chunk("a"), Score: 0.2}}
	out := Fuse([][]types.ScoredChunk{listA}, types.FusionRRF)
	assert.Len(t, out, 1)
}
