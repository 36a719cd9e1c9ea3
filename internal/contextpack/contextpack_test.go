package contextpack

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corlin/hicrm-core/internal/tokenestimate"
	"github.com/corlin/hicrm-core/internal/types"
)

func sc(id, content string, score float64) types.ScoredChunk {
	return types.ScoredChunk{Chunk: types.Chunk{ID: id, Content: content}, Score: score}
}

func TestPackReturnsEmptyWhenBudgetExhausted(t *testing.T) {
	p := New(10) // smaller than generationReserve alone
	_, kept := p.Pack("q", []types.ScoredChunk{sc("a", "content", 1)}, "system")
	assert.Empty(t, kept)
}

func TestPackOrdersByDescendingScore(t *testing.T) {
	p := New(100000)
	chunks := []types.ScoredChunk{
		sc("low", "low score chunk", 0.1),
		sc("high", "high score chunk", 0.9),
		sc("mid", "mid score chunk", 0.5),
	}
	_, kept := p.Pack("q", chunks, "")
	require.Len(t, kept, 3)
	assert.Equal(t, []string{"high", "mid", "low"}, []string{kept[0].Chunk.ID, kept[1].Chunk.ID, kept[2].Chunk.ID})
}

func TestPackNeverAdmitsOverflowWithoutTruncation(t *testing.T) {
	p := New(320)
	big := strings.Repeat("你", 500)
	chunks := []types.ScoredChunk{sc("a", big, 1)}
	_, kept := p.Pack("query", chunks, "sys")
	require.Len(t, kept, 1)
	assert.True(t, strings.HasSuffix(kept[0].Chunk.Content, "..."))
	assert.Less(t, tokenestimate.Estimate(kept[0].Chunk.Content), tokenestimate.Estimate(big))
}

func TestPackStopsAfterTruncatingOneChunk(t *testing.T) {
	p := New(500)
	big := strings.Repeat("你", 500)
	small := "tail chunk"
	chunks := []types.ScoredChunk{sc("a", big, 1), sc("b", small, 0.5)}
	_, kept := p.Pack("q", chunks, "")
	// the truncated chunk consumes the remaining budget and packing stops
	require.Len(t, kept, 1)
	assert.Equal(t, "a", kept[0].Chunk.ID)
}

func TestPackSkipsChunkWhenRemainingBudgetTooSmallToTruncate(t *testing.T) {
	p := New(tokenestimateCost("sys") + tokenestimateCost("q") + generationReserve + 50)
	chunks := []types.ScoredChunk{sc("a", strings.Repeat("x", 1000), 1)}
	_, kept := p.Pack("q", chunks, "sys")
	assert.Empty(t, kept)
}

func tokenestimateCost(s string) int { return tokenestimate.Estimate(s) }
