package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmpty(t *testing.T) {
	c := New(512, 50)
	assert.Nil(t, c.Split(""))
}

func TestSplitShortTextIsOneChunk(t *testing.T) {
	c := New(512, 50)
	chunks := c.Split("这是一个简短的段落。")
	require.Len(t, chunks, 1)
	assert.Equal(t, "这是一个简短的段落。", chunks[0])
}

func TestSplitRespectsChunkSizeBoundary(t *testing.T) {
	c := New(20, 5)
	sentence := strings.Repeat("一", 8) + "。"
	paragraph := strings.Repeat(sentence, 6)
	chunks := c.Split(paragraph)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 20+5+len([]rune(sentence)),
			"chunk should not exceed chunk size plus overlap seed plus one sentence")
	}
}

func TestSplitOverlapSeedsNextChunk(t *testing.T) {
	c := New(10, 3)
	text := "一二三四五六七八九十一二三。一二三四五六七八九十一二三。"
	chunks := c.Split(text)
	require.GreaterOrEqual(t, len(chunks), 2)
	tail := tailRunes(chunks[0], 3)
	assert.True(t, strings.HasPrefix(chunks[1], tail))
}

func TestSplitDocumentAssignsIndicesAndMetadata(t *testing.T) {
	c := New(10, 0)
	content := "段落一内容。\n\n段落二内容。"
	chunks := c.SplitDocument("doc-1", content, map[string]interface{}{"source": "test"})
	require.NotEmpty(t, chunks)
	for i, chunk := range chunks {
		assert.Equal(t, "doc-1", chunk.OriginalDocID)
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.Equal(t, len(chunks), chunk.TotalChunks)
		assert.Equal(t, "test", chunk.Metadata["source"])
		assert.NotEmpty(t, chunk.ID)
	}
}

func TestSplitDocumentChunkIDsAreDeterministic(t *testing.T) {
	c := New(10, 0)
	content := "段落一内容。\n\n段落二内容。"

	first := c.SplitDocument("doc-1", content, nil)
	second := c.SplitDocument("doc-1", content, nil)
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID, "re-splitting the same document must yield the same chunk ids")
		assert.Equal(t, fmt.Sprintf("doc-1_%d", i), first[i].ID)
	}
}
