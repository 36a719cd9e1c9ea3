// Package chunker splits ingested document text into overlapping chunks
// using a two-level paragraph-then-sentence strategy, grounded on
// original_source's ChineseTextSplitter.split_text (spec §4.1).
package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/corlin/hicrm-core/internal/types"
)

var (
	paragraphSeparators = []string{"\n\n", "\n"}
	sentenceSeparators  = []string{"。", "！", "？", "；", "\n\n"}
)

// Chunker splits text per spec §4.1: paragraphs under ChunkSize are kept
// whole, oversized paragraphs are split into sentences, and when a chunk
// is cut between two sentences a ChunkOverlap-sized tail of it seeds the
// next one. A cut between whole paragraphs carries no overlap.
type Chunker struct {
	ChunkSize    int
	ChunkOverlap int
}

// New builds a Chunker from the given RAG config fields.
func New(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
}

// Split splits text into raw chunk strings (char-counted, not
// token-counted) without attaching document metadata.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	paragraphs := splitBySeparators(text, paragraphSeparators)

	var chunks []string
	var current strings.Builder

	flush := func() {
		if strings.TrimSpace(current.String()) != "" {
			chunks = append(chunks, strings.TrimSpace(current.String()))
		}
		current.Reset()
	}

	for _, paragraph := range paragraphs {
		if utf8Len(paragraph) > c.ChunkSize {
			sentences := splitBySeparators(paragraph, sentenceSeparators)
			for _, sentence := range sentences {
				if utf8Len(current.String())+utf8Len(sentence) > c.ChunkSize && current.Len() > 0 {
					flush()
					if c.ChunkOverlap > 0 {
						current.WriteString(tailRunes(chunks[len(chunks)-1], c.ChunkOverlap))
					}
					current.WriteString(sentence)
				} else {
					current.WriteString(sentence)
				}
			}
		} else {
			if utf8Len(current.String())+utf8Len(paragraph) > c.ChunkSize && current.Len() > 0 {
				flush()
				current.WriteString(paragraph)
			} else {
				current.WriteString(paragraph)
			}
		}
	}
	flush()
	return chunks
}

// SplitDocument splits a document into Chunks carrying id/index/metadata,
// per spec §4.1's chunk() contract. Chunk ids are derived from
// {docID}_{index} rather than minted fresh, so re-ingesting the same
// document produces the same chunk ids and vectorstore.Store.Upsert's
// id-keyed upsert dedupes instead of accumulating duplicates (spec §8's
// idempotent-reingest invariant).
func (c *Chunker) SplitDocument(docID string, content string, metadata map[string]interface{}) []types.Chunk {
	raw := c.Split(content)
	chunks := make([]types.Chunk, 0, len(raw))
	for i, text := range raw {
		md := make(map[string]interface{}, len(metadata))
		for k, v := range metadata {
			md[k] = v
		}
		chunks = append(chunks, types.Chunk{
			ID:            fmt.Sprintf("%s_%d", docID, i),
			OriginalDocID: docID,
			ChunkIndex:    i,
			TotalChunks:   len(raw),
			Content:       text,
			Metadata:      md,
		})
	}
	return chunks
}

func utf8Len(s string) int {
	return len([]rune(s))
}

// tailRunes returns the last n runes of s (the Python original slices
// chunk_overlap characters, not bytes).
func tailRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

func splitBySeparators(text string, separators []string) []string {
	pattern := buildSeparatorPattern(separators)
	re := regexp.MustCompile(pattern)

	indexes := re.FindAllStringIndex(text, -1)
	var result []string
	var current strings.Builder
	last := 0
	for _, idx := range indexes {
		current.WriteString(text[last:idx[1]])
		last = idx[1]
		if strings.TrimSpace(current.String()) != "" {
			result = append(result, current.String())
		}
		current.Reset()
	}
	current.WriteString(text[last:])
	if strings.TrimSpace(current.String()) != "" {
		result = append(result, current.String())
	}

	filtered := result[:0]
	for _, r := range result {
		if strings.TrimSpace(r) != "" {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func buildSeparatorPattern(separators []string) string {
	parts := make([]string, len(separators))
	for i, sep := range separators {
		parts[i] = regexp.QuoteMeta(sep)
	}
	return strings.Join(parts, "|")
}
