package router

import "strings"

// fullWidthPunctuation maps full-width Chinese punctuation to ASCII
// equivalents, grounded on original_source's
// ChineseTokenOptimizer.optimize_prompt replacement table.
var fullWidthPunctuation = strings.NewReplacer(
	"，", ",",
	"。", ".",
	"？", "?",
	"！", "!",
	"：", ":",
	"；", ";",
)

// canonicalize collapses whitespace and maps full-width Chinese
// punctuation to ASCII, information-preserving (spec §4.7
// Pre-processing).
func canonicalize(content string) string {
	collapsed := strings.Join(strings.Fields(content), " ")
	return fullWidthPunctuation.Replace(collapsed)
}
