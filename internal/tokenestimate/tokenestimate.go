// Package tokenestimate provides the CJK-weighted token estimate and
// system-preserving context truncation used by the router's context
// budget enforcement (spec §4.2), grounded on original_source's
// ChineseTokenOptimizer.estimate_chinese_tokens/truncate_context.
package tokenestimate

import (
	"github.com/corlin/hicrm-core/internal/types"
)

// Estimate returns an approximate token count for text: 1.5 tokens per
// CJK character (U+4E00-U+9FFF) and 0.25 tokens per other character,
// truncated toward zero exactly as the original does with int(...).
func Estimate(text string) int {
	var cjk, other int
	for _, r := range text {
		if r >= 0x4e00 && r <= 0x9fff {
			cjk++
		} else {
			other++
		}
	}
	return int(float64(cjk)*1.5 + float64(other)*0.25)
}

// Truncate keeps every system message (they are never dropped) and then
// fills from the most recent non-system message backward until adding
// the next one would exceed maxTokens. Order of the kept non-system
// messages is preserved. System messages are returned first, matching
// the original's `system_messages + selected_messages` concatenation.
func Truncate(messages []types.ChatMessage, maxTokens int) []types.ChatMessage {
	if len(messages) == 0 {
		return messages
	}

	var systemMessages, otherMessages []types.ChatMessage
	for _, msg := range messages {
		if msg.Role == types.RoleSystem {
			systemMessages = append(systemMessages, msg)
		} else {
			otherMessages = append(otherMessages, msg)
		}
	}

	currentTokens := 0
	for _, msg := range systemMessages {
		currentTokens += Estimate(msg.Content)
	}

	var selected []types.ChatMessage
	for i := len(otherMessages) - 1; i >= 0; i-- {
		msgTokens := Estimate(otherMessages[i].Content)
		if currentTokens+msgTokens <= maxTokens {
			selected = append([]types.ChatMessage{otherMessages[i]}, selected...)
			currentTokens += msgTokens
		} else {
			break
		}
	}

	result := make([]types.ChatMessage, 0, len(systemMessages)+len(selected))
	result = append(result, systemMessages...)
	result = append(result, selected...)
	return result
}
