package common

import (
	"regexp"
	"strings"
)

// ExtractSection pulls the text of a named section (e.g. "主要痛点:") out
// of free-form generated content, consolidating what the original
// professional agents each reimplemented as a private _extract_section
// method (see DESIGN.md "Extractor consolidation").
func ExtractSection(content, sectionName string) string {
	pattern := regexp.MustCompile(
		`(?is)` + regexp.QuoteMeta(sectionName) + `[:：]?\s*\n?(.*?)(?:\n\n|\n[^•\-\d\s]|$)`)
	m := pattern.FindStringSubmatch(content)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

var listItemPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^[•\-]\s*(.+)$`),
	regexp.MustCompile(`(?m)^\d+\.\s*(.+)$`),
	regexp.MustCompile(`(?m)^[①②③④⑤⑥⑦⑧⑨⑩]\s*(.+)$`),
}

// ExtractListItems extracts bullet/numbered/circled-numeral list items
// from the named section, deduplicated.
func ExtractListItems(content, sectionName string) []string {
	section := ExtractSection(content, sectionName)
	if section == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var items []string
	for _, pattern := range listItemPatterns {
		for _, m := range pattern.FindAllStringSubmatch(section, -1) {
			item := strings.TrimSpace(m[1])
			if item == "" {
				continue
			}
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			items = append(items, item)
		}
	}
	return items
}
