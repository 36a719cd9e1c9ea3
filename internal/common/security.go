package common

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// xssPatterns guards free-form tool/agent output that may be rendered
// elsewhere, adapted (narrowed) from the teacher's internal/utils/security.go.
var xssPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?i)<iframe[^>]*>.*?</iframe>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on(load|error|click|mouseover|focus|blur)\s*=`),
}

// ValidateInput rejects control characters, invalid UTF-8, and obvious
// XSS patterns, returning the trimmed input on success.
func ValidateInput(input string) (string, bool) {
	if input == "" {
		return "", true
	}
	for _, r := range input {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return "", false
		}
	}
	if !utf8.ValidString(input) {
		return "", false
	}
	for _, pattern := range xssPatterns {
		if pattern.MatchString(input) {
			return "", false
		}
	}
	return strings.TrimSpace(input), true
}

// SanitizeForLog strips newlines/control characters from a value before
// it is interpolated into a log line, preventing log injection.
func SanitizeForLog(input string) string {
	if input == "" {
		return ""
	}
	replaced := strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(input)
	var b strings.Builder
	for _, r := range replaced {
		if r >= 32 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
