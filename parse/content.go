package parse

import (
	"regexp"
	"strings"

	"github.com/justapithecus/forge/types"
)

var (
	// leadingFence matches an opening markdown code fence, optionally
	// with a language tag, at the start of the content.
	leadingFence = regexp.MustCompile("^\\s*```[a-zA-Z0-9_-]*\\n")
	// trailingFence matches a closing markdown code fence at the end.
	trailingFence = regexp.MustCompile("\\n?```\\s*$")
)

// CleanFileContent strips a wrapping markdown code fence and unescapes
// HTML entities the model sometimes emits around angle brackets.
// Idempotent: cleaning already-clean content is a no-op.
func CleanFileContent(content string) string {
	content = leadingFence.ReplaceAllString(content, "")
	content = trailingFence.ReplaceAllString(content, "")
	return unescapeEntities(content)
}

// unescapeEntities reverses the small set of HTML escapes models apply
// to markup-looking source. &amp; is handled last so that double
// escapes like &amp;lt; resolve in one pass.
func unescapeEntities(s string) string {
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}

// finalizeContent produces the final content for a closing action.
// File actions targeting non-markdown paths are cleaned and get a
// trailing newline; markdown files pass through untouched. Command
// content is trimmed.
func finalizeContent(action types.Action, raw string) string {
	if action.Type == types.ActionTypeFile {
		if strings.HasSuffix(action.FilePath, ".md") {
			return raw
		}
		content := CleanFileContent(raw)
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		return content
	}
	return strings.TrimSpace(raw)
}
