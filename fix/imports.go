package fix

import (
	"regexp"
	"strings"
)

var importSpecifier = regexp.MustCompile(`(from\s+|require\(\s*)(['"])([^'"]+)(['"])`)

// fetchChain matches a fetch call with at least one .then continuation.
// Argument scanning tolerates one level of nested parentheses, which
// covers the call shapes models actually emit.
var fetchChain = regexp.MustCompile(`\bfetch\((?:[^()]|\([^()]*\))*\)(?:\s*\.then\((?:[^()]|\([^()]*\))*\))+`)

// RepairSource rewrites known-wrong import specifiers to their correct
// equivalents and appends a no-op error handler to bare fetch chains
// that have none. Defensive, not exhaustive.
func (f *Fixer) RepairSource(content string) string {
	content = importSpecifier.ReplaceAllStringFunc(content, func(m string) string {
		parts := importSpecifier.FindStringSubmatch(m)
		if corrected, ok := f.rules.ImportCorrections[parts[3]]; ok {
			return parts[1] + parts[2] + corrected + parts[4]
		}
		return m
	})

	return appendFetchHandlers(content)
}

func appendFetchHandlers(content string) string {
	locs := fetchChain.FindAllStringIndex(content, -1)
	if locs == nil {
		return content
	}

	var b strings.Builder
	prev := 0
	for _, loc := range locs {
		b.WriteString(content[prev:loc[1]])
		if !strings.HasPrefix(strings.TrimLeft(content[loc[1]:], " \t\n\r"), ".catch(") {
			b.WriteString(".catch(() => {})")
		}
		prev = loc[1]
	}
	b.WriteString(content[prev:])
	return b.String()
}
