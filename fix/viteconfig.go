package fix

import (
	"regexp"
	"strings"
)

const reactPluginPackage = "@vitejs/plugin-react"

var (
	requireImport = regexp.MustCompile(`(?m)^(?:const|let|var)\s+(\w+)\s*=\s*require\(\s*['"]([^'"]+)['"]\s*\)\s*;?\s*$`)
	pluginsArray  = regexp.MustCompile(`plugins\s*:\s*\[`)
	configObject  = regexp.MustCompile(`defineConfig\(\s*\{`)
	reactCall     = regexp.MustCompile(`\breact\s*\(`)
)

// RepairViteConfig ensures the React plugin is imported and wired into
// the build config. Legacy require-style imports are converted to the
// import syntax the rest of the file uses. Text already referencing the
// plugin is returned unchanged.
func (f *Fixer) RepairViteConfig(content string) string {
	// Normalize require() lines first so the plugin check below sees a
	// single import style.
	content = requireImport.ReplaceAllString(content, `import $1 from '$2';`)

	if strings.Contains(content, reactPluginPackage) {
		return content
	}

	content = ensureImport(content, "react", reactPluginPackage)

	if loc := pluginsArray.FindStringIndex(content); loc != nil {
		// The call may already be wired even when the import was lost,
		// for example after a truncated regeneration. Do not double it.
		if reactCall.MatchString(content[loc[0]:]) {
			return content
		}
		return content[:loc[1]] + "react(), " + content[loc[1]:]
	}
	if loc := configObject.FindStringIndex(content); loc != nil {
		return content[:loc[1]] + "\n  plugins: [react()]," + content[loc[1]:]
	}
	return content
}

// ensureImport prepends an import statement after any existing import
// block when the package is not yet imported.
func ensureImport(content, binding, pkg string) string {
	if strings.Contains(content, "'"+pkg+"'") || strings.Contains(content, `"`+pkg+`"`) {
		return content
	}

	stmt := "import " + binding + " from '" + pkg + "';\n"

	// Insert after the last existing top-level import line, keeping the
	// import block together.
	lines := strings.SplitAfter(content, "\n")
	last := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "import ") {
			last = i
		}
	}
	if last == -1 {
		return stmt + content
	}
	return strings.Join(lines[:last+1], "") + stmt + strings.Join(lines[last+1:], "")
}
