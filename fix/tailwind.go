package fix

import (
	"path"
	"regexp"
	"strings"
)

// TailwindResult reports the outcome of a style-config repair.
type TailwindResult struct {
	Content string
	Changed bool
	// Rename, when non-empty, is the path the file must be written to
	// instead of the original. Set when the repaired syntax requires a
	// CommonJS extension.
	Rename string
}

var (
	exportDefault = regexp.MustCompile(`(?m)^export\s+default\s+`)
	// tailwindcss has no package-level default export; models import it
	// into the config anyway and the binding is never valid.
	bogusTailwindImport = regexp.MustCompile(`(?m)^\s*(?:import\s+\w+\s+from\s+['"]tailwindcss['"]|(?:const|let|var)\s+\w+\s*=\s*require\(\s*['"]tailwindcss['"]\s*\))\s*;?\s*\n`)
	esmImport           = regexp.MustCompile(`(?m)^import\s+(\w+)\s+from\s+['"]([^'"]+)['"]\s*;?\s*$`)
	pluginRequire       = regexp.MustCompile(`require\(\s*(['"][^'"]+['"])\s*\)`)
)

const optionalPluginHelper = `function optionalPlugin(name) {
  try {
    return require(name);
  } catch (err) {
    console.warn('tailwind plugin ' + name + ' is not installed, skipping');
    return function () {};
  }
}

`

// RepairTailwindConfig converts the config to the CommonJS export
// convention, drops the invalid package self-import, and wraps plugin
// references so a missing optional plugin degrades to a warning instead
// of failing the whole build. Because the repaired text uses require(),
// a .js config is renamed to .cjs.
func (f *Fixer) RepairTailwindConfig(filePath, content string) TailwindResult {
	result := TailwindResult{Content: content}
	repaired := content

	repaired = bogusTailwindImport.ReplaceAllString(repaired, "")
	repaired = exportDefault.ReplaceAllString(repaired, "module.exports = ")
	repaired = esmImport.ReplaceAllString(repaired, "const $1 = require('$2');")
	repaired = guardPlugins(repaired)

	if usesRequire(repaired) && path.Ext(filePath) == ".js" {
		result.Rename = strings.TrimSuffix(filePath, ".js") + ".cjs"
	}

	result.Content = repaired
	result.Changed = repaired != content || result.Rename != ""
	return result
}

// guardPlugins wraps require() calls inside the plugins array with the
// optionalPlugin helper and prepends the helper definition once.
func guardPlugins(content string) string {
	start := strings.Index(content, "plugins:")
	if start == -1 {
		return content
	}
	open := strings.Index(content[start:], "[")
	if open == -1 {
		return content
	}
	open += start
	end := matchBracket(content, open)
	if end == -1 {
		return content
	}

	section := content[open:end]
	guarded := pluginRequire.ReplaceAllString(section, "optionalPlugin($1)")
	if guarded == section {
		return content
	}

	out := content[:open] + guarded + content[end:]
	if !strings.Contains(out, "function optionalPlugin") {
		out = optionalPluginHelper + out
	}
	return out
}

// matchBracket returns the index just past the bracket matching the one
// at open, or -1 when unbalanced.
func matchBracket(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

func usesRequire(content string) bool {
	return strings.Contains(content, "require(") || strings.Contains(content, "module.exports")
}
