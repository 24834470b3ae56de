// Package fix implements the deterministic repair rules applied to
// generated payloads before they reach the workspace.
//
// All rules are pure functions over text: side-effect free, and
// idempotent: running a rule twice produces the same output as running
// it once. Correction tables are immutable configuration injected at
// construction so tests can substitute fixtures.
package fix

import (
	"path"
	"strings"
)

// Rules holds the correction tables driving all repair rules.
type Rules struct {
	// PackageCorrections maps known-wrong package identifiers to their
	// correct registry names.
	PackageCorrections map[string]string
	// RemovedPackages lists identifiers known not to exist on the
	// registry (typically Node builtins models try to install).
	RemovedPackages []string
	// DisallowedFrameworks lists dependency names whose presence in a
	// manifest triggers replacement with the baseline toolchain.
	// Entries ending in "/" match as scope prefixes.
	DisallowedFrameworks []string
	// ImportCorrections maps known-wrong import specifiers in generated
	// source to their correct equivalents.
	ImportCorrections map[string]string
	// BaselineDependencies are ensured in "dependencies" when a
	// disallowed framework is replaced.
	BaselineDependencies map[string]string
	// BaselineDevDependencies are the build-tool companions ensured in
	// "devDependencies" whenever the baseline framework is present.
	BaselineDevDependencies map[string]string
	// BaselineScripts are the script entries set when the manifest is
	// normalized to the baseline toolchain.
	BaselineScripts map[string]string
}

// DefaultRules returns the standard correction tables.
func DefaultRules() Rules {
	return Rules{
		PackageCorrections: map[string]string{
			"@lucide/react": "lucide-react",
			"lucide-icons":  "lucide-react",
			"shadcn-ui":     "shadcn",
			"react-router":  "react-router-dom",
		},
		RemovedPackages: []string{
			"fs", "path", "crypto", "http", "https", "child_process", "os",
		},
		DisallowedFrameworks: []string{
			"next", "nuxt", "@angular/", "@remix-run/", "svelte", "vue",
		},
		ImportCorrections: map[string]string{
			"@lucide/react": "lucide-react",
			"react-router":  "react-router-dom",
		},
		BaselineDependencies: map[string]string{
			"react":     "^18.3.1",
			"react-dom": "^18.3.1",
		},
		BaselineDevDependencies: map[string]string{
			"vite":                 "^5.4.2",
			"@vitejs/plugin-react": "^4.3.1",
		},
		BaselineScripts: map[string]string{
			"dev":     "vite",
			"build":   "vite build",
			"preview": "vite preview",
			"start":   "vite",
		},
	}
}

// Fixer applies the repair rules. Stateless; safe for concurrent use.
type Fixer struct {
	rules Rules
}

// New creates a Fixer with the given rules.
func New(rules Rules) *Fixer {
	return &Fixer{rules: rules}
}

// Kind selects which repair applies to a file path.
type Kind int

const (
	// KindNone means no repair rule applies.
	KindNone Kind = iota
	// KindManifest is a package manifest (package.json).
	KindManifest
	// KindViteConfig is a Vite build configuration file.
	KindViteConfig
	// KindTailwindConfig is a Tailwind CSS configuration file.
	KindTailwindConfig
	// KindSource is a JavaScript/TypeScript source file.
	KindSource
)

// ForPath returns the repair kind for a workspace-relative file path.
func ForPath(p string) Kind {
	base := path.Base(p)
	switch {
	case base == "package.json":
		return KindManifest
	case strings.HasPrefix(base, "vite.config."):
		return KindViteConfig
	case strings.HasPrefix(base, "tailwind.config."):
		return KindTailwindConfig
	}
	switch path.Ext(base) {
	case ".js", ".jsx", ".ts", ".tsx", ".mjs":
		return KindSource
	}
	return KindNone
}

// isDisallowedFramework reports whether a dependency name matches the
// disallowed framework table.
func (f *Fixer) isDisallowedFramework(name string) bool {
	for _, d := range f.rules.DisallowedFrameworks {
		if strings.HasSuffix(d, "/") {
			if strings.HasPrefix(name, d) {
				return true
			}
			continue
		}
		if name == d {
			return true
		}
	}
	return false
}
