package fix

import (
	"encoding/json"
	"strings"
)

// ManifestResult reports the outcome of a manifest repair.
type ManifestResult struct {
	// Content is the repaired manifest text. Equal to the input when no
	// rule applied.
	Content string
	// Changed is true when any rule modified the manifest.
	Changed bool
	// FrameworkRemoved is true when a disallowed framework was replaced
	// with the baseline toolchain. The caller uses this to trigger a
	// one-time scaffold of the baseline's required files.
	FrameworkRemoved bool
	// TruncationRepaired is true when the structural repair heuristic
	// recovered a parseable manifest from truncated input.
	TruncationRepaired bool
}

// RepairManifest repairs a package manifest payload.
//
// On parse failure it attempts structural repair by trimming to the last
// complete key/value pair and balancing open braces and brackets. This
// is a truncation-recovery heuristic, not general JSON repair: if the
// balanced text still does not parse, the input is returned untouched
// (best effort, never worse than leaving the file alone).
//
// On parse success it applies identifier corrections, removes
// nonexistent packages, replaces disallowed frameworks with the baseline
// toolchain, ensures build-tool companion dependencies, and normalizes
// script entries.
func (f *Fixer) RepairManifest(content string) ManifestResult {
	result := ManifestResult{Content: content}

	var manifest map[string]any
	if err := json.Unmarshal([]byte(content), &manifest); err != nil {
		repaired := repairTruncatedJSON(content)
		if json.Unmarshal([]byte(repaired), &manifest) != nil {
			return result
		}
		result.TruncationRepaired = true
		result.Changed = true
	}

	changed := f.repairDependencies(manifest, &result)
	if f.ensureCompanions(manifest, result.FrameworkRemoved) {
		changed = true
	}
	if f.normalizeScripts(manifest, result.FrameworkRemoved) {
		changed = true
	}

	if !changed && !result.TruncationRepaired {
		return result
	}

	out, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return ManifestResult{Content: content}
	}

	result.Content = string(out) + "\n"
	result.Changed = true
	return result
}

// ReplacePackage rewrites or removes a single named package in a
// manifest. Used by the install repair-retry cycle after a registry
// "not found" failure: a known-wrong name is corrected, anything else
// is dropped. Returns the updated manifest and whether it changed.
func (f *Fixer) ReplacePackage(content, name string) (string, bool) {
	var manifest map[string]any
	if err := json.Unmarshal([]byte(content), &manifest); err != nil {
		return content, false
	}

	replacement, hasCorrection := f.rules.PackageCorrections[name]
	changed := false
	for _, section := range []string{"dependencies", "devDependencies"} {
		deps, ok := manifest[section].(map[string]any)
		if !ok {
			continue
		}
		version, ok := deps[name]
		if !ok {
			continue
		}
		delete(deps, name)
		if hasCorrection {
			deps[replacement] = version
		}
		changed = true
	}
	if !changed {
		return content, false
	}

	out, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return content, false
	}
	return string(out) + "\n", true
}

// repairDependencies applies corrections, removals, and framework
// replacement to both dependency sections.
func (f *Fixer) repairDependencies(manifest map[string]any, result *ManifestResult) bool {
	changed := false

	for _, section := range []string{"dependencies", "devDependencies"} {
		deps, ok := manifest[section].(map[string]any)
		if !ok {
			continue
		}

		for name, version := range deps {
			switch {
			case f.isDisallowedFramework(name):
				delete(deps, name)
				result.FrameworkRemoved = true
				changed = true
			case f.isRemovedPackage(name):
				delete(deps, name)
				changed = true
			default:
				if corrected, ok := f.rules.PackageCorrections[name]; ok && corrected != name {
					delete(deps, name)
					deps[corrected] = version
					changed = true
				}
			}
		}
	}

	if result.FrameworkRemoved {
		deps, _ := manifest["dependencies"].(map[string]any)
		if deps == nil {
			deps = make(map[string]any)
			manifest["dependencies"] = deps
		}
		for name, version := range f.rules.BaselineDependencies {
			if _, ok := deps[name]; !ok {
				deps[name] = version
				changed = true
			}
		}
	}

	return changed
}

// ensureCompanions ensures the build-tool companion dependencies are
// present whenever the baseline framework is detected.
func (f *Fixer) ensureCompanions(manifest map[string]any, frameworkRemoved bool) bool {
	deps, _ := manifest["dependencies"].(map[string]any)
	if !frameworkRemoved {
		if deps == nil {
			return false
		}
		if _, ok := deps["react"]; !ok {
			return false
		}
	}

	devDeps, ok := manifest["devDependencies"].(map[string]any)
	if !ok {
		devDeps = make(map[string]any)
		manifest["devDependencies"] = devDeps
	}

	changed := false
	for name, version := range f.rules.BaselineDevDependencies {
		if _, ok := devDeps[name]; !ok {
			devDeps[name] = version
			changed = true
		}
	}
	return changed
}

// normalizeScripts rewrites script entries that invoke a removed
// framework binary and, after a framework replacement, installs the
// baseline script set.
func (f *Fixer) normalizeScripts(manifest map[string]any, frameworkRemoved bool) bool {
	scripts, ok := manifest["scripts"].(map[string]any)
	if !ok {
		if !frameworkRemoved {
			return false
		}
		scripts = make(map[string]any)
		manifest["scripts"] = scripts
	}

	changed := false

	if frameworkRemoved {
		for name, command := range f.rules.BaselineScripts {
			if scripts[name] != command {
				scripts[name] = command
				changed = true
			}
		}
	}

	for name, v := range scripts {
		command, ok := v.(string)
		if !ok {
			continue
		}
		first, _, _ := strings.Cut(strings.TrimSpace(command), " ")
		if f.isDisallowedFramework(first) {
			if replacement, ok := f.rules.BaselineScripts[name]; ok {
				scripts[name] = replacement
			} else {
				scripts[name] = "vite"
			}
			changed = true
		}
	}

	return changed
}

// repairTruncatedJSON trims the input to the last complete key/value
// pair and balances open braces and brackets. Positions inside string
// literals are never chosen as cut points.
func repairTruncatedJSON(s string) string {
	lastComplete := -1
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
				if !followedByColon(s, i+1) {
					// Closed a value string; everything up to here is complete.
					lastComplete = i + 1
				}
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '}', ']':
			lastComplete = i + 1
		}
	}

	if lastComplete <= 0 {
		return s
	}

	prefix := strings.TrimRight(s[:lastComplete], " \t\n\r")
	prefix = strings.TrimSuffix(prefix, ",")

	// Rebalance: count containers left open in the kept prefix.
	var open []byte
	inString, escaped = false, false
	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			open = append(open, '}')
		case '[':
			open = append(open, ']')
		case '}', ']':
			if len(open) > 0 {
				open = open[:len(open)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(prefix)
	for i := len(open) - 1; i >= 0; i-- {
		b.WriteByte('\n')
		b.WriteByte(open[i])
	}
	b.WriteByte('\n')
	return b.String()
}

// followedByColon reports whether the next non-whitespace byte is a
// colon, which marks the preceding string as an object key.
func followedByColon(s string, from int) bool {
	for i := from; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case ':':
			return true
		default:
			return false
		}
	}
	return false
}
