package fix

import (
	"regexp"
	"strings"
)

// installVerbs are the command prefixes that mark an install-style
// invocation. Sanitation applies only after one of these.
var installVerbs = map[string]map[string]bool{
	"npm":  {"install": true, "i": true, "add": true},
	"pnpm": {"install": true, "i": true, "add": true},
	"yarn": {"add": true},
	"bun":  {"add": true, "install": true},
}

// SanitizeCommand rewrites known-wrong package identifiers in an
// install-style command and strips packages known not to exist.
// Commands without an install verb are returned unchanged.
func (f *Fixer) SanitizeCommand(command string) string {
	fields := strings.Fields(command)

	verbAt := -1
	for i := 0; i+1 < len(fields); i++ {
		if subs, ok := installVerbs[fields[i]]; ok && subs[fields[i+1]] {
			verbAt = i + 1
			break
		}
	}
	if verbAt == -1 {
		return command
	}

	out := make([]string, 0, len(fields))
	out = append(out, fields[:verbAt+1]...)

	for _, tok := range fields[verbAt+1:] {
		if strings.HasPrefix(tok, "-") {
			out = append(out, tok)
			continue
		}

		name, version := splitPackageSpec(tok)
		if f.isRemovedPackage(name) {
			continue
		}
		if corrected, ok := f.rules.PackageCorrections[name]; ok {
			name = corrected
		}
		if version != "" {
			name += "@" + version
		}
		out = append(out, name)
	}

	return strings.Join(out, " ")
}

// splitPackageSpec splits "name@version" into name and version,
// respecting the leading @ of scoped package names.
func splitPackageSpec(spec string) (name, version string) {
	at := strings.LastIndex(spec, "@")
	if at <= 0 {
		return spec, ""
	}
	return spec[:at], spec[at+1:]
}

func (f *Fixer) isRemovedPackage(name string) bool {
	for _, r := range f.rules.RemovedPackages {
		if name == r {
			return true
		}
	}
	return false
}

// Registry "not found" signatures. npm prints the package name either in
// the request URL or in a quoted "'name@version' is not in this registry"
// line, depending on version.
var (
	notFoundURL    = regexp.MustCompile(`404\s+Not Found.*?https://registry\.npmjs\.org/(\S+)`)
	notFoundQuoted = regexp.MustCompile(`404\s+'((?:@[^'/]+/)?[^'@]+)(?:@[^']*)?'\s+is not in`)
	notFoundCode   = regexp.MustCompile(`(?:E404|ETARGET).*?[:\s]'?([a-z0-9@][a-z0-9@/._-]*)'?`)
)

// FindMissingPackage extracts the offending package name from install
// failure output. Returns false when the output does not match a
// registry "not found" signature.
func FindMissingPackage(output string) (string, bool) {
	if m := notFoundURL.FindStringSubmatch(output); m != nil {
		// Scoped names appear URL-encoded in the registry path.
		return strings.ReplaceAll(m[1], "%2f", "/"), true
	}
	if m := notFoundQuoted.FindStringSubmatch(output); m != nil {
		return m[1], true
	}
	if m := notFoundCode.FindStringSubmatch(output); m != nil {
		return m[1], true
	}
	return "", false
}
