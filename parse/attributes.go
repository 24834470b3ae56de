package parse

import "regexp"

// attrPattern matches name="value" pairs inside an opening tag. This is
// deliberately not a general XML parser: the grammar limits nesting to
// one level and attribute values never contain escaped quotes.
var attrPattern = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9_-]*)="([^"]*)"`)

// scanAttributes extracts name="value" pairs from an opening tag.
// Later duplicates win, matching a last-writer-wins attribute scan.
func scanAttributes(tag string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrPattern.FindAllStringSubmatch(tag, -1) {
		attrs[m[1]] = m[2]
	}
	return attrs
}
