// Package template stores email layouts and fills their {{ Name }} placeholders.
package template

import (
	"regexp"
	"sort"
)

// placeholderRe matches {{ Name }}; whitespace inside the braces is ignored.
// A name is any run without braces or whitespace, so {{ T-C }} and {{Città}} count.
var placeholderRe = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// Render replaces every placeholder in tmpl with its value. Placeholders
// missing from values become the empty string. Values are inserted
// verbatim: callers escape or format them first.
//
// Substitution is a single pass, so a value that itself looks like a
// placeholder is never expanded.
func Render(tmpl string, values map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		return values[name]
	})
}

// Placeholders returns the distinct placeholder names used in tmpl, sorted
func Placeholders(tmpl string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	sort.Strings(names)
	return names
}
