// Package filename derives safe download names from free-form user input.
package filename

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// MaxLength is the longest name either policy produces
const MaxLength = 60

// Policy selects how user text is turned into a file name
type Policy string

const (
	// PolicyUnderscore keeps case and turns whitespace into underscores
	PolicyUnderscore Policy = "underscore"
	// PolicySlug lower-cases and joins alphanumeric runs with hyphens
	PolicySlug Policy = "slug"
)

var (
	whitespaceRe    = regexp.MustCompile(`[\s\p{Zs}]+`)
	disallowedRe    = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	underscoreRunRe = regexp.MustCompile(`_+`)
	nonSlugRe       = regexp.MustCompile(`[^a-z0-9]+`)
)

// Valid reports whether p is a known policy
func (p Policy) Valid() bool {
	return p == PolicyUnderscore || p == PolicySlug
}

// Normalize applies the policy to s. Unknown policies fall back to underscore.
func (p Policy) Normalize(s string) string {
	if p == PolicySlug {
		return Slug(s)
	}
	return Underscore(s)
}

// separator joins the base name and a suffix such as "brief"
func (p Policy) separator() string {
	if p == PolicySlug {
		return "-"
	}
	return "_"
}

// Underscore: whitespace -> "_", drop everything outside [A-Za-z0-9_-],
// collapse and trim underscores, cap at MaxLength.
func Underscore(s string) string {
	s = strings.TrimSpace(s)
	s = whitespaceRe.ReplaceAllString(s, "_")
	s = disallowedRe.ReplaceAllString(s, "")
	s = underscoreRunRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	return strings.Trim(truncate(s), "_")
}

// Slug: lower-case, runs outside [a-z0-9] -> "-", trim hyphens, cap at MaxLength.
func Slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonSlugRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	return strings.Trim(truncate(s), "-")
}

// both policies emit ASCII only, so byte truncation is safe
func truncate(s string) string {
	if len(s) > MaxLength {
		return s[:MaxLength]
	}
	return s
}

// Namer builds download names for generated documents
type Namer struct {
	Policy Policy
}

// Base returns the normalized hint, or "{TYPE}_{YYYY-MM-DD}" when the hint
// is empty or normalizes to nothing.
func (n Namer) Base(hint, templateType string, now time.Time) string {
	if base := n.Policy.Normalize(hint); base != "" {
		return base
	}
	return fmt.Sprintf("%s_%s", templateType, Stamp(now))
}

// HTML returns the name of the generated email document
func (n Namer) HTML(hint, templateType string, now time.Time) string {
	return n.Base(hint, templateType, now) + ".html"
}

// Brief returns the name of the plain-text brief
func (n Namer) Brief(hint, templateType string, now time.Time) string {
	sep := n.Policy.separator()
	if n.Policy.Normalize(hint) == "" {
		// default names always use underscores
		sep = "_"
	}
	return n.Base(hint, templateType, now) + sep + "brief.txt"
}

// Stamp formats the UTC calendar date used in default names and briefs
func Stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
