// Package format converts the restricted markdown-like copy typed into the
// campaign form (**bold**, "- " bullets, line breaks) into escaped markup.
//
// The same formatter backs the interactive preview and the generated
// documents; the only difference between the two is whether consecutive
// blank lines collapse into a single break.
package format

import (
	"regexp"
	"strings"
)

const (
	listOpen  = "<ul>"
	listClose = "</ul>"
	lineBreak = "<br>"

	bulletPrefix = "- "
)

var (
	lineSplitRe = regexp.MustCompile(`\r\n|\n|\r`)
	boldRe      = regexp.MustCompile(`\*\*(.+?)\*\*`)
)

// Options controls the formatter variant
type Options struct {
	// CollapseBlankLines suppresses a blank-line break when the previous
	// emitted span already ended with a break. Used by the preview.
	CollapseBlankLines bool
}

// HTML formats text for document generation (every blank line is kept)
func HTML(raw string) string {
	return Format(raw, Options{})
}

// Preview formats text for the live preview (blank-line breaks collapse)
func Preview(raw string) string {
	return Format(raw, Options{CollapseBlankLines: true})
}

// Format escapes raw and converts it to markup.
//
// Output always has balanced <ul>/</ul> pairs and never contains a raw
// angle bracket or quote taken from the input.
func Format(raw string, opts Options) string {
	lines := lineSplitRe.Split(Escape(raw), -1)

	var b strings.Builder
	inList := false
	lastWasBreak := false

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, bulletPrefix) {
			if !inList {
				b.WriteString(listOpen)
				inList = true
				lastWasBreak = false
			}
			b.WriteString("<li>")
			b.WriteString(Bold(trimmed[len(bulletPrefix):]))
			b.WriteString("</li>")
			continue
		}

		if inList {
			b.WriteString(listClose)
			inList = false
			lastWasBreak = false
		}

		if trimmed == "" {
			if opts.CollapseBlankLines && lastWasBreak {
				continue
			}
			b.WriteString(lineBreak)
			lastWasBreak = true
			continue
		}

		b.WriteString(Bold(trimmed))
		b.WriteString(lineBreak)
		lastWasBreak = true
	}

	if inList {
		b.WriteString(listClose)
	}

	return b.String()
}

// Bold wraps every non-overlapping **span** in <strong>.
// Input must already be escaped.
func Bold(s string) string {
	return boldRe.ReplaceAllString(s, "<strong>$1</strong>")
}

// StripBold removes the ** markers around bold spans and keeps the text.
func StripBold(s string) string {
	return boldRe.ReplaceAllString(s, "$1")
}
