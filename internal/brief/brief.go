// Package brief renders a campaign record as a plain-text creative brief.
// The output is not markup, so nothing is HTML-escaped.
package brief

import (
	"fmt"
	"strings"
	"time"

	"github.com/lunaticom/campaign-builder/internal/campaign"
	"github.com/lunaticom/campaign-builder/internal/filename"
	"github.com/lunaticom/campaign-builder/internal/format"
)

// Layout selects the brief layout
type Layout string

const (
	// LayoutStandard is the sectioned layout with blank lines between groups
	LayoutStandard Layout = "standard"
	// LayoutCompact puts every field on one "Key: value" line, prose last
	LayoutCompact Layout = "compact"
)

// Valid reports whether l is a known layout
func (l Layout) Valid() bool {
	return l == LayoutStandard || l == LayoutCompact
}

// fields holds the record values after plain-text conversion
type fields struct {
	templateType   string
	date           string
	subject        string
	preheader      string
	body           string
	ctaText        string
	ctaLink        string
	imageURL       string
	imageClickLink string
	terms          string
}

func newFields(rec campaign.Record, now time.Time) fields {
	return fields{
		templateType:   rec.TemplateType.String(),
		date:           filename.Stamp(now),
		subject:        strings.TrimSpace(rec.Subject),
		preheader:      strings.TrimSpace(rec.Preheader),
		body:           PlainText(rec.Body),
		ctaText:        strings.TrimSpace(rec.CTAText),
		ctaLink:        strings.TrimSpace(rec.CTALink),
		imageURL:       strings.TrimSpace(rec.ImageURL),
		imageClickLink: strings.TrimSpace(rec.ImageClickLink),
		terms:          PlainText(rec.Terms),
	}
}

// PlainText removes **bold** markers and trims the result
func PlainText(s string) string {
	return strings.TrimSpace(format.StripBold(s))
}

// Compose renders rec using the given layout. Unknown layouts render as standard.
func Compose(rec campaign.Record, now time.Time, layout Layout) string {
	f := newFields(rec, now)
	if layout == LayoutCompact {
		return compact(f)
	}
	return standard(f)
}

func standard(f fields) string {
	var b strings.Builder

	b.WriteString("CAMPAIGN BRIEF\n")
	b.WriteString("-------------\n")
	fmt.Fprintf(&b, "Template: %s\n", f.templateType)
	fmt.Fprintf(&b, "Date: %s\n", f.date)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Subject: %s\n", f.subject)
	fmt.Fprintf(&b, "Preheader: %s\n", f.preheader)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Body:\n%s\n", f.body)
	b.WriteString("\n")
	b.WriteString("CTA:\n")
	fmt.Fprintf(&b, "- Text: %s\n", f.ctaText)
	fmt.Fprintf(&b, "- Link: %s\n", f.ctaLink)
	b.WriteString("\n")
	b.WriteString("Header image:\n")
	fmt.Fprintf(&b, "- Src (uploaded): %s\n", f.imageURL)
	fmt.Fprintf(&b, "- Click link: %s\n", f.imageClickLink)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Terms & Conditions:\n%s\n", f.terms)

	return b.String()
}

func compact(f fields) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Template: %s\n", f.templateType)
	fmt.Fprintf(&b, "Date: %s\n", f.date)
	fmt.Fprintf(&b, "Subject: %s\n", f.subject)
	fmt.Fprintf(&b, "Preheader: %s\n", f.preheader)
	fmt.Fprintf(&b, "CTA: %s -> %s\n", f.ctaText, f.ctaLink)
	fmt.Fprintf(&b, "Image: %s -> %s\n", f.imageURL, f.imageClickLink)
	b.WriteString("\n== Body ==\n")
	b.WriteString(f.body)
	b.WriteString("\n\n== Terms & Conditions ==\n")
	b.WriteString(f.terms)
	b.WriteString("\n")

	return b.String()
}
