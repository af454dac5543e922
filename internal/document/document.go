// Package document turns a campaign record into downloadable documents:
// the rendered HTML email and the plain-text brief.
package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lunaticom/campaign-builder/internal/apperr"
	"github.com/lunaticom/campaign-builder/internal/brief"
	"github.com/lunaticom/campaign-builder/internal/campaign"
	"github.com/lunaticom/campaign-builder/internal/filename"
	"github.com/lunaticom/campaign-builder/internal/format"
	"github.com/lunaticom/campaign-builder/internal/template"
)

// Content types of generated documents
const (
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeText = "text/plain; charset=utf-8"
)

// Document is a generated file ready to be served as an attachment
type Document struct {
	Filename    string
	ContentType string
	Body        string
}

// Generator renders documents from campaign records
type Generator struct {
	store  template.Store
	namer  filename.Namer
	layout brief.Layout
	now    func() time.Time
}

// Option configures a Generator
type Option func(*Generator)

// WithClock overrides the time source used for dates and default names
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// WithLayout selects the brief layout
func WithLayout(l brief.Layout) Option {
	return func(g *Generator) {
		g.layout = l
	}
}

// WithFilenamePolicy selects how file name hints are normalized
func WithFilenamePolicy(p filename.Policy) Option {
	return func(g *Generator) {
		g.namer = filename.Namer{Policy: p}
	}
}

// NewGenerator creates a generator reading templates from store
func NewGenerator(store template.Store, opts ...Option) *Generator {
	g := &Generator{
		store:  store,
		namer:  filename.Namer{Policy: filename.PolicyUnderscore},
		layout: brief.LayoutStandard,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Values returns the placeholder mapping for rec. Plain fields are escaped,
// prose fields go through the formatter.
func Values(rec campaign.Record) map[string]string {
	return map[string]string{
		"Titolo":          format.Escape(rec.Subject),
		"Preheader":       format.Escape(rec.Preheader),
		"Descrizione":     format.HTML(rec.Body),
		"Testo_CTA":       format.Escape(rec.CTAText),
		"Link_CTA":        format.Escape(rec.CTALink),
		"Immagine_URL":    format.Escape(rec.ImageURL),
		"Link_img_header": format.Escape(rec.HeaderLink()),
		"T_C":             format.HTML(rec.Terms),
		"TemplateType":    format.Escape(rec.TemplateType.String()),
	}
}

// RenderHTML loads the template for rec and substitutes its values
func (g *Generator) RenderHTML(ctx context.Context, rec campaign.Record) (string, error) {
	if rec.ImageURL == "" {
		return "", apperr.Validation("image_url is required (upload the image first)")
	}

	tmpl, err := g.store.Load(ctx, rec.TemplateType.Key())
	if err != nil {
		if errors.Is(err, template.ErrNotFound) {
			return "", apperr.Configuration(fmt.Sprintf("template not found: %s", rec.TemplateType.Key()))
		}
		return "", fmt.Errorf("failed to load template: %w", err)
	}

	return template.Render(tmpl.HTML, Values(rec)), nil
}

// HTML renders the email document for rec
func (g *Generator) HTML(ctx context.Context, rec campaign.Record) (*Document, error) {
	body, err := g.RenderHTML(ctx, rec)
	if err != nil {
		return nil, err
	}

	return &Document{
		Filename:    g.namer.HTML(rec.FileNameHint, rec.TemplateType.String(), g.now()),
		ContentType: ContentTypeHTML,
		Body:        body,
	}, nil
}

// Brief renders the plain-text brief for rec
func (g *Generator) Brief(rec campaign.Record) *Document {
	now := g.now()
	return &Document{
		Filename:    g.namer.Brief(rec.FileNameHint, rec.TemplateType.String(), now),
		ContentType: ContentTypeText,
		Body:        brief.Compose(rec, now, g.layout),
	}
}

// BriefText renders the brief body only
func (g *Generator) BriefText(rec campaign.Record) string {
	return brief.Compose(rec, g.now(), g.layout)
}
