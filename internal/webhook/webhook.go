// Package webhook forwards campaign submissions to the automation hook.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lunaticom/campaign-builder/internal/apperr"
	"github.com/lunaticom/campaign-builder/internal/campaign"
	"github.com/lunaticom/campaign-builder/internal/format"
)

// DefaultSource tags submissions coming from the builder form
const DefaultSource = "react-form"

const maxResponseBytes = 64 << 10

// Payload is the JSON document posted to the hook
type Payload struct {
	ID             string `json:"id"`
	Subject        string `json:"subject"`
	Preheader      string `json:"preheader"`
	TemplateType   string `json:"templateType"`
	BodyText       string `json:"body_text"`
	BodyHTML       string `json:"body_html"`
	CTAText        string `json:"cta_text"`
	CTALink        string `json:"cta_link"`
	TermsText      string `json:"terms_text"`
	TermsHTML      string `json:"terms_html"`
	ImageURL       string `json:"image_url"`
	ImageClickLink string `json:"image_click_link"`
	SubmittedAt    string `json:"submitted_at"`
	Source         string `json:"source"`
	User           string `json:"user"`
}

// NewPayload builds the hook document for rec. submitted_at defaults to now.
func NewPayload(rec campaign.Record, source string, now time.Time) *Payload {
	submittedAt := rec.SubmittedAt
	if submittedAt == "" {
		submittedAt = now.UTC().Format(time.RFC3339)
	}
	if source == "" {
		source = DefaultSource
	}

	return &Payload{
		ID:             uuid.New().String(),
		Subject:        rec.Subject,
		Preheader:      rec.Preheader,
		TemplateType:   rec.TemplateType.String(),
		BodyText:       rec.Body,
		BodyHTML:       format.HTML(rec.Body),
		CTAText:        rec.CTAText,
		CTALink:        rec.CTALink,
		TermsText:      rec.Terms,
		TermsHTML:      format.HTML(rec.Terms),
		ImageURL:       rec.ImageURL,
		ImageClickLink: rec.ImageClickLink,
		SubmittedAt:    submittedAt,
		Source:         source,
		User:           rec.User,
	}
}

// Client posts payloads to a single hook URL
type Client struct {
	url        string
	source     string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a hook client. An empty url is reported per submission.
func NewClient(url, source string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:    url,
		source: source,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

// Submit validates rec and posts it to the hook. It returns the payload sent.
func (c *Client) Submit(ctx context.Context, rec campaign.Record) (*Payload, error) {
	if c.url == "" {
		return nil, apperr.Configuration("ZAPIER_HOOK_URL missing")
	}
	if rec.ImageURL == "" {
		return nil, apperr.Validation("image_url is required")
	}

	payload := NewPayload(rec, c.source, c.now())
	if err := c.post(ctx, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Client) post(ctx context.Context, payload *Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Upstream("Zapier hook failed", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		return apperr.Upstream("Zapier hook failed", string(body))
	}
	return nil
}
