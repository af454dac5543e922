package campaign

import "strings"

// Payload is the JSON body sent by the builder form. Several fields have
// aliases because older clients used different keys.
type Payload struct {
	Subject      string `json:"subject"`
	Preheader    string `json:"preheader"`
	TemplateType string `json:"templateType"`
	Body         string `json:"body"`
	CTAText      string `json:"cta_text"`
	CTALink      string `json:"cta_link"`
	Terms        string `json:"terms"`

	ImageURL  string `json:"image_url,omitempty"`
	ImageLink string `json:"imageLink,omitempty"`

	ImageClickLink      string `json:"image_click_link,omitempty"`
	ImageClickLinkCamel string `json:"imageClickLink,omitempty"`

	FileName      string `json:"file_name,omitempty"`
	FileNameCamel string `json:"fileName,omitempty"`
	ImageName     string `json:"imageName,omitempty"`

	SubmittedAt string `json:"submitted_at,omitempty"`
	User        string `json:"user,omitempty"`
}

// Record normalizes the payload. It fails only when the template type is
// outside the allow-list.
func (p *Payload) Record() (Record, error) {
	tt, err := ParseTemplateType(p.TemplateType)
	if err != nil {
		return Record{}, err
	}

	return Record{
		Subject:        p.Subject,
		Preheader:      p.Preheader,
		TemplateType:   tt,
		Body:           p.Body,
		CTAText:        p.CTAText,
		CTALink:        p.CTALink,
		Terms:          p.Terms,
		ImageURL:       firstNonEmpty(p.ImageURL, p.ImageLink),
		ImageClickLink: firstNonEmpty(p.ImageClickLink, p.ImageClickLinkCamel),
		FileNameHint:   firstNonEmpty(p.FileName, p.FileNameCamel, p.ImageName),
		SubmittedAt:    strings.TrimSpace(p.SubmittedAt),
		User:           p.User,
	}, nil
}

// firstNonEmpty returns the first value that is non-blank, trimmed
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
