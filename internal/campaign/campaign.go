// Package campaign defines the campaign record submitted by the builder form
// and normalizes the loosely typed request payload into it.
package campaign

import (
	"errors"
	"fmt"
	"strings"
)

// TemplateType identifies the email template family
type TemplateType string

// Supported template types. Anything else is rejected before storage is touched.
const (
	TypeCasino  TemplateType = "CASINO"
	TypeSport   TemplateType = "SPORT"
	TypeBingo   TemplateType = "BINGO"
	TypeVirtual TemplateType = "VIRTUAL"
	TypeLottery TemplateType = "LOTTERY"

	DefaultType = TypeCasino
)

// ErrUnknownTemplateType is returned for template types outside the allow-list
var ErrUnknownTemplateType = errors.New("unknown template type")

var knownTypes = []TemplateType{TypeCasino, TypeSport, TypeBingo, TypeVirtual, TypeLottery}

// Types returns all supported template types
func Types() []TemplateType {
	out := make([]TemplateType, len(knownTypes))
	copy(out, knownTypes)
	return out
}

// ParseTemplateType parses a case-insensitive template type.
// Empty input yields DefaultType.
func ParseTemplateType(s string) (TemplateType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return DefaultType, nil
	}
	for _, t := range knownTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q (must be one of %s)", ErrUnknownTemplateType, s, typeList())
}

// String returns the upper-case form used in documents and file names
func (t TemplateType) String() string {
	return string(t)
}

// Key returns the lower-case form used to look templates up in storage
func (t TemplateType) Key() string {
	return strings.ToLower(string(t))
}

func typeList() string {
	names := make([]string, len(knownTypes))
	for i, t := range knownTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// Record is a normalized campaign submission. Every field is set; absent
// input becomes the empty string.
type Record struct {
	Subject        string
	Preheader      string
	TemplateType   TemplateType
	Body           string
	CTAText        string
	CTALink        string
	Terms          string
	ImageURL       string
	ImageClickLink string
	FileNameHint   string

	// Optional metadata forwarded to the automation webhook
	SubmittedAt string
	User        string
}

// HeaderLink returns the link wrapped around the header image,
// falling back to the CTA link.
func (r *Record) HeaderLink() string {
	if r.ImageClickLink != "" {
		return r.ImageClickLink
	}
	return strings.TrimSpace(r.CTALink)
}
