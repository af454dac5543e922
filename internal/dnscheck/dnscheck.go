// Package dnscheck verifies the DNS records a sending domain needs for proof
// mail to pass SPF, DKIM and DMARC at the recipient.
package dnscheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
)

// Domain validation errors
var (
	ErrInvalidDomain   = errors.New("invalid domain name")
	ErrInvalidSelector = errors.New("invalid DKIM selector")
)

var (
	domainRegex   = regexp.MustCompile(`^(?i)[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)*$`)
	selectorRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?$`)
)

// ValidateDomain checks the RFC 1035 shape of a domain name
func ValidateDomain(domain string) error {
	if domain == "" || len(domain) > 253 || !domainRegex.MatchString(domain) {
		return fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
	}
	return nil
}

// ValidateSelector checks a DKIM selector, which follows the label rules
func ValidateSelector(selector string) error {
	if !selectorRegex.MatchString(selector) {
		return fmt.Errorf("%w: %q", ErrInvalidSelector, selector)
	}
	return nil
}

// Status of a single check
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusError    Status = "error"
	StatusNotFound Status = "not_found"
)

// CheckResult is the outcome of one record check
type CheckResult struct {
	Type    string `json:"type"`
	Status  Status `json:"status"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message,omitempty"`
}

// Report collects the checks for one domain
type Report struct {
	Domain  string        `json:"domain"`
	Results []CheckResult `json:"results"`
	Summary Summary       `json:"summary"`
}

// Summary counts results by status
type Summary struct {
	OK       int `json:"ok"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
	NotFound int `json:"not_found"`
}

// Resolver looks up TXT records. *net.Resolver satisfies it.
type Resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// Checker runs record checks against a resolver
type Checker struct {
	resolver Resolver
}

// NewChecker creates a checker. A nil resolver uses the system resolver.
func NewChecker(r Resolver) *Checker {
	if r == nil {
		r = net.DefaultResolver
	}
	return &Checker{resolver: r}
}

// Check verifies SPF, DKIM and DMARC for domain. When publicKey is not empty
// the published DKIM key must match it.
func (c *Checker) Check(ctx context.Context, domain, selector, publicKey string) (*Report, error) {
	if err := ValidateDomain(domain); err != nil {
		return nil, err
	}
	if err := ValidateSelector(selector); err != nil {
		return nil, err
	}

	report := &Report{Domain: domain}
	report.Results = append(report.Results,
		c.CheckSPF(ctx, domain),
		c.CheckDKIM(ctx, domain, selector, publicKey),
		c.CheckDMARC(ctx, domain),
	)

	for _, r := range report.Results {
		switch r.Status {
		case StatusOK:
			report.Summary.OK++
		case StatusWarning:
			report.Summary.Warnings++
		case StatusError:
			report.Summary.Errors++
		case StatusNotFound:
			report.Summary.NotFound++
		}
	}

	return report, nil
}

// CheckSPF looks for a v=spf1 record on domain
func (c *Checker) CheckSPF(ctx context.Context, domain string) CheckResult {
	result := CheckResult{Type: "SPF Record"}

	records, ok := c.lookup(ctx, domain, &result, "No SPF record found (recommended to add)")
	if !ok {
		return result
	}

	for _, txt := range records {
		if !strings.HasPrefix(txt, "v=spf1") {
			continue
		}
		result.Status = StatusOK
		result.Value = txt
		switch {
		case strings.Contains(txt, "+all"):
			result.Status = StatusWarning
			result.Message = "SPF uses +all (allows any sender), consider ~all or -all"
		case strings.Contains(txt, "-all"):
			result.Message = "SPF configured with strict policy (-all)"
		case strings.Contains(txt, "~all"):
			result.Message = "SPF configured with soft fail (~all)"
		}
		return result
	}

	result.Status = StatusNotFound
	result.Message = "No SPF record found (recommended to add)"
	return result
}

// CheckDKIM reads <selector>._domainkey.<domain> and, when publicKey is set,
// compares its p= tag
func (c *Checker) CheckDKIM(ctx context.Context, domain, selector, publicKey string) CheckResult {
	result := CheckResult{Type: fmt.Sprintf("DKIM Record (%s._domainkey)", selector)}

	name := fmt.Sprintf("%s._domainkey.%s", selector, domain)
	records, ok := c.lookup(ctx, name, &result, fmt.Sprintf("No DKIM record found for selector '%s'", selector))
	if !ok {
		return result
	}

	// long keys are split across strings
	record := strings.Join(records, "")
	result.Value = truncate(record, 100)

	if !strings.Contains(record, "v=DKIM1") {
		result.Status = StatusWarning
		result.Message = "TXT record found but doesn't appear to be a valid DKIM record"
		return result
	}

	published := tagValue(record, "p")
	switch {
	case published == "":
		result.Status = StatusError
		result.Message = "DKIM record has no public key (p=)"
	case publicKey != "" && published != publicKey:
		result.Status = StatusError
		result.Message = "Published DKIM key does not match the signing key"
	default:
		result.Status = StatusOK
		result.Message = "DKIM record published"
		if publicKey != "" {
			result.Message = "DKIM record matches the signing key"
		}
	}
	return result
}

// CheckDMARC looks for a v=DMARC1 record on _dmarc.<domain>
func (c *Checker) CheckDMARC(ctx context.Context, domain string) CheckResult {
	result := CheckResult{Type: "DMARC Record"}

	records, ok := c.lookup(ctx, "_dmarc."+domain, &result, "No DMARC record found (recommended to add)")
	if !ok {
		return result
	}

	record := strings.Join(records, "")
	result.Value = record

	if !strings.HasPrefix(record, "v=DMARC1") {
		result.Status = StatusWarning
		result.Message = "TXT record found but doesn't appear to be a valid DMARC record"
		return result
	}

	result.Status = StatusOK
	switch tagValue(record, "p") {
	case "reject":
		result.Message = "DMARC configured with reject policy (strict)"
	case "quarantine":
		result.Message = "DMARC configured with quarantine policy"
	case "none":
		result.Status = StatusWarning
		result.Message = "DMARC configured with none policy (monitoring only)"
	}
	return result
}

// lookup fills result for failed lookups and reports whether records were found
func (c *Checker) lookup(ctx context.Context, name string, result *CheckResult, notFound string) ([]string, bool) {
	records, err := c.resolver.LookupTXT(ctx, name)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			result.Status = StatusNotFound
			result.Message = notFound
			return nil, false
		}
		result.Status = StatusError
		result.Message = fmt.Sprintf("Lookup failed: %v", err)
		return nil, false
	}
	if len(records) == 0 {
		result.Status = StatusNotFound
		result.Message = notFound
		return nil, false
	}
	return records, true
}

// tagValue returns the value of a tag=value; list entry
func tagValue(record, tag string) string {
	for _, part := range strings.Split(record, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && strings.TrimSpace(k) == tag {
			return strings.Join(strings.Fields(v), "")
		}
	}
	return ""
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
