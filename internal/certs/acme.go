package certs

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"
)

// ACMEConfig configures automatic certificates
type ACMEConfig struct {
	Email    string
	Domains  []string
	CacheDir string

	// DirectoryURL overrides the Let's Encrypt production directory
	DirectoryURL string
}

// Manager obtains and renews certificates from an ACME CA
type Manager struct {
	manager *autocert.Manager
	cache   autocert.DirCache
	domains []string
}

// NewManager creates an ACME manager restricted to cfg.Domains
func NewManager(cfg ACMEConfig) *Manager {
	cache := autocert.DirCache(cfg.CacheDir)

	m := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Email:      cfg.Email,
		HostPolicy: autocert.HostWhitelist(cfg.Domains...),
		Cache:      cache,
	}
	if cfg.DirectoryURL != "" {
		m.Client = &acme.Client{DirectoryURL: cfg.DirectoryURL}
	}

	return &Manager{
		manager: m,
		cache:   cache,
		domains: cfg.Domains,
	}
}

// Domains returns the configured host names
func (m *Manager) Domains() []string {
	return m.domains
}

// TLSConfig returns a server config that fetches certificates on demand
func (m *Manager) TLSConfig() *tls.Config {
	cfg := m.manager.TLSConfig()
	cfg.MinVersion = tls.VersionTLS12
	return cfg
}

// ChallengeHandler answers HTTP-01 challenges and redirects every other
// request to HTTPS
func (m *Manager) ChallengeHandler() http.Handler {
	return m.manager.HTTPHandler(http.HandlerFunc(redirectHTTPS))
}

// Cached reads certificates from the cache without contacting the CA.
// Domains with no cached certificate are skipped.
func (m *Manager) Cached(ctx context.Context) ([]Info, error) {
	var results []Info

	for _, domain := range m.domains {
		data, err := m.cache.Get(ctx, domain)
		if errors.Is(err, autocert.ErrCacheMiss) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read cache for %s: %w", domain, err)
		}

		// the cache stores the key followed by the chain in one PEM bundle
		cert, err := tls.X509KeyPair(data, data)
		if err != nil || len(cert.Certificate) == 0 {
			continue
		}
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			continue
		}

		info := infoFromLeaf(leaf)
		info.Domain = domain
		results = append(results, info)
	}

	return results, nil
}

func redirectHTTPS(w http.ResponseWriter, r *http.Request) {
	target := "https://" + r.Host + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	http.Redirect(w, r, target, http.StatusMovedPermanently)
}
