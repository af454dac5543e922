// Package certs provides the TLS material for serving the API over HTTPS,
// either from PEM files on disk or from Let's Encrypt via ACME.
package certs

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"
)

// RenewalWindow is how close to expiry a certificate is reported as needing renewal
const RenewalWindow = 30 * 24 * time.Hour

// Info describes a certificate
type Info struct {
	Domain    string
	Subject   string
	Issuer    string
	DNSNames  []string
	NotBefore time.Time
	NotAfter  time.Time
}

// DaysLeft returns the whole days until expiry relative to now
func (i Info) DaysLeft(now time.Time) int {
	return int(i.NotAfter.Sub(now).Hours() / 24)
}

// NeedsRenewal reports whether the certificate expires within RenewalWindow
func (i Info) NeedsRenewal(now time.Time) bool {
	return i.NotAfter.Sub(now) < RenewalWindow
}

// Load builds a server TLS config from a PEM certificate and key
func Load(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// ReadInfo parses the first certificate of a PEM file
func ReadInfo(certFile string) (*Info, error) {
	data, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("no certificate PEM block in %s", certFile)
	}

	leaf, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	info := infoFromLeaf(leaf)
	return &info, nil
}

func infoFromLeaf(leaf *x509.Certificate) Info {
	info := Info{
		Subject:   leaf.Subject.CommonName,
		Issuer:    leaf.Issuer.CommonName,
		DNSNames:  leaf.DNSNames,
		NotBefore: leaf.NotBefore,
		NotAfter:  leaf.NotAfter,
	}
	if len(leaf.DNSNames) > 0 {
		info.Domain = leaf.DNSNames[0]
	} else {
		info.Domain = leaf.Subject.CommonName
	}
	return info
}
