// Package dkim signs proof emails and manages the RSA keys used to do it.
package dkim

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// KeyBits is the size of generated keys
const KeyBits = 2048

// Key is a signing key bound to a domain and selector
type Key struct {
	Private  *rsa.PrivateKey
	Domain   string
	Selector string
}

// GenerateKey creates a fresh RSA key for domain/selector
func GenerateKey(domain, selector string) (*Key, error) {
	pk, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	return &Key{Private: pk, Domain: domain, Selector: selector}, nil
}

// Save writes the private key as PKCS#1 PEM with 0600 permissions
func (k *Key) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(k.Private),
	})
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// RecordName is the DNS name of the public key TXT record
func (k *Key) RecordName() string {
	return fmt.Sprintf("%s._domainkey.%s", k.Selector, k.Domain)
}

// PublicKey is the base64 DER public key as published in the p= tag
func (k *Key) PublicKey() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(&k.Private.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// RecordValue is the TXT record content publishing the public key
func (k *Key) RecordValue() (string, error) {
	pub, err := k.PublicKey()
	if err != nil {
		return "", err
	}
	return "v=DKIM1; k=rsa; p=" + pub, nil
}

// LoadKey reads a PEM private key (PKCS#1 or PKCS#8 RSA) for domain/selector
func LoadKey(path, domain, selector string) (*Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	pk, err := parsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Key{Private: pk, Domain: domain, Selector: selector}, nil
}

func parsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("key is not RSA")
		}
		return rsaKey, nil
	default:
		return nil, fmt.Errorf("unsupported key type: %s", block.Type)
	}
}
