package dkim

import (
	"bytes"
	"crypto"
	"fmt"

	"github.com/emersion/go-msgauth/dkim"
)

// signedHeaders are the headers covered by the signature
var signedHeaders = []string{"From", "To", "Subject", "Date", "Message-ID", "MIME-Version", "Content-Type"}

// Signer adds a DKIM-Signature header to outgoing messages
type Signer struct {
	key *Key
}

// NewSigner creates a signer for key
func NewSigner(key *Key) *Signer {
	return &Signer{key: key}
}

// Sign returns message with a DKIM-Signature header prepended
func (s *Signer) Sign(message []byte) ([]byte, error) {
	opts := &dkim.SignOptions{
		Domain:                 s.key.Domain,
		Selector:               s.key.Selector,
		Signer:                 s.key.Private,
		Hash:                   crypto.SHA256,
		HeaderCanonicalization: dkim.CanonicalizationRelaxed,
		BodyCanonicalization:   dkim.CanonicalizationRelaxed,
		HeaderKeys:             signedHeaders,
	}

	var out bytes.Buffer
	if err := dkim.Sign(&out, bytes.NewReader(message), opts); err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	return out.Bytes(), nil
}

// Domain returns the signing domain
func (s *Signer) Domain() string {
	return s.key.Domain
}

// Selector returns the DKIM selector
func (s *Signer) Selector() string {
	return s.key.Selector
}
