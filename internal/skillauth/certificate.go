package skillauth

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"
	"time"
)

// CertificateSANDomain is the identity the signing certificate must carry.
const CertificateSANDomain = "echo-api.amazon.com"

// SANMatchMode selects how CheckSubjectAltName compares SAN entries.
type SANMatchMode string

const (
	// SANMatchExact requires a DNS SAN equal to the domain, ignoring case.
	SANMatchExact SANMatchMode = "exact"
	// SANMatchSubstring accepts any SAN containing the domain, ignoring case.
	// Kept for compatibility with deployments that relied on it; it accepts
	// names such as echo-api.amazon.com.attacker.example.
	SANMatchSubstring SANMatchMode = "substring"
)

// ParseSANMatchMode maps a config value to a mode, defaulting to exact.
func ParseSANMatchMode(raw string) (SANMatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(SANMatchExact):
		return SANMatchExact, nil
	case string(SANMatchSubstring):
		return SANMatchSubstring, nil
	default:
		return "", fmt.Errorf("unknown san match mode %q", raw)
	}
}

// Certificate is the signing certificate as the pipeline sees it. Any further
// certificates in the chain are ignored.
type Certificate struct {
	SubjectAltNames []string
	NotBefore       time.Time
	NotAfter        time.Time
	PublicKey       any

	Leaf *x509.Certificate
}

// ParseCertificate decodes the PEM chain; the first certificate is the
// signer. Expired certificates parse successfully.
func ParseCertificate(pemBytes []byte) (*Certificate, error) {
	var certs []*x509.Certificate
	rest := pemBytes
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		c, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCertificate, err)
		}
		certs = append(certs, c)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("%w: no PEM certificate found", ErrInvalidCertificate)
	}

	leaf := certs[0]
	return &Certificate{
		SubjectAltNames: append([]string(nil), leaf.DNSNames...),
		NotBefore:       leaf.NotBefore,
		NotAfter:        leaf.NotAfter,
		PublicKey:       leaf.PublicKey,
		Leaf:            leaf,
	}, nil
}

// CheckValidity requires NotBefore <= now <= NotAfter.
func CheckValidity(cert *Certificate, now time.Time) error {
	if now.Before(cert.NotBefore) {
		return fmt.Errorf("%w: not valid before %s", ErrCertificateExpired, cert.NotBefore.UTC().Format(time.RFC3339))
	}
	if now.After(cert.NotAfter) {
		return fmt.Errorf("%w: expired at %s", ErrCertificateExpired, cert.NotAfter.UTC().Format(time.RFC3339))
	}
	return nil
}

// CheckSubjectAltName looks for domain among the certificate's SAN entries.
func CheckSubjectAltName(cert *Certificate, domain string, mode SANMatchMode) error {
	want := strings.ToLower(domain)
	for _, name := range cert.SubjectAltNames {
		got := strings.ToLower(strings.TrimSpace(name))
		switch mode {
		case SANMatchSubstring:
			if strings.Contains(got, want) {
				return nil
			}
		default:
			if got == want {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s not present", ErrInvalidSubjectAltName, domain)
}
