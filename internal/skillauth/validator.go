// Package skillauth decides whether an inbound voice-assistant skill request
// was signed by the platform, is fresh, and targets the expected application.
package skillauth

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultFreshnessTolerance is the age a request may reach before it is
	// treated as a replay.
	DefaultFreshnessTolerance = 120 * time.Second
	// MaxFreshnessTolerance is the platform's ceiling. The validator does
	// not clamp to it; configuration loading rejects larger values.
	MaxFreshnessTolerance = 150 * time.Second
)

// Config is the caller-supplied policy a Validator enforces.
type Config struct {
	ApplicationID      string
	FreshnessTolerance time.Duration
	SANDomain          string
	SANMatch           SANMatchMode
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithClock replaces time.Now as the source of the current time.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// Validator runs the request verification pipeline. It holds no
// per-request state and is safe for concurrent use.
type Validator struct {
	cfg       Config
	retriever *retriever
	now       func() time.Time
}

// NewValidator creates a validator. cache may be nil, in which case every
// request fetches the certificate.
func NewValidator(cfg Config, cache CertificateCache, fetcher Fetcher, opts ...ValidatorOption) *Validator {
	if cfg.FreshnessTolerance <= 0 {
		cfg.FreshnessTolerance = DefaultFreshnessTolerance
	}
	if cfg.SANDomain == "" {
		cfg.SANDomain = CertificateSANDomain
	}
	if cfg.SANMatch == "" {
		cfg.SANMatch = SANMatchExact
	}
	v := &Validator{
		cfg:       cfg,
		retriever: &retriever{cache: cache, fetcher: fetcher},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate executes the checks in order, stopping at the first failure:
// application id -> freshness -> certificate url -> retrieval -> parse ->
// signature -> validity window -> subject alt name -> digest cross-check.
func (v *Validator) Validate(ctx context.Context, req *Request) error {
	if req == nil {
		return fmt.Errorf("%w: nil request", ErrMalformedRequest)
	}
	if err := v.CheckApplicationID(req.ApplicationID); err != nil {
		return err
	}
	if err := v.CheckFreshness(req.Timestamp); err != nil {
		return err
	}
	certURL, err := CheckCertChainURL(req.CertChainURL)
	if err != nil {
		return err
	}
	pemBytes, err := v.retriever.retrieve(ctx, certURL)
	if err != nil {
		return err
	}
	cert, err := ParseCertificate(pemBytes)
	if err != nil {
		return err
	}
	if err := VerifySignature(cert, req.Body, req.Signature); err != nil {
		return err
	}
	if err := v.CheckValidity(cert); err != nil {
		return err
	}
	if err := v.CheckSubjectAltName(cert); err != nil {
		return err
	}
	return VerifyDigest(cert, req.Body, req.Signature)
}

// IsValid reports whether Validate accepts req.
func (v *Validator) IsValid(ctx context.Context, req *Request) bool {
	return v.Validate(ctx, req) == nil
}

// CheckApplicationID requires an exact, case-sensitive match.
func (v *Validator) CheckApplicationID(applicationID string) error {
	if applicationID != v.cfg.ApplicationID {
		return ErrIdentityMismatch
	}
	return nil
}

// CheckFreshness requires timestamp + tolerance to lie after now.
func (v *Validator) CheckFreshness(timestamp time.Time) error {
	if !timestamp.Add(v.cfg.FreshnessTolerance).After(v.now()) {
		return fmt.Errorf("%w: issued %s", ErrRequestExpired, timestamp.UTC().Format(time.RFC3339))
	}
	return nil
}

// RetrieveCertificate checks rawURL with CheckCertChainURL and returns the
// PEM bytes for its normalized form from the cache, fetching on a miss. An
// untrusted URL is never fetched.
func (v *Validator) RetrieveCertificate(ctx context.Context, rawURL string) ([]byte, error) {
	certURL, err := CheckCertChainURL(rawURL)
	if err != nil {
		return nil, err
	}
	return v.retriever.retrieve(ctx, certURL)
}

// CheckValidity applies the certificate validity window at the validator's clock.
func (v *Validator) CheckValidity(cert *Certificate) error {
	return CheckValidity(cert, v.now())
}

// CheckSubjectAltName applies the configured SAN domain and match mode.
func (v *Validator) CheckSubjectAltName(cert *Certificate) error {
	return CheckSubjectAltName(cert, v.cfg.SANDomain, v.cfg.SANMatch)
}
