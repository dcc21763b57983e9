package skillauth

import "errors"

// Each rejection cause is a distinct sentinel so callers can match with errors.Is.
// Messages are safe to return to the caller of the webhook.
var (
	ErrMalformedRequest           = errors.New("malformed skill request")
	ErrIdentityMismatch           = errors.New("request came from an unknown application")
	ErrRequestExpired             = errors.New("request timestamp outside allowed tolerance")
	ErrUntrustedCertificateURL    = errors.New("untrusted signature certificate chain url")
	ErrCertificateUnavailable     = errors.New("signing certificate unavailable")
	ErrInvalidCertificate         = errors.New("invalid signing certificate")
	ErrUnverifiableSignatureChain = errors.New("request signature does not verify against certificate")
	ErrCertificateExpired         = errors.New("signing certificate outside validity window")
	ErrInvalidSubjectAltName      = errors.New("signing certificate subject alternative name mismatch")
	ErrSignatureMismatch          = errors.New("request hash does not match signature digest")
	ErrIO                         = errors.New("certificate cache io failure")
)

var reasons = []struct {
	err    error
	reason string
}{
	{ErrMalformedRequest, "malformed_request"},
	{ErrIdentityMismatch, "identity_mismatch"},
	{ErrRequestExpired, "request_expired"},
	{ErrUntrustedCertificateURL, "untrusted_certificate_url"},
	{ErrCertificateUnavailable, "certificate_unavailable"},
	{ErrInvalidCertificate, "invalid_certificate"},
	{ErrUnverifiableSignatureChain, "unverifiable_signature_chain"},
	{ErrCertificateExpired, "certificate_expired"},
	{ErrInvalidSubjectAltName, "invalid_subject_alt_name"},
	{ErrSignatureMismatch, "signature_mismatch"},
	{ErrIO, "io_error"},
}

// Reason returns a stable snake_case code for the rejection category of err,
// "" for nil and "internal" for errors outside the known categories.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "internal"
}

// Message returns the operator-safe message for err's category without the
// wrapped library detail.
func Message(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.err.Error()
		}
	}
	return "request validation failed"
}
