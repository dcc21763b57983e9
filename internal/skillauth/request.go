package skillauth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Header names the platform uses to deliver the signature material.
const (
	SignatureHeader    = "Signature"
	CertChainURLHeader = "SignatureCertChainUrl"
)

// Request is the typed view of an inbound skill request. Body is kept
// byte-exact; every signature check runs over it, never over a re-encoding.
type Request struct {
	Body          []byte
	ApplicationID string
	Timestamp     time.Time
	CertChainURL  string
	Signature     []byte
}

type requestEnvelope struct {
	Session *struct {
		Application struct {
			ApplicationID string `json:"applicationId"`
		} `json:"application"`
	} `json:"session"`
	Context *struct {
		System struct {
			Application struct {
				ApplicationID string `json:"applicationId"`
			} `json:"application"`
		} `json:"System"`
	} `json:"context"`
	Request *struct {
		Timestamp string `json:"timestamp"`
	} `json:"request"`
}

// ParseRequest decodes the fields the pipeline needs from body and the two
// signature headers. The certificate URL is kept as delivered; the provenance
// check normalizes it.
func ParseRequest(body []byte, signature, certChainURL string) (*Request, error) {
	var env requestEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decoding body: %v", ErrMalformedRequest, err)
	}

	appID := ""
	if env.Session != nil {
		appID = env.Session.Application.ApplicationID
	}
	if appID == "" && env.Context != nil {
		appID = env.Context.System.Application.ApplicationID
	}
	if appID == "" {
		return nil, fmt.Errorf("%w: session.application.applicationId is required", ErrMalformedRequest)
	}

	if env.Request == nil || strings.TrimSpace(env.Request.Timestamp) == "" {
		return nil, fmt.Errorf("%w: request.timestamp is required", ErrMalformedRequest)
	}
	ts, err := ParseTimestamp(env.Request.Timestamp)
	if err != nil {
		return nil, err
	}

	signature = strings.TrimSpace(signature)
	if signature == "" {
		return nil, fmt.Errorf("%w: %s header is required", ErrMalformedRequest, SignatureHeader)
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding signature: %v", ErrMalformedRequest, err)
	}

	certChainURL = strings.TrimSpace(certChainURL)
	if certChainURL == "" {
		return nil, fmt.Errorf("%w: %s header is required", ErrMalformedRequest, CertChainURLHeader)
	}
	return &Request{
		Body:          body,
		ApplicationID: appID,
		Timestamp:     ts,
		CertChainURL:  certChainURL,
		Signature:     sig,
	}, nil
}

// ParseTimestamp parses an ISO-8601 UTC timestamp such as 2021-01-01T00:00:00Z.
func ParseTimestamp(raw string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: parsing request.timestamp: %v", ErrMalformedRequest, err)
	}
	return ts.UTC(), nil
}
