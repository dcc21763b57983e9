package skillauth

import (
	"fmt"
	"net/url"
	"strings"
)

// Well-known location of the platform's signing certificates.
const (
	CertChainScheme      = "https"
	CertChainHost        = "s3.amazonaws.com"
	CertChainPort        = "443"
	CertChainPathSegment = "echo.api"
)

// NormalizeCertChainURL lower-cases scheme and host, drops the default https
// port, percent-decodes the path and removes "." and ".." segments. Path case
// is preserved.
func NormalizeCertChainURL(raw string) (string, error) {
	u, err := parseCertChainURL(raw)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// CheckCertChainURL normalizes raw and reports whether it points at the
// platform's certificate location. It returns the normalized URL, which is
// the only form later steps may fetch or use as a cache key.
func CheckCertChainURL(raw string) (string, error) {
	u, err := parseCertChainURL(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != CertChainScheme {
		return "", fmt.Errorf("%w: scheme %q", ErrUntrustedCertificateURL, u.Scheme)
	}
	if u.User != nil {
		return "", fmt.Errorf("%w: userinfo not allowed", ErrUntrustedCertificateURL)
	}
	if !strings.EqualFold(u.Hostname(), CertChainHost) {
		return "", fmt.Errorf("%w: host %q", ErrUntrustedCertificateURL, u.Hostname())
	}
	if port := u.Port(); port != "" && port != CertChainPort {
		return "", fmt.Errorf("%w: port %q", ErrUntrustedCertificateURL, port)
	}
	// Exact, case-sensitive match on the first segment.
	if !strings.HasPrefix(u.Path, "/"+CertChainPathSegment+"/") {
		return "", fmt.Errorf("%w: path %q", ErrUntrustedCertificateURL, u.Path)
	}
	return u.String(), nil
}

func parseCertChainURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUntrustedCertificateURL, err)
	}
	if u.Opaque != "" || u.Host == "" {
		return nil, fmt.Errorf("%w: not an absolute url", ErrUntrustedCertificateURL)
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if scheme == CertChainScheme && u.Port() == CertChainPort {
		host = strings.TrimSuffix(host, ":"+CertChainPort)
	}
	return &url.URL{
		Scheme:   scheme,
		User:     u.User,
		Host:     host,
		Path:     removeDotSegments(u.Path),
		RawQuery: u.RawQuery,
	}, nil
}

// removeDotSegments implements RFC 3986 section 5.2.4 over a decoded path.
func removeDotSegments(p string) string {
	if p == "" {
		return ""
	}
	var out []string
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		last := i == len(segments)-1
		switch seg {
		case ".":
			if last {
				out = append(out, "")
			}
		case "..":
			if len(out) > 1 {
				out = out[:len(out)-1]
			}
			if last {
				out = append(out, "")
			}
		default:
			out = append(out, seg)
		}
	}
	resolved := strings.Join(out, "/")
	if strings.HasPrefix(p, "/") && !strings.HasPrefix(resolved, "/") {
		resolved = "/" + resolved
	}
	return resolved
}
