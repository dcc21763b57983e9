package skillauth_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testAppID   = "amzn1.ask.skill.test-skill"
	testCertURL = "https://s3.amazonaws.com/echo.api/echo-api-cert.pem"
)

var (
	keyOnce sync.Once
	testKey *rsa.PrivateKey
)

func signingKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

type testSigner struct {
	key *rsa.PrivateKey
	pem []byte
}

func newSigner(t *testing.T, sans []string, notBefore, notAfter time.Time) *testSigner {
	t.Helper()
	key := signingKey(t)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: "echo-api.amazon.com"},
		DNSNames:     sans,
		NotBefore:    notBefore,
		NotAfter:     notAfter,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return &testSigner{
		key: key,
		pem: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
	}
}

func newValidSigner(t *testing.T, now time.Time) *testSigner {
	return newSigner(t, []string{"echo-api.amazon.com"}, now.Add(-24*time.Hour), now.Add(24*time.Hour))
}

func (s *testSigner) sign(t *testing.T, body []byte) []byte {
	t.Helper()
	digest := sha1.Sum(body)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA1, digest[:])
	require.NoError(t, err)
	return sig
}

func (s *testSigner) signBase64(t *testing.T, body []byte) string {
	return base64.StdEncoding.EncodeToString(s.sign(t, body))
}

func requestBody(appID string, ts time.Time) []byte {
	return []byte(fmt.Sprintf(
		`{"version":"1.0","session":{"new":true,"application":{"applicationId":%q}},"request":{"type":"LaunchRequest","requestId":"amzn1.echo-api.request.1","timestamp":%q}}`,
		appID, ts.UTC().Format(time.RFC3339),
	))
}

// memCache is a map-backed CertificateCache with optional injected errors.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
	putErr  error
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memCache) Put(_ context.Context, key string, pemBytes []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.putErr != nil {
		return c.putErr
	}
	c.entries[key] = pemBytes
	return nil
}

// countingFetcher serves fixed bytes and records every call.
type countingFetcher struct {
	body  []byte
	err   error
	calls atomic.Int32
	urls  sync.Map
}

func (f *countingFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	f.urls.Store(url, true)
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

var errBackend = errors.New("backend down")

// gatedFetcher blocks every Fetch until release is closed or the fetch
// context ends.
type gatedFetcher struct {
	body    []byte
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newGatedFetcher(body []byte) *gatedFetcher {
	return &gatedFetcher{body: body, started: make(chan struct{}), release: make(chan struct{})}
}

func (f *gatedFetcher) Fetch(ctx context.Context, _ string) ([]byte, error) {
	if f.calls.Add(1) == 1 {
		close(f.started)
	}
	select {
	case <-f.release:
		return f.body, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
