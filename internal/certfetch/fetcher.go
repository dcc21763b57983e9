// Package certfetch downloads signing certificate chains over HTTPS.
package certfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected certificate response status")
	ErrEmptyBody        = errors.New("empty certificate response")
	ErrTooLarge         = errors.New("certificate response exceeds size limit")
)

const (
	defaultTimeout  = 5 * time.Second
	defaultMaxBytes = 64 << 10
)

// Config configures an HTTPFetcher.
type Config struct {
	Timeout  time.Duration
	MaxBytes int64
}

// HTTPFetcher implements skillauth.Fetcher with a bounded http.Client.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

// New creates a fetcher. client may be nil; a client with cfg.Timeout is
// built in that case.
func New(cfg Config, client *http.Client, logger *slog.Logger) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if client == nil {
		client = &http.Client{
			Timeout: cfg.Timeout,
			// The URL was vetted before the fetch; a redirect would leave it.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{client: client, maxBytes: cfg.MaxBytes, logger: logger}
}

// Fetch GETs url and returns the body. Non-200 responses, empty bodies and
// bodies larger than the configured limit are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building certificate request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("certificate fetch failed", "url", url, "error", err)
		return nil, fmt.Errorf("fetching certificate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("certificate fetch returned non-200", "url", url, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading certificate response: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, f.maxBytes)
	}
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}

	f.logger.Debug("certificate fetched",
		"url", url,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return body, nil
}
