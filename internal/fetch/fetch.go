// File: internal/fetch/fetch.go
// Package fetch retrieves stylesheet (and page) text over HTTP with
// transparent decompression, size caps and optional rate limiting.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Client fetches text resources. Concurrent fetches of the same URL are
// collapsed into a single request.
type Client struct {
	httpClient  *http.Client
	maxBodySize int64
	userAgent   string
	limiter     *rate.Limiter
	group       singleflight.Group
	logger      *zap.Logger
}

// NewClient builds a Client from the given configuration. A nil config uses
// defaults; a nil logger logs nothing.
func NewClient(config *ClientConfig, logger *zap.Logger) *Client {
	if config == nil {
		config = NewClientConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBody := config.MaxBodySize
	if maxBody <= 0 {
		maxBody = DefaultMaxBodySize
	}
	var limiter *rate.Limiter
	if config.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), 1)
	}
	return &Client{
		httpClient:  NewHTTPClient(config),
		maxBodySize: maxBody,
		userAgent:   config.UserAgent,
		limiter:     limiter,
		logger:      logger.Named("fetch"),
	}
}

// FetchText retrieves the body of url as text. Non-2xx statuses are errors.
// The body read is capped at the configured maximum size.
func (c *Client) FetchText(ctx context.Context, url string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	v, err, shared := c.group.Do(url, func() (interface{}, error) {
		return c.fetch(ctx, url)
	})
	if err != nil {
		return "", err
	}
	if shared {
		c.logger.Debug("Fetch deduplicated", zap.String("url", url))
	}
	return v.(string), nil
}

func (c *Client) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", url, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused, then give up.
		_, _ = io.CopyN(io.Discard, resp.Body, 512)
		return "", fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return "", fmt.Errorf("reading body of %s: %w", url, err)
	}
	c.logger.Debug("Fetched resource",
		zap.String("url", url),
		zap.Int("bytes", len(body)),
	)
	return string(body), nil
}
