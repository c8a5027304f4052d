// File: internal/fetch/client.go
package fetch

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Constants tuned for stylesheet retrieval from ordinary web servers.
const (
	DefaultDialTimeout           = 15 * time.Second
	DefaultKeepAliveInterval     = 30 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 30 * time.Second
	DefaultRequestTimeout        = 60 * time.Second

	DefaultMaxIdleConns        = 50
	DefaultMaxIdleConnsPerHost = 6
	DefaultIdleConnTimeout     = 90 * time.Second

	// DefaultMaxBodySize caps how much stylesheet text a single fetch reads.
	DefaultMaxBodySize = 8 << 20 // 8 MiB
)

// SecureMinTLSVersion is the lowest TLS version accepted by default.
const SecureMinTLSVersion = tls.VersionTLS12

// ClientConfig holds the configuration for the stylesheet HTTP client.
type ClientConfig struct {
	// InsecureSkipVerify disables TLS certificate verification. Useful against
	// local dev servers with self-signed certificates; off by default.
	InsecureSkipVerify bool

	RequestTimeout time.Duration

	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	// MaxBodySize bounds the bytes read from a single response body.
	MaxBodySize int64

	// RatePerSecond throttles outgoing fetches when > 0.
	RatePerSecond float64

	// UserAgent overrides the request User-Agent when non-empty.
	UserAgent string

	ProxyURL *url.URL
}

// NewClientConfig returns a configuration with sensible defaults.
func NewClientConfig() *ClientConfig {
	return &ClientConfig{
		RequestTimeout:      DefaultRequestTimeout,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		MaxBodySize:         DefaultMaxBodySize,
	}
}

// NewTransport builds the base http.Transport for the client.
func NewTransport(config *ClientConfig) *http.Transport {
	if config == nil {
		config = NewClientConfig()
	}

	dialer := &net.Dialer{
		Timeout:   DefaultDialTimeout,
		KeepAlive: DefaultKeepAliveInterval,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSClientConfig:       configureTLS(config),
		TLSHandshakeTimeout:   DefaultTLSHandshakeTimeout,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
		// The decompression middleware negotiates and decodes encodings
		// itself (including brotli), so the transport must stay out of it.
		DisableCompression: true,
		ForceAttemptHTTP2:  true,
	}

	if config.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(config.ProxyURL)
	}
	return transport
}

// NewHTTPClient creates the configured http.Client with the decompression
// middleware installed. Redirects are followed; stylesheets routinely live
// behind CDN redirects.
func NewHTTPClient(config *ClientConfig) *http.Client {
	if config == nil {
		config = NewClientConfig()
	}
	return &http.Client{
		Transport: NewDecompressionMiddleware(NewTransport(config)),
		Timeout:   config.RequestTimeout,
	}
}

func configureTLS(config *ClientConfig) *tls.Config {
	tlsConfig := &tls.Config{
		MinVersion: SecureMinTLSVersion,
		NextProtos: []string{"h2", "http/1.1"},
	}
	tlsConfig.InsecureSkipVerify = config.InsecureSkipVerify
	return tlsConfig
}
