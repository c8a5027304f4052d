// File: internal/fetch/compression.go
package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// Pools for decompression readers to reduce allocation overhead across many
// stylesheet fetches.
var (
	gzipReaderPool = sync.Pool{
		New: func() interface{} {
			return new(gzip.Reader)
		},
	}
	brotliReaderPool = sync.Pool{
		New: func() interface{} {
			return brotli.NewReader(nil)
		},
	}
)

// Shared empty reader used for safely resetting pooled readers before reuse.
var emptyReader = strings.NewReader("")

func getGzipReader(r io.Reader) (*gzip.Reader, error) {
	zr := gzipReaderPool.Get().(*gzip.Reader)
	if err := zr.Reset(r); err != nil {
		gzipReaderPool.Put(zr)
		return nil, err
	}
	return zr, nil
}

func putGzipReader(zr *gzip.Reader) {
	if zr == nil {
		return
	}
	// Reset with an empty reader rather than nil; Reset(nil) reads a header.
	_ = zr.Reset(emptyReader)
	gzipReaderPool.Put(zr)
}

func getBrotliReader(r io.Reader) (*brotli.Reader, error) {
	br := brotliReaderPool.Get().(*brotli.Reader)
	if err := br.Reset(r); err != nil {
		brotliReaderPool.Put(br)
		return nil, err
	}
	return br, nil
}

func putBrotliReader(br *brotli.Reader) {
	if br == nil {
		return
	}
	_ = br.Reset(emptyReader)
	brotliReaderPool.Put(br)
}

// DecompressionMiddleware is an http.RoundTripper that advertises compression
// support on outgoing requests and transparently decodes the response body
// according to its Content-Encoding header. Supports gzip, deflate (zlib and
// raw) and brotli.
type DecompressionMiddleware struct {
	Transport http.RoundTripper
}

// NewDecompressionMiddleware wraps the given transport; nil falls back to
// http.DefaultTransport.
func NewDecompressionMiddleware(transport http.RoundTripper) *DecompressionMiddleware {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &DecompressionMiddleware{Transport: transport}
}

// RoundTrip implements http.RoundTripper.
func (dm *DecompressionMiddleware) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "br, gzip, deflate, identity")
	}

	resp, err := dm.Transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if err := decompressResponse(resp); err != nil {
		// The body may be partially consumed at this point; discard it.
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to initialize response decompression: %w", err)
	}
	return resp, nil
}

// closeWrapper closes the decompression reader and the underlying body, and
// returns pooled readers via the callback.
type closeWrapper struct {
	io.ReadCloser
	originalBody io.ReadCloser
	poolCallback func()
}

func (w *closeWrapper) Close() error {
	if w.poolCallback != nil {
		w.poolCallback()
		w.poolCallback = nil
	}
	err1 := w.ReadCloser.Close()
	err2 := w.originalBody.Close()
	return errors.Join(err1, err2)
}

// decompressResponse wraps resp.Body with the decoders named by the
// Content-Encoding header, applied in reverse order for layered encodings.
func decompressResponse(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}
	encodings := resp.Header.Values("Content-Encoding")
	if len(encodings) == 0 {
		return nil
	}

	for i := len(encodings) - 1; i >= 0; i-- {
		encoding := strings.ToLower(strings.TrimSpace(encodings[i]))

		var reader io.ReadCloser
		var poolCallback func()

		switch encoding {
		case "gzip":
			gzipReader, err := getGzipReader(resp.Body)
			if err != nil {
				return fmt.Errorf("gzip initialization error: %w", err)
			}
			reader = gzipReader
			poolCallback = func() { putGzipReader(gzipReader) }

		case "br":
			brotliReader, err := getBrotliReader(resp.Body)
			if err != nil {
				return fmt.Errorf("brotli initialization error: %w", err)
			}
			reader = io.NopCloser(brotliReader)
			poolCallback = func() { putBrotliReader(brotliReader) }

		case "deflate":
			// Servers disagree on whether "deflate" means zlib-wrapped or a
			// raw stream. Sniff the zlib header and fall back to raw flate.
			peek := make([]byte, 2)
			n, err := io.ReadFull(resp.Body, peek)
			if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
				return fmt.Errorf("deflate header read error: %w", err)
			}
			combined := io.MultiReader(bytes.NewReader(peek[:n]), resp.Body)
			if n == 2 && peek[0] == 0x78 {
				zr, err := zlib.NewReader(combined)
				if err != nil {
					return fmt.Errorf("zlib initialization error: %w", err)
				}
				reader = zr
			} else {
				reader = flate.NewReader(combined)
			}

		case "identity", "":
			continue

		default:
			return fmt.Errorf("unsupported content encoding: %q", encoding)
		}

		resp.Body = &closeWrapper{
			ReadCloser:   reader,
			originalBody: resp.Body,
			poolCallback: poolCallback,
		}
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}
