package thttp

import (
	"net/http"

	"github.com/kevinpollet/nego"
	"github.com/ridge/travertine/request"
	"github.com/ridge/travertine/tzip"
)

// NegotiateCompression picks the response compression from the
// Accept-Encoding header, preferring gzip
func NegotiateCompression(r *http.Request) request.Compression {
	// nego.NegotiateContentEncoding returns the first offer if there is no
	// Accept-Encoding header at all. Guard against it.
	if r.Header.Get("Accept-Encoding") == "" {
		return request.CompressionNone
	}
	switch nego.NegotiateContentEncoding(r, "gzip", "deflate") {
	case "gzip":
		return request.CompressionGzip
	case "deflate":
		return request.CompressionDeflate
	default:
		return request.CompressionNone
	}
}

// compress encodes a response body. Deflate responses are raw deflate
// streams, which browsers accept for Content-Encoding: deflate.
func compress(body []byte, c request.Compression) ([]byte, string, error) {
	switch c {
	case request.CompressionGzip:
		out, err := tzip.Compress(body, false)
		return out, "gzip", err
	case request.CompressionDeflate:
		out, err := tzip.Compress(body, true)
		return out, "deflate", err
	default:
		return body, "", nil
	}
}
