package otlp

import (
	"bytes"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

var (
	// ErrMalformedGzip is returned when a gzip body cannot be decompressed.
	// It maps to 400 at the HTTP surface.
	ErrMalformedGzip = errors.New("invalid gzip body")

	// ErrUnsupportedEncoding is returned for Content-Encoding values other
	// than gzip or identity. It maps to 415 at the HTTP surface.
	ErrUnsupportedEncoding = errors.New("unsupported content-encoding")
)

// NormalizeEncoding canonicalizes a Content-Encoding header value. Absent,
// empty and identity encodings all normalize to "".
func NormalizeEncoding(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "identity" {
		return ""
	}
	return v
}

// Decompress reverses the request Content-Encoding. encoding must already be
// normalized.
func Decompress(body []byte, encoding string) ([]byte, error) {
	switch encoding {
	case "":
		return body, nil
	case "gzip":
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, ErrMalformedGzip
		}
		defer zr.Close()

		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, ErrMalformedGzip
		}
		return out, nil
	default:
		return nil, ErrUnsupportedEncoding
	}
}

// Compress re-applies the request Content-Encoding to the outbound payload so
// the collector sees the same on-wire shape the client sent.
func Compress(payload []byte, encoding string) ([]byte, error) {
	switch encoding {
	case "":
		return payload, nil
	case "gzip":
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return nil, errors.Wrap(err, "gzip encode")
		}
		if err := zw.Close(); err != nil {
			return nil, errors.Wrap(err, "gzip encode")
		}
		return buf.Bytes(), nil
	default:
		return nil, ErrUnsupportedEncoding
	}
}
