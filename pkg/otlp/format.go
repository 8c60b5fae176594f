package otlp

import (
	"strings"

	"github.com/pkg/errors"
)

// Format is the wire representation of an OTLP export request.
type Format int

const (
	FormatProtobuf Format = iota
	FormatJSON
)

// ErrUnsupportedContentType is returned for content types that are neither
// OTLP protobuf nor OTLP JSON. It maps to 415 at the HTTP surface.
var ErrUnsupportedContentType = errors.New("unsupported content type (expected OTLP protobuf/json)")

// ContentType returns the canonical media type for the format.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "application/x-protobuf"
}

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "protobuf"
}

// DetectFormat infers the payload format from a Content-Type header value.
// Matching is case-insensitive and substring based so that parameterized
// media types (charset, proto=...) are accepted. application/octet-stream is
// treated as protobuf, matching collector behavior.
func DetectFormat(contentType string) (Format, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))

	if strings.Contains(ct, "json") {
		return FormatJSON, nil
	}

	if strings.Contains(ct, "protobuf") || ct == "application/octet-stream" {
		return FormatProtobuf, nil
	}

	return FormatProtobuf, ErrUnsupportedContentType
}
