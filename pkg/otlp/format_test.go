package otlp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	testCases := []struct {
		name        string
		contentType string
		expected    Format
		expectErr   bool
	}{
		{name: "protobuf", contentType: "application/x-protobuf", expected: FormatProtobuf},
		{name: "protobuf with parameter", contentType: "application/x-protobuf; proto=opentelemetry", expected: FormatProtobuf},
		{name: "octet stream", contentType: "application/octet-stream", expected: FormatProtobuf},
		{name: "json", contentType: "application/json", expected: FormatJSON},
		{name: "json with charset", contentType: "application/json; charset=utf-8", expected: FormatJSON},
		{name: "mixed case", contentType: "Application/JSON", expected: FormatJSON},
		{name: "uppercase protobuf", contentType: "APPLICATION/X-PROTOBUF", expected: FormatProtobuf},
		{name: "text plain", contentType: "text/plain", expectErr: true},
		{name: "form encoded", contentType: "application/x-www-form-urlencoded", expectErr: true},
		{name: "empty", contentType: "", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			format, err := DetectFormat(tc.contentType)
			if tc.expectErr {
				require.ErrorIs(t, err, ErrUnsupportedContentType)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, format)
		})
	}
}

func TestFormatContentType(t *testing.T) {
	require.Equal(t, "application/x-protobuf", FormatProtobuf.ContentType())
	require.Equal(t, "application/json", FormatJSON.ContentType())
	require.Equal(t, "protobuf", FormatProtobuf.String())
	require.Equal(t, "json", FormatJSON.String())
}
