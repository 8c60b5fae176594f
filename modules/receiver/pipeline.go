package receiver

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/maple-obs/maple-ingest/modules/forwarder"
	"github.com/maple-obs/maple-ingest/pkg/otlp"
)

const (
	ingestKeyHeader = "x-maple-ingest-key"

	// Assumed when the client omits Content-Type, matching collector behavior.
	defaultContentType = "application/x-protobuf"

	backendUnavailableMsg = "Telemetry backend unavailable"
)

// pipelineResult carries everything the outer handler needs once all stages
// succeeded.
type pipelineResult struct {
	upstream     *forwarder.Response
	itemCount    int
	orgID        string
	decodedBytes int
}

// process runs the ordered, fail-fast request stages:
// auth -> body -> format -> decode -> parse/enrich/serialize -> encode -> forward.
func (rcv *Receiver) process(w http.ResponseWriter, r *http.Request, signal otlp.Signal, span trace.Span) (*pipelineResult, *pipelineError) {
	ctx := r.Context()

	// --- Auth ---
	rawKey := extractIngestKey(r.Header)
	if rawKey == "" {
		level.Warn(rcv.logger).Log("msg", "missing ingest key", "signal", signal)
		return nil, &pipelineError{api: unauthorized("Missing ingest key"), kind: "auth"}
	}

	resolveStart := time.Now()
	key, err := rcv.resolver.Resolve(ctx, rawKey)
	if err != nil {
		level.Error(rcv.logger).Log("msg", "ingest key resolution failed", "err", err)
		return nil, &pipelineError{api: serviceUnavailable("Ingest authentication unavailable"), kind: "auth"}
	}
	if key == nil {
		level.Warn(rcv.logger).Log("msg", "unknown ingest key", "signal", signal)
		return nil, &pipelineError{api: unauthorized("Invalid ingest key"), kind: "auth"}
	}
	metricKeyResolution.Observe(time.Since(resolveStart).Seconds())

	span.SetAttributes(
		attribute.String("org_id", key.OrgID),
		attribute.String("key_type", key.KeyType.String()),
	)
	level.Debug(rcv.logger).Log(
		"msg", "authenticated",
		"org_id", key.OrgID,
		"key_id", key.KeyID,
		"resolve_ms", time.Since(resolveStart).Milliseconds(),
	)

	// --- Body ---
	r.Body = http.MaxBytesReader(w, r.Body, rcv.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			level.Warn(rcv.logger).Log(
				"msg", "payload too large",
				"max_bytes", rcv.cfg.MaxBodyBytes,
				"org_id", key.OrgID,
			)
			return nil, &pipelineError{api: payloadTooLarge("Request body too large"), kind: "payload_too_large"}
		}
		return nil, &pipelineError{api: badRequest("Failed to read request body"), kind: "decode"}
	}

	span.SetAttributes(attribute.Int("body_bytes", len(body)))
	metricBodyBytes.WithLabelValues(signal.Path()).Observe(float64(len(body)))

	// --- Format detection ---
	contentType := r.Header.Get("Content-Type")
	if strings.TrimSpace(contentType) == "" {
		contentType = defaultContentType
	}

	format, err := otlp.DetectFormat(contentType)
	if err != nil {
		level.Warn(rcv.logger).Log("msg", "unsupported content type", "content_type", contentType)
		return nil, &pipelineError{api: unsupportedMediaType(err.Error()), kind: "unsupported_media"}
	}

	// --- Decode ---
	encoding := otlp.NormalizeEncoding(r.Header.Get("Content-Encoding"))

	decoded, err := otlp.Decompress(body, encoding)
	switch {
	case errors.Is(err, otlp.ErrUnsupportedEncoding):
		return nil, &pipelineError{api: unsupportedMediaType(err.Error()), kind: "decode"}
	case err != nil:
		level.Warn(rcv.logger).Log("msg", "failed to decode payload", "body_bytes", len(body), "org_id", key.OrgID)
		return nil, &pipelineError{api: badRequest("Invalid gzip body"), kind: "decode"}
	}

	level.Debug(rcv.logger).Log("msg", "payload decoded", "decoded_bytes", len(decoded), "encoding", encodingLabel(encoding))
	metricDecodedBytes.WithLabelValues(signal.Path()).Observe(float64(len(decoded)))

	// --- Parse, enrich, serialize ---
	req, err := otlp.Unmarshal(signal, format, decoded)
	if err != nil {
		level.Warn(rcv.logger).Log("msg", "invalid OTLP payload", "signal", signal, "format", format)
		return nil, &pipelineError{
			api:  badRequest(fmt.Sprintf("Invalid OTLP %s %s payload", signal, format)),
			kind: "enrich",
		}
	}

	req.Enrich(key.OrgID, key.KeyType.String())
	itemCount := req.ItemCount()

	payload, err := req.Marshal(format)
	if err != nil {
		return nil, &pipelineError{
			api:  serviceUnavailable(fmt.Sprintf("Failed to serialize %s payload", signal)),
			kind: "enrich",
		}
	}

	level.Debug(rcv.logger).Log("msg", "payload enriched", "item_count", itemCount)
	metricItems.WithLabelValues(signal.Path(), key.OrgID).Add(float64(itemCount))

	// --- Encode & forward ---
	outbound, err := otlp.Compress(payload, encoding)
	if err != nil {
		return nil, &pipelineError{api: serviceUnavailable("Failed to encode gzip payload"), kind: "encode"}
	}

	upstream, err := rcv.fwd.Forward(ctx, signal, format.ContentType(), encoding, outbound, key)
	if err != nil {
		return nil, &pipelineError{api: serviceUnavailable(backendUnavailableMsg), kind: "forward"}
	}

	return &pipelineResult{
		upstream:     upstream,
		itemCount:    itemCount,
		orgID:        key.OrgID,
		decodedBytes: len(decoded),
	}, nil
}

// extractIngestKey pulls the raw key from Authorization: Bearer or the
// x-maple-ingest-key header. Empty string means no key was presented.
func extractIngestKey(h http.Header) string {
	if v := h.Get("Authorization"); len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		if token := strings.TrimSpace(v[7:]); token != "" {
			return token
		}
	}

	return strings.TrimSpace(h.Get(ingestKeyHeader))
}

func encodingLabel(encoding string) string {
	if encoding == "" {
		return "identity"
	}
	return encoding
}
