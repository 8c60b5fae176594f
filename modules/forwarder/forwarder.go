package forwarder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/maple-obs/maple-ingest/modules/auth"
	"github.com/maple-obs/maple-ingest/pkg/otlp"
)

var (
	metricForwardDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_forward_duration_seconds",
		Help:    "Time taken to forward a payload to the collector.",
		Buckets: prometheus.DefBuckets,
	}, []string{"signal"})
	metricForwardResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_forward_responses_total",
		Help: "Collector responses by status bucket.",
	}, []string{"signal", "upstream_status"})
)

// ErrBackendUnavailable is returned for collector 5xx responses and any
// transport failure. Collector internals are never surfaced to tenants.
var ErrBackendUnavailable = errors.New("telemetry backend unavailable")

// Response is the collector's reply to a forwarded export request. 2xx and
// 4xx replies are passed through to the client as-is.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Forwarder posts enriched payloads to the downstream OTLP collector over a
// shared, pooled HTTP client.
type Forwarder struct {
	endpoint string
	client   *http.Client
	logger   log.Logger
}

func New(endpoint string, client *http.Client, logger log.Logger) *Forwarder {
	return &Forwarder{
		endpoint: endpoint,
		client:   client,
		logger:   logger,
	}
}

// Forward sends body to {endpoint}/v1/{signal}. encoding is the normalized
// inbound Content-Encoding and is replayed so the collector sees the same
// on-wire shape the client produced. The request context carries the
// per-request timeout ceiling.
func (f *Forwarder) Forward(ctx context.Context, signal otlp.Signal, contentType, encoding string, body []byte, key *auth.ResolvedKey) (*Response, error) {
	url := fmt.Sprintf("%s/v1/%s", f.endpoint, signal.Path())

	level.Debug(f.logger).Log("msg", "forwarding to collector", "url", url, "outbound_bytes", len(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build forward request")
	}
	req.Header.Set("Content-Type", contentType)
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	metricForwardDuration.WithLabelValues(signal.Path()).Observe(time.Since(start).Seconds())
	if err != nil {
		metricForwardResponses.WithLabelValues(signal.Path(), "error").Inc()
		level.Error(f.logger).Log(
			"msg", "collector forwarding failed",
			"err", err,
			"signal", signal,
			"org_id", key.OrgID,
			"key_id", key.KeyID,
			"url", url,
		)
		return nil, ErrBackendUnavailable
	}
	defer resp.Body.Close()

	metricForwardResponses.WithLabelValues(signal.Path(), statusBucket(resp.StatusCode)).Inc()
	level.Debug(f.logger).Log(
		"msg", "collector response",
		"upstream_status", resp.StatusCode,
		"forward_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode >= 500 {
		level.Error(f.logger).Log(
			"msg", "collector returned error",
			"upstream_status", resp.StatusCode,
			"signal", signal,
			"org_id", key.OrgID,
		)
		return nil, ErrBackendUnavailable
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		level.Error(f.logger).Log(
			"msg", "failed reading collector response",
			"err", err,
			"signal", signal,
			"org_id", key.OrgID,
			"key_id", key.KeyID,
		)
		return nil, ErrBackendUnavailable
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
	}, nil
}

func statusBucket(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "other"
	}
}
