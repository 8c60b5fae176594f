package receiver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_requests_total",
		Help: "Ingest requests by signal, outcome and error kind.",
	}, []string{"signal", "status", "error_kind"})

	metricRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_request_duration_seconds",
		Help:    "Total time spent handling an ingest request.",
		Buckets: prometheus.DefBuckets,
	}, []string{"signal", "status"})

	metricBodyBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_request_body_bytes",
		Help:    "Size of request bodies as received.",
		Buckets: prometheus.ExponentialBuckets(256, 4, 10),
	}, []string{"signal"})

	metricDecodedBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_decoded_body_bytes",
		Help:    "Size of request bodies after content decoding.",
		Buckets: prometheus.ExponentialBuckets(256, 4, 10),
	}, []string{"signal"})

	metricKeyResolution = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_key_resolution_duration_seconds",
		Help:    "Time taken to resolve an ingest key.",
		Buckets: prometheus.DefBuckets,
	})

	metricInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingest_requests_in_flight",
		Help: "Requests currently being handled.",
	})

	metricItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_items_total",
		Help: "Telemetry items (spans, log records, metric definitions) accepted.",
	}, []string{"signal", "org_id"})
)
