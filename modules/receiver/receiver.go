package receiver

import (
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maple-obs/maple-ingest/modules/auth"
	"github.com/maple-obs/maple-ingest/modules/forwarder"
	"github.com/maple-obs/maple-ingest/modules/usage"
	"github.com/maple-obs/maple-ingest/pkg/otlp"
)

var tracer = otel.Tracer("modules/receiver")

// Config configures the HTTP surface.
type Config struct {
	MaxBodyBytes int64
}

// Receiver owns the three signal endpoints and runs the request pipeline
// behind them.
type Receiver struct {
	cfg      Config
	resolver *auth.Resolver
	fwd      *forwarder.Forwarder
	tracker  *usage.Tracker
	logger   log.Logger
}

// New builds a receiver. tracker may be nil when usage metering is disabled.
func New(cfg Config, resolver *auth.Resolver, fwd *forwarder.Forwarder, tracker *usage.Tracker, logger log.Logger) *Receiver {
	return &Receiver{
		cfg:      cfg,
		resolver: resolver,
		fwd:      fwd,
		tracker:  tracker,
		logger:   logger,
	}
}

// RegisterRoutes attaches the signal, health and metrics routes.
func (rcv *Receiver) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/v1/traces", rcv.handlerFor(otlp.SignalTraces)).Methods(http.MethodPost)
	router.HandleFunc("/v1/logs", rcv.handlerFor(otlp.SignalLogs)).Methods(http.MethodPost)
	router.HandleFunc("/v1/metrics", rcv.handlerFor(otlp.SignalMetrics)).Methods(http.MethodPost)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("OK"))
}

func (rcv *Receiver) handlerFor(signal otlp.Signal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rcv.handle(w, r, signal)
	}
}

func (rcv *Receiver) handle(w http.ResponseWriter, r *http.Request, signal otlp.Signal) {
	start := time.Now()

	metricInFlight.Inc()
	defer metricInFlight.Dec()

	// ContentLength is the best available size before the body is read, so
	// spans for requests rejected at auth still carry it. The pipeline
	// overwrites it with the exact count once the body is consumed.
	ctx, span := tracer.Start(r.Context(), "ingest",
		trace.WithAttributes(
			attribute.String("signal", signal.Path()),
			attribute.Int64("body_bytes", r.ContentLength),
		))
	defer span.End()

	res, perr := rcv.process(w, r.WithContext(ctx), signal, span)
	duration := time.Since(start)

	if perr != nil {
		metricRequestDuration.WithLabelValues(signal.Path(), "error").Observe(duration.Seconds())
		metricRequests.WithLabelValues(signal.Path(), "error", perr.kind).Inc()
		span.SetStatus(codes.Error, perr.api.msg)
		writeAPIError(w, perr.api)
		return
	}

	metricRequestDuration.WithLabelValues(signal.Path(), "ok").Observe(duration.Seconds())
	metricRequests.WithLabelValues(signal.Path(), "ok", "none").Inc()

	// Only successfully forwarded requests count toward tenant usage.
	rcv.tracker.Observe(res.orgID, signal.Path(), float64(res.decodedBytes)/1e9)

	level.Info(rcv.logger).Log(
		"msg", "request processed",
		"signal", signal,
		"status", res.upstream.StatusCode,
		"duration_ms", duration.Milliseconds(),
		"item_count", res.itemCount,
	)

	if res.upstream.ContentType != "" {
		w.Header().Set("Content-Type", res.upstream.ContentType)
	}
	w.WriteHeader(res.upstream.StatusCode)
	_, _ = w.Write(res.upstream.Body)
}
