package usage

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultQueueDepth = 10240

	// How long tracking may fail before the operator is paged, in seconds.
	criticalOutageSecs = 300

	finalFlushTimeout = 10 * time.Second
)

var (
	metricFlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "autumn_track_flush_duration_seconds",
		Help:    "Time taken by one usage flush pass.",
		Buckets: prometheus.DefBuckets,
	})
	metricFlushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autumn_track_flushes_total",
		Help: "Usage flush passes by outcome.",
	}, []string{"status"})
	metricPendingGB = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autumn_track_pending_gb",
		Help: "Sum of usage GB currently pending flush.",
	})
	metricEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "usage_events_dropped_total",
		Help: "Usage events dropped because the tracker queue was full.",
	})
)

// Config configures the Autumn usage tracker.
type Config struct {
	SecretKey     string
	APIURL        string
	FlushInterval time.Duration

	// QueueDepth bounds the handler->tracker channel. On overflow events are
	// dropped and counted rather than blocking ingress.
	QueueDepth int
}

// Event is one request's worth of ingested bytes attributed to a tenant.
type Event struct {
	OrgID     string
	FeatureID string
	ValueGB   float64
}

type bucketKey struct {
	orgID     string
	featureID string
}

type trackRequest struct {
	CustomerID     string  `json:"customer_id"`
	FeatureID      string  `json:"feature_id"`
	Value          float64 `json:"value"`
	IdempotencyKey string  `json:"idempotency_key"`
}

// Tracker aggregates usage events into per-(org, feature) buckets and
// periodically posts them to the Autumn track API. The flush loop goroutine
// is the sole owner of the bucket map; request handlers only touch the
// bounded event channel. Failed flushes keep their buckets, so the next pass
// retries with the combined value under a fresh idempotency key.
type Tracker struct {
	services.Service

	cfg    Config
	client *http.Client
	logger log.Logger
	events chan Event

	// State below is owned by the flush loop.
	buckets             map[bucketKey]float64
	consecutiveFailures int
	criticalThreshold   int
}

func New(cfg Config, client *http.Client, logger log.Logger) *Tracker {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = defaultQueueDepth
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	intervalSecs := int(cfg.FlushInterval.Seconds())
	if intervalSecs < 1 {
		intervalSecs = 1
	}
	threshold := criticalOutageSecs / intervalSecs
	if threshold < 1 {
		threshold = 1
	}

	t := &Tracker{
		cfg:               cfg,
		client:            client,
		logger:            logger,
		events:            make(chan Event, cfg.QueueDepth),
		buckets:           make(map[bucketKey]float64),
		criticalThreshold: threshold,
	}

	t.Service = services.NewBasicService(t.start, t.running, t.stop)

	return t
}

// Observe reports ingested bytes for a tenant without blocking. Safe to call
// on a nil tracker (metering disabled) and from any goroutine. If the queue
// is full the event is dropped and counted.
func (t *Tracker) Observe(orgID, featureID string, valueGB float64) {
	if t == nil {
		return
	}

	select {
	case t.events <- Event{OrgID: orgID, FeatureID: featureID, ValueGB: valueGB}:
	default:
		metricEventsDropped.Inc()
	}
}

func (t *Tracker) start(_ context.Context) error {
	level.Info(t.logger).Log("msg", "autumn usage tracker started", "flush_interval", t.cfg.FlushInterval)
	return nil
}

func (t *Tracker) running(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-t.events:
			t.buckets[bucketKey{orgID: ev.OrgID, featureID: ev.FeatureID}] += ev.ValueGB
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

// stop drains whatever the handlers managed to enqueue and makes one
// best-effort final flush. No retries during shutdown.
func (t *Tracker) stop(_ error) error {
	for {
		select {
		case ev := <-t.events:
			t.buckets[bucketKey{orgID: ev.OrgID, featureID: ev.FeatureID}] += ev.ValueGB
		default:
			if len(t.buckets) > 0 {
				level.Info(t.logger).Log(
					"msg", "usage tracker shutting down, attempting final flush",
					"pending_entries", len(t.buckets),
				)

				ctx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
				defer cancel()
				t.flush(ctx)
			}
			return nil
		}
	}
}

func (t *Tracker) tick(ctx context.Context) {
	if len(t.buckets) == 0 {
		return
	}

	start := time.Now()
	allOK := t.flush(ctx)
	metricFlushDuration.Observe(time.Since(start).Seconds())

	if allOK {
		t.consecutiveFailures = 0
		metricFlushes.WithLabelValues("ok").Inc()
	} else {
		t.consecutiveFailures++
		metricFlushes.WithLabelValues("error").Inc()

		if t.consecutiveFailures == t.criticalThreshold {
			level.Error(t.logger).Log(
				"msg", "CRITICAL: usage tracking has failed for ~5 minutes, usage data is accumulating in memory",
				"consecutive_failures", t.consecutiveFailures,
				"pending_entries", len(t.buckets),
				"total_pending_gb", t.pendingGB(),
			)
		}
	}

	metricPendingGB.Set(t.pendingGB())
}

// flush posts every pending bucket once. Buckets whose POST succeeded are
// removed; the rest stay for the next tick.
func (t *Tracker) flush(ctx context.Context) bool {
	allOK := true

	for key, valueGB := range t.buckets {
		if err := t.post(ctx, key, valueGB); err != nil {
			level.Warn(t.logger).Log(
				"msg", "autumn track request failed",
				"org_id", key.orgID,
				"feature_id", key.featureID,
				"err", err,
			)
			allOK = false
			continue
		}
		delete(t.buckets, key)
	}

	return allOK
}

func (t *Tracker) post(ctx context.Context, key bucketKey, valueGB float64) error {
	body, err := json.Marshal(trackRequest{
		CustomerID:     key.orgID,
		FeatureID:      key.featureID,
		Value:          valueGB,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return errors.Wrap(err, "marshal track request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.APIURL+"/v1/track", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build track request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.cfg.SecretKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Errorf("autumn responded %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (t *Tracker) pendingGB() float64 {
	var total float64
	for _, v := range t.buckets {
		total += v
	}
	return total
}
