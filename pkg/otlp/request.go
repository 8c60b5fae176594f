package otlp

import (
	"github.com/pkg/errors"
	"go.opentelemetry.io/collector/pdata/plog"
	"go.opentelemetry.io/collector/pdata/pmetric"
	"go.opentelemetry.io/collector/pdata/ptrace"
)

// Request is a decoded OTLP export request for a single signal. The zero
// value is not usable; construct one with Unmarshal.
type Request struct {
	signal  Signal
	traces  ptrace.Traces
	logs    plog.Logs
	metrics pmetric.Metrics
}

// Unmarshal parses payload as an OTLP export request for the given signal and
// wire format. pdata's JSON unmarshaler follows the OTLP JSON mapping
// (base64 trace/span ids, enum names), so JSON payloads re-serialize in a
// shape strict collectors accept.
func Unmarshal(signal Signal, format Format, payload []byte) (Request, error) {
	req := Request{signal: signal}

	var err error
	switch signal {
	case SignalTraces:
		if format == FormatJSON {
			req.traces, err = (&ptrace.JSONUnmarshaler{}).UnmarshalTraces(payload)
		} else {
			req.traces, err = (&ptrace.ProtoUnmarshaler{}).UnmarshalTraces(payload)
		}
	case SignalLogs:
		if format == FormatJSON {
			req.logs, err = (&plog.JSONUnmarshaler{}).UnmarshalLogs(payload)
		} else {
			req.logs, err = (&plog.ProtoUnmarshaler{}).UnmarshalLogs(payload)
		}
	case SignalMetrics:
		if format == FormatJSON {
			req.metrics, err = (&pmetric.JSONUnmarshaler{}).UnmarshalMetrics(payload)
		} else {
			req.metrics, err = (&pmetric.ProtoUnmarshaler{}).UnmarshalMetrics(payload)
		}
	}
	if err != nil {
		return Request{}, errors.Wrapf(err, "parse OTLP %s %s payload", signal, format)
	}

	return req, nil
}

// Marshal serializes the request back into the given wire format.
func (r Request) Marshal(format Format) ([]byte, error) {
	switch r.signal {
	case SignalTraces:
		if format == FormatJSON {
			return (&ptrace.JSONMarshaler{}).MarshalTraces(r.traces)
		}
		return (&ptrace.ProtoMarshaler{}).MarshalTraces(r.traces)
	case SignalLogs:
		if format == FormatJSON {
			return (&plog.JSONMarshaler{}).MarshalLogs(r.logs)
		}
		return (&plog.ProtoMarshaler{}).MarshalLogs(r.logs)
	case SignalMetrics:
		if format == FormatJSON {
			return (&pmetric.JSONMarshaler{}).MarshalMetrics(r.metrics)
		}
		return (&pmetric.ProtoMarshaler{}).MarshalMetrics(r.metrics)
	}
	return nil, errors.Errorf("unknown signal %d", r.signal)
}

// Signal returns the signal this request was parsed as.
func (r Request) Signal() Signal {
	return r.signal
}

// ItemCount returns the number of telemetry items in the request: spans for
// traces, log records for logs, metric definitions for metrics.
func (r Request) ItemCount() int {
	switch r.signal {
	case SignalTraces:
		return r.traces.SpanCount()
	case SignalLogs:
		return r.logs.LogRecordCount()
	case SignalMetrics:
		return r.metrics.MetricCount()
	}
	return 0
}
