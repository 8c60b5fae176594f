package otlp

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/collector/pdata/plog"
	"go.opentelemetry.io/collector/pdata/pmetric"
	"go.opentelemetry.io/collector/pdata/ptrace"
)

func testTraces() ptrace.Traces {
	td := ptrace.NewTraces()
	rs := td.ResourceSpans().AppendEmpty()
	rs.Resource().Attributes().PutStr("service.name", "svc")
	ss := rs.ScopeSpans().AppendEmpty()
	ss.Spans().AppendEmpty().SetName("op-a")
	ss.Spans().AppendEmpty().SetName("op-b")
	return td
}

func testLogs() plog.Logs {
	ld := plog.NewLogs()
	rl := ld.ResourceLogs().AppendEmpty()
	rl.Resource().Attributes().PutStr("service.name", "svc")
	sl := rl.ScopeLogs().AppendEmpty()
	sl.LogRecords().AppendEmpty().Body().SetStr("hello")
	return ld
}

func testMetrics() pmetric.Metrics {
	md := pmetric.NewMetrics()
	rm := md.ResourceMetrics().AppendEmpty()
	rm.Resource().Attributes().PutStr("service.name", "svc")
	sm := rm.ScopeMetrics().AppendEmpty()
	m := sm.Metrics().AppendEmpty()
	m.SetName("requests")
	m.SetEmptySum().DataPoints().AppendEmpty().SetIntValue(1)
	return md
}

func marshalSignal(t *testing.T, signal Signal, format Format) []byte {
	t.Helper()

	var (
		payload []byte
		err     error
	)
	switch signal {
	case SignalTraces:
		if format == FormatJSON {
			payload, err = (&ptrace.JSONMarshaler{}).MarshalTraces(testTraces())
		} else {
			payload, err = (&ptrace.ProtoMarshaler{}).MarshalTraces(testTraces())
		}
	case SignalLogs:
		if format == FormatJSON {
			payload, err = (&plog.JSONMarshaler{}).MarshalLogs(testLogs())
		} else {
			payload, err = (&plog.ProtoMarshaler{}).MarshalLogs(testLogs())
		}
	case SignalMetrics:
		if format == FormatJSON {
			payload, err = (&pmetric.JSONMarshaler{}).MarshalMetrics(testMetrics())
		} else {
			payload, err = (&pmetric.ProtoMarshaler{}).MarshalMetrics(testMetrics())
		}
	}
	require.NoError(t, err)
	return payload
}

func TestUnmarshalAllSignalsAndFormats(t *testing.T) {
	expectedItems := map[Signal]int{
		SignalTraces:  2,
		SignalLogs:    1,
		SignalMetrics: 1,
	}

	for _, signal := range []Signal{SignalTraces, SignalLogs, SignalMetrics} {
		for _, format := range []Format{FormatProtobuf, FormatJSON} {
			t.Run(signal.String()+"/"+format.String(), func(t *testing.T) {
				payload := marshalSignal(t, signal, format)

				req, err := Unmarshal(signal, format, payload)
				require.NoError(t, err)
				require.Equal(t, signal, req.Signal())
				require.Equal(t, expectedItems[signal], req.ItemCount())

				out, err := req.Marshal(format)
				require.NoError(t, err)

				// Protobuf must round-trip byte for byte for canonically
				// encoded input; parsing the output back must always succeed.
				if format == FormatProtobuf {
					require.Equal(t, payload, out)
				}
				_, err = Unmarshal(signal, format, out)
				require.NoError(t, err)
			})
		}
	}
}

func TestUnmarshalMalformedPayload(t *testing.T) {
	garbage := []byte{0xff, 0xfe, 0x00, 0x01}

	for _, signal := range []Signal{SignalTraces, SignalLogs, SignalMetrics} {
		for _, format := range []Format{FormatProtobuf, FormatJSON} {
			_, err := Unmarshal(signal, format, garbage)
			require.Error(t, err)
			require.Contains(t, err.Error(), signal.String())
			require.Contains(t, err.Error(), format.String())
		}
	}
}

func TestSignalPath(t *testing.T) {
	require.Equal(t, "traces", SignalTraces.Path())
	require.Equal(t, "logs", SignalLogs.Path())
	require.Equal(t, "metrics", SignalMetrics.Path())
}
