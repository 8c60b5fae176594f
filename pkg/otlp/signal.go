package otlp

// Signal is one of the three OTLP telemetry categories the gateway accepts.
// It is a closed set; every signal maps 1:1 to an upstream path segment.
type Signal int

const (
	SignalTraces Signal = iota
	SignalLogs
	SignalMetrics
)

// Path returns the /v1/{path} segment for the signal. It doubles as the
// feature id reported to usage metering.
func (s Signal) Path() string {
	switch s {
	case SignalTraces:
		return "traces"
	case SignalLogs:
		return "logs"
	case SignalMetrics:
		return "metrics"
	}
	return "unknown"
}

func (s Signal) String() string {
	return s.Path()
}
