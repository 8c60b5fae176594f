package log

import (
	"os"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	dslog "github.com/grafana/dskit/log"
)

// Logger is a shared go-kit logger. Components should prefer accepting a
// non-global logger via their constructors; this exists for the few places
// that log before wiring is complete.
var Logger = kitlog.NewNopLogger()

// InitLogger initialises the global gokit logger and returns it. levelName is
// one of debug/info/warn/error.
func InitLogger(levelName string) (kitlog.Logger, error) {
	var lvl dslog.Level
	if err := lvl.Set(levelName); err != nil {
		return nil, err
	}

	writer := kitlog.NewSyncWriter(os.Stderr)
	logger := dslog.NewGoKitWithWriter(dslog.LogfmtFormat, writer)

	// use UTC timestamps.
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)

	// Must put the level filter last for efficiency.
	logger = level.NewFilter(logger, lvl.Option)

	Logger = logger
	return logger, nil
}
