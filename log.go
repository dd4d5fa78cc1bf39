package h2io

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// logger is the package-wide fallback logger, installed at most once per
// process (spec.md §9 "Global debug-log init"). A ConnIO built with
// Config.Logger uses that instance instead; this one backs ConnIOs built
// without one and (*StreamState).advance's backward-transition warning.
var logger = logrus.New()

var logInitOnce sync.Once

// initGlobalLog installs the package's default logrus formatter exactly
// once per process, mirroring the codec's own one-time debug-log-printer
// hook that spec.md §9 calls out.
func initGlobalLog() {
	logInitOnce.Do(func() {
		logger.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp: false,
		})
	})
}

func init() {
	initGlobalLog()
}

// fieldsForStream builds the structured log fields attached to
// stream-scoped log lines.
func fieldsForStream(s *StreamState) logrus.Fields {
	return logrus.Fields{
		"stream_id": s.streamID,
		"state":     s.state.String(),
	}
}
