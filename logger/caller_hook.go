package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// callerSkip drops runtime.Callers, Fire and the logrus hook dispatch.
const callerSkip = 6

// callerHook reports the first frame outside logrus and this package as
// the caller, so wrapped Entry methods do not show up in log lines.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(callerSkip, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !isLoggingFrame(frame.Function) {
			entry.Caller = &frame
			return nil
		}
		if !more {
			return nil
		}
	}
}

func isLoggingFrame(fn string) bool {
	return strings.Contains(fn, "sirupsen/logrus") || strings.HasPrefix(fn, "tardisflow/logger.")
}
