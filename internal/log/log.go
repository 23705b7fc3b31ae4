// Package log adapts traceband.Logger onto glog.
package log

import (
	"github.com/golang/glog"

	"github.com/arwalker/traceband"
)

// GlogLogger is the default traceband.Logger implementation. It is safe for
// concurrent use, since glog itself serializes writes.
type GlogLogger struct{}

// Log implements traceband.Logger.
func (GlogLogger) Log(level traceband.LogLevel, message string) {
	switch level {
	case traceband.LogDebug:
		glog.V(1).Info(message)
	case traceband.LogWarn:
		glog.Warning(message)
	case traceband.LogError:
		glog.Error(message)
	default:
		glog.Info(message)
	}
}

// Default is a ready-to-use GlogLogger.
var Default traceband.Logger = GlogLogger{}
