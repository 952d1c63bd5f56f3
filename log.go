package flv2hls

import (
	"fmt"
	"log"

	"github.com/gookit/color"
)

// LogLevel is a log level.
type LogLevel int

// Log levels.
const (
	LogLevelDebug LogLevel = iota + 1
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// String implements fmt.Stringer.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return color.FgCyan.Sprint("DEB")
	case LogLevelInfo:
		return color.FgGreen.Sprint("INF")
	case LogLevelWarn:
		return color.FgYellow.Sprint("WAR")
	case LogLevelError:
		return color.FgRed.Sprint("ERR")
	}
	return fmt.Sprintf("LogLevel(%d)", int(l))
}

// LogFunc is the prototype of the log function.
type LogFunc func(level LogLevel, format string, args ...interface{})

func defaultLog(level LogLevel, format string, args ...interface{}) {
	log.Printf(level.String()+" "+format, args...)
}

// anomaly kinds, used in logs and metrics.
type anomalyKind string

const (
	anomalyParse  anomalyKind = "parse"
	anomalyBuffer anomalyKind = "buffer"
	anomalyIO     anomalyKind = "io"
)
