// Package logging provides the structured stderr logger used by dexcfg.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultPrefix is prepended to every log line.
const DefaultPrefix = "dexcfg"

// ParseLevel maps a level name to a log.Level. Unknown names are info.
func ParseLevel(name string) log.Level {
	switch strings.ToLower(name) {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	}
	return log.InfoLevel
}

// NewLoggerWithWriter creates a logger writing to w at the given level.
func NewLoggerWithWriter(w io.Writer, level string) *log.Logger {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	lg.SetLevel(ParseLevel(level))
	return lg.WithPrefix(DefaultPrefix)
}

// NewLogger creates a stderr logger. DEXCFG_LOG_LEVEL, when set, overrides
// level.
func NewLogger(level string) *log.Logger {
	if v := os.Getenv("DEXCFG_LOG_LEVEL"); v != "" {
		level = v
	}
	return NewLoggerWithWriter(os.Stderr, level)
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}
