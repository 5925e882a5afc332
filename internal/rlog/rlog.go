// Package rlog is the leveled, subject-first logger used across
// rjrssync, modeled on rclone's fs.Debugf/fs.Infof/fs.Errorf family
// (an object or side name leads every call, never string-concatenated
// into the format) and backed by logrus.
package rlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var std = logrus.New()

func init() {
	std.SetOutput(os.Stderr)
	std.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: false,
		FullTimestamp:    true,
	})
	std.SetLevel(logrus.InfoLevel)
}

// SetVerbosity maps the CLI's -v/-vv count onto logrus levels.
func SetVerbosity(count int) {
	switch {
	case count <= 0:
		std.SetLevel(logrus.InfoLevel)
	case count == 1:
		std.SetLevel(logrus.DebugLevel)
	default:
		std.SetLevel(logrus.TraceLevel)
	}
}

// SetQuiet silences everything below errors.
func SetQuiet() {
	std.SetLevel(logrus.ErrorLevel)
}

func fields(subject any) logrus.Fields {
	if subject == nil {
		return logrus.Fields{}
	}
	return logrus.Fields{"subject": subject}
}

// Debugf logs a low-level trace message about subject (typically a
// side name or a rel path).
func Debugf(subject any, format string, a ...any) {
	std.WithFields(fields(subject)).Debugf(format, a...)
}

// Infof logs a normal informational message about subject.
func Infof(subject any, format string, a ...any) {
	std.WithFields(fields(subject)).Infof(format, a...)
}

// Errorf logs a recoverable error about subject.
func Errorf(subject any, format string, a ...any) {
	std.WithFields(fields(subject)).Errorf(format, a...)
}

// Fatalf logs a fatal error about subject and exits the process. Only
// ever used from cmd/rjrssync, never from library code.
func Fatalf(subject any, format string, a ...any) {
	std.WithFields(fields(subject)).Fatalf(format, a...)
}
