// Package log is a small facade over logrus with key/value context fields.
package log

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Setup configures the process-wide logger. Verbose enables debug output.
func Setup(verbose bool) {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// Debug logs a debug message with alternating key/value pairs.
func Debug(msg string, kv ...any) {
	logrus.WithFields(fields(kv)).Debug(msg)
}

// Info logs an informational message with alternating key/value pairs.
func Info(msg string, kv ...any) {
	logrus.WithFields(fields(kv)).Info(msg)
}

// Warn logs a warning with alternating key/value pairs.
func Warn(msg string, kv ...any) {
	logrus.WithFields(fields(kv)).Warn(msg)
}

// Error logs an error with alternating key/value pairs.
func Error(msg string, kv ...any) {
	logrus.WithFields(fields(kv)).Error(msg)
}

func fields(kv []any) logrus.Fields {
	f := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		f[key] = kv[i+1]
	}
	if len(kv)%2 != 0 {
		f["value"] = kv[len(kv)-1]
	}
	return f
}
