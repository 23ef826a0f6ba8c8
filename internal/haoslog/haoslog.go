// Package haoslog wraps github.com/charmbracelet/log with the log levels
// this harness emits: informational progress, non-fatal errors, and fatal
// configuration/protocol errors reported in red before exit.
package haoslog

import (
	"os"

	"github.com/charmbracelet/log"
)

var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	TimeFormat:      "15:04:05",
})

// Infof logs a progress message (sample rates, module counts, file paths).
func Infof(format string, args ...any) {
	logger.Infof(format, args...)
}

// Errorf logs an error and returns; the run continues.
func Errorf(format string, args ...any) {
	logger.Errorf(format, args...)
}

// Fatalf logs an error and exits 1.
func Fatalf(format string, args ...any) {
	logger.Fatalf(format, args...)
}
