package database

import (
	"github.com/taskhub/taskhub/logger"
	testconsts "github.com/taskhub/taskhub/testing"
)

// newTestLogger creates a debug-level logger with pretty printing for
// readable test output.
func newTestLogger() logger.Logger {
	return logger.New(testconsts.TestLoggerLevelDebug, true)
}
