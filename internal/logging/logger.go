/**
 * Structured logging for the OCR worker.
 *
 * Thin key-value logger over the standard library, shared by the pipeline,
 * queue consumer and storage layers. Debug output is gated by OCR_DEBUG.
 */

package logging

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Logger provides leveled key-value logging with a component prefix.
type Logger struct {
	prefix string
	logger *log.Logger
	debug  bool
}

// NewLogger creates a new logger for the named component.
func NewLogger(prefix string) *Logger {
	return &Logger{
		prefix: prefix,
		logger: log.New(os.Stdout, fmt.Sprintf("[%s] ", prefix), log.LstdFlags),
		debug:  debugEnabled(),
	}
}

// With returns a child logger whose prefix is extended with the given scope,
// e.g. NewLogger("Pipeline").With("job 42") logs as [Pipeline:job 42].
func (l *Logger) With(scope string) *Logger {
	return &Logger{
		prefix: l.prefix + ":" + scope,
		logger: log.New(os.Stdout, fmt.Sprintf("[%s:%s] ", l.prefix, scope), log.LstdFlags),
		debug:  l.debug,
	}
}

// Info logs an informational message with key-value pairs.
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logWithKV("INFO", msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs.
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.logWithKV("WARN", msg, keysAndValues...)
}

// Error logs an error message with key-value pairs.
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.logWithKV("ERROR", msg, keysAndValues...)
}

// Debug logs a debug message with key-value pairs. Suppressed unless the
// OCR_DEBUG environment variable is truthy.
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	if !l.debug {
		return
	}
	l.logWithKV("DEBUG", msg, keysAndValues...)
}

func (l *Logger) logWithKV(level, msg string, keysAndValues ...interface{}) {
	var sb strings.Builder
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	l.logger.Printf("[%s] %s%s", level, msg, sb.String())
}

func debugEnabled() bool {
	switch strings.ToLower(os.Getenv("OCR_DEBUG")) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
