package telemetry

import (
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stdout, log.InfoLevel)
)

func newLogger(w io.Writer, level log.Level) *log.Logger {
	return &log.Logger{
		Level:      level,
		TimeField:  "ts",
		TimeFormat: time.RFC3339,
		Writer:     &log.IOWriter{Writer: w},
	}
}

// SetLevel changes the minimum level by name (debug, info, warn, error).
func SetLevel(name string) {
	level := log.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	mu.Lock()
	defer mu.Unlock()
	logger.Level = level
}

// SetOutput redirects log lines to w and returns a func restoring the previous writer.
func SetOutput(w io.Writer) func() {
	mu.Lock()
	defer mu.Unlock()
	prev := logger
	logger = newLogger(w, prev.Level)
	return func() {
		mu.Lock()
		defer mu.Unlock()
		logger = prev
	}
}

// Debug writes a debug-level log line with the given fields.
func Debug(msg string, fields map[string]any) {
	write(current().Debug(), msg, fields)
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	write(current().Info(), msg, fields)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	write(current().Warn(), msg, fields)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	write(current().Error(), msg, fields)
}

func current() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func write(e *log.Entry, msg string, fields map[string]any) {
	if e == nil {
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e = e.Any(k, fields[k])
	}
	e.Msg(msg)
}
