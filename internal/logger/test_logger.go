package logger

import (
	"fmt"
	"sync"
)

// Recorder is an in-memory logger for tests. It satisfies every Logger
// interface in this repo (all are printf-style subsets of
// Debug/Info/Warn/Error) and keeps formatted messages per level for
// assertions.
type Recorder struct {
	mu      sync.Mutex
	entries map[string][]string
}

// NewTestLogger creates an empty recorder
func NewTestLogger() *Recorder {
	return &Recorder{entries: make(map[string][]string)}
}

func (r *Recorder) record(level, format string, args []interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[level] = append(r.entries[level], fmt.Sprintf(format, args...))
}

func (r *Recorder) Debug(format string, args ...interface{}) { r.record("debug", format, args) }
func (r *Recorder) Info(format string, args ...interface{})  { r.record("info", format, args) }
func (r *Recorder) Warn(format string, args ...interface{})  { r.record("warn", format, args) }
func (r *Recorder) Error(format string, args ...interface{}) { r.record("error", format, args) }

// Messages returns a copy of the recorded messages for a level
// ("debug", "info", "warn", "error") in arrival order
func (r *Recorder) Messages(level string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries[level]...)
}

// Close exists so a Recorder can stand in for FileLogger
func (r *Recorder) Close() error {
	return nil
}
