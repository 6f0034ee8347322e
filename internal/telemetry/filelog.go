package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Record is a single append-only JSONL entry (spec.md §4.4).
type Record struct {
	TS        time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Component string                 `json:"component"`
	Event     string                 `json:"event"`
	Fields    map[string]interface{} `json:"-"`
}

// MarshalJSON flattens Fields alongside the fixed envelope keys, the way a
// hand-written structured-logging sink typically does.
func (r Record) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(r.Fields)+4)
	for k, v := range r.Fields {
		flat[k] = v
	}
	flat["ts"] = r.TS.UTC().Format(time.RFC3339Nano)
	flat["level"] = r.Level
	flat["component"] = r.Component
	flat["event"] = r.Event
	return json.Marshal(flat)
}

// FileLogger is an append-only, line-flushed JSONL writer with field
// redaction (spec.md §4.4). One FileLogger instance is safe for concurrent
// use by multiple goroutines (e.g. one per in-flight match).
type FileLogger struct {
	mu        sync.Mutex
	f         *os.File
	w         *bufio.Writer
	component string
}

// NewFileLogger opens (creating/appending) the JSONL file at path.
func NewFileLogger(path, component string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &FileLogger{f: f, w: bufio.NewWriter(f), component: component}, nil
}

// Log appends one redacted JSONL record and flushes the line.
func (l *FileLogger) Log(level, event string, fields map[string]interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := Record{
		TS:        time.Now(),
		Level:     level,
		Component: l.component,
		Event:     event,
		Fields:    redactFields(fields),
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := l.w.Write(b); err != nil {
		return err
	}
	if err := l.w.WriteByte('\n'); err != nil {
		return err
	}
	return l.w.Flush()
}

func (l *FileLogger) Info(event string, fields map[string]interface{}) error {
	return l.Log("info", event, fields)
}

func (l *FileLogger) Warn(event string, fields map[string]interface{}) error {
	return l.Log("warn", event, fields)
}

func (l *FileLogger) Error(event string, fields map[string]interface{}) error {
	return l.Log("error", event, fields)
}

// Close flushes and closes the underlying file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		return err
	}
	return l.f.Close()
}
