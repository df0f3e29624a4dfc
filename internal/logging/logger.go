// Package logging builds the leveled slog loggers used by simrun.
//
// Console output always goes to the writer handed to NewLogger. A run-wide
// log file can be attached later with AttachFile so that everything logged
// after task discovery also lands next to the run's summary table.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ParseLevel maps debug, warn (or warning) and error to their slog levels.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Sink is an io.Writer whose set of destinations can grow after the logger
// has been built. It is safe for concurrent use by many workers.
type Sink struct {
	mu      sync.Mutex
	writers []io.Writer
	files   []*os.File
}

// NewSink returns a sink writing to every w.
func NewSink(w ...io.Writer) *Sink {
	return &Sink{writers: w}
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.writers {
		if _, err := w.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// AttachFile truncates path and mirrors all further log output into it.
func (s *Sink) AttachFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	s.mu.Lock()
	s.writers = append(s.writers, f)
	s.files = append(s.files, f)
	s.mu.Unlock()
	return nil
}

// Close closes attached files. The sink keeps writing to its other writers.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for _, f := range s.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	kept := s.writers[:0]
	for _, w := range s.writers {
		if f, ok := w.(*os.File); ok && contains(s.files, f) {
			continue
		}
		kept = append(kept, w)
	}
	s.writers = kept
	s.files = nil
	return first
}

func contains(files []*os.File, f *os.File) bool {
	for _, x := range files {
		if x == f {
			return true
		}
	}
	return false
}

// NewLogger creates a leveled text logger writing to sink.
func NewLogger(level string, sink io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	return slog.New(slog.NewTextHandler(sink, opts))
}

// Discard is a logger that drops everything; handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
