// Package logging builds the structured slog.Logger used throughout the
// daemon: JSON in production, a human-readable text handler otherwise,
// writing to both stdout and a size-rotated file under the platform's
// local-data directory.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Logger wraps slog for structured logging.
type Logger struct {
	*slog.Logger
}

// New creates a Logger that writes JSON when jsonMode is set (production)
// and plain text otherwise, to os.Stdout only. Kept for components and
// tests that don't need the file-backed sink.
func New(jsonMode bool) *Logger {
	return &Logger{slog.New(newHandler(os.Stdout, jsonMode))}
}

// NewWithFile builds a Logger that writes to both os.Stdout and an
// append-only file at dir/app.log, rotating that file once it exceeds
// maxFileBytes. The returned close function flushes and releases the
// file handle; callers should defer it.
func NewWithFile(jsonMode bool, dir string) (*Logger, func() error, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("logging: create log dir: %w", err)
	}
	path := filepath.Join(dir, "app.log")
	sink, err := newRotatingFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: open log file: %w", err)
	}
	handler := newHandler(multiWriter{os.Stdout, sink}, jsonMode)
	return &Logger{slog.New(handler)}, sink.Close, nil
}

func newHandler(w interface{ Write([]byte) (int, error) }, jsonMode bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	if jsonMode {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// multiWriter fans writes out to every target, same shape as io.MultiWriter
// but kept local so newHandler's parameter type doesn't have to import io
// just for this one use.
type multiWriter []interface{ Write([]byte) (int, error) }

func (m multiWriter) Write(p []byte) (int, error) {
	for _, w := range m {
		if _, err := w.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// maxFileBytes caps app.log before it is rotated aside as app.log.1. Only
// one prior generation is kept; this is a deliberately simple
// size-rotation rather than a full rotation library (see DESIGN.md).
const maxFileBytes = 10 * 1024 * 1024

// rotatingFile wraps an append-only *os.File, rotating it to a ".1"
// sibling once it crosses maxFileBytes. One rotatingFile is meant to be
// used from a single slog.Handler, but Write is still guarded by a mutex
// since slog.Handler implementations may be called from multiple
// goroutines concurrently.
type rotatingFile struct {
	mu   sync.Mutex
	path string
	file *os.File
	size int64
}

func newRotatingFile(path string) (*rotatingFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &rotatingFile{path: path, file: f, size: info.Size()}, nil
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size+int64(len(p)) > maxFileBytes {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *rotatingFile) rotate() error {
	r.file.Close()
	if err := os.Rename(r.path, r.path+".1"); err != nil && !os.IsNotExist(err) {
		return err
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	r.file = f
	r.size = 0
	return nil
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}
