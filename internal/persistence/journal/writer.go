// Package journal writes tick records as zstd-compressed JSON lines, one
// file per UTC hour.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const fileSuffix = ".jsonl.zst"

// Writer appends JSON values to hourly rotated zstd files.
type Writer struct {
	baseDir string
	prefix  string
	clock   func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewWriter creates a writer for baseDir. Files are created lazily.
func NewWriter(baseDir, prefix string) *Writer {
	return &Writer{
		baseDir: baseDir,
		prefix:  prefix,
		clock:   time.Now,
	}
}

// Write appends v as one line, rotating the file when the hour changes.
func (w *Writer) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding journal entry: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.clock().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return fmt.Errorf("writing journal entry: %w", err)
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("writing journal entry: %w", err)
	}
	return nil
}

// Flush pushes buffered lines through the encoder to the file.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("flushing journal: %w", err)
	}
	if err := w.enc.Flush(); err != nil {
		return fmt.Errorf("flushing journal encoder: %w", err)
	}
	return nil
}

// Close finishes the current file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Path returns the file of the hour containing t.
func (w *Writer) Path(t time.Time) string {
	return w.pathForHour(t.UTC().Format("2006-01-02-15"))
}

func (w *Writer) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return fmt.Errorf("creating journal dir: %w", err)
	}
	path := w.pathForHour(hour)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening journal %s: %w", path, err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *Writer) closeLocked() error {
	var firstErr error
	if w.w != nil {
		if err := w.w.Flush(); err != nil {
			firstErr = err
		}
	}
	if w.enc != nil {
		if err := w.enc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		w.enc = nil
	}
	if w.f != nil {
		if err := w.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return firstErr
}

func (w *Writer) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s%s", w.prefix, hour, fileSuffix))
}
