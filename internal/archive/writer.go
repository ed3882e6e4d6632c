// Package archive writes decompiled units into a zip container as they
// arrive and reads class entries out of input archives.
package archive

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/engine"
)

// ErrWriterClosed is returned by Push after Close.
var ErrWriterClosed = errors.New("archive writer closed")

// DefaultLevel favors throughput; decompiled sources compress well anyway.
const DefaultLevel = flate.BestSpeed

// Writer streams units into a zip. Push is safe for concurrent use; each
// entry is created and written inside one critical section.
type Writer struct {
	mu     sync.Mutex
	zw     *zip.Writer
	method uint16
	closed bool
	count  int
	now    func() time.Time
}

// NewWriter returns a Writer on w. level 0 stores entries uncompressed;
// 1-9 are flate levels. Out of range levels fall back to DefaultLevel.
func NewWriter(w io.Writer, level int) *Writer {
	if level < flate.NoCompression || level > flate.BestCompression {
		level = DefaultLevel
	}
	zw := zip.NewWriter(w)
	method := zip.Store
	if level != flate.NoCompression {
		method = zip.Deflate
		zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(out, level)
		})
	}
	return &Writer{zw: zw, method: method, now: time.Now}
}

// Push writes unit as <package path>/<Name>.java.
func (w *Writer) Push(unit engine.Unit) error {
	if unit.QualifiedName == "" {
		return fmt.Errorf("%w: unit without a name", engine.ErrInvalidInput)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	entry, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     unit.EntryPath(),
		Method:   w.method,
		Modified: w.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", unit.EntryPath(), err)
	}
	if _, err := io.WriteString(entry, unit.Source); err != nil {
		return fmt.Errorf("failed to write entry %s: %w", unit.EntryPath(), err)
	}
	w.count++
	return nil
}

// Count returns the number of entries written so far.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close finishes the central directory. It does not close the underlying
// writer. Closing twice is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}
