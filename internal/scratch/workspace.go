// Package scratch manages request-scoped temporary directories. Everything a
// request writes to disk lives under one Workspace and is removed by Close.
package scratch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/CloudNativeWorks/elchi-decompiler/pkg/logger"
)

const dirPrefix = "elchi-decompiler-"

// Workspace is a temporary directory owned by one request.
type Workspace struct {
	dir    string
	logger *logger.Logger

	closeOnce sync.Once
}

// New creates a workspace under root, or under the system temp dir when root
// is empty. Callers must defer Close right after a successful New.
func New(root string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch root %s: %w", root, err)
	}
	dir, err := os.MkdirTemp(root, dirPrefix+uuid.NewString()[:8]+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	return &Workspace{dir: dir, logger: logger.NewLogger("scratch")}, nil
}

// Path returns the workspace root.
func (w *Workspace) Path() string {
	return w.dir
}

// Dir creates (if needed) and returns a subdirectory of the workspace.
func (w *Workspace) Dir(name string) (string, error) {
	p, err := w.join(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", p, err)
	}
	return p, nil
}

// File creates a file in the workspace and returns it open for writing.
func (w *Workspace) File(name string) (*os.File, error) {
	p, err := w.join(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(p), err)
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", p, err)
	}
	return f, nil
}

// WriteFile stores data as name in the workspace and returns its path.
func (w *Workspace) WriteFile(name string, data []byte) (string, error) {
	f, err := w.File(name)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", f.Name(), err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", f.Name(), err)
	}
	return f.Name(), nil
}

// Spool copies src into a new workspace file, honoring ctx, and returns the
// file's path.
func (w *Workspace) Spool(ctx context.Context, name string, src io.Reader) (string, int64, error) {
	f, err := w.File(name)
	if err != nil {
		return "", 0, err
	}
	written, err := CopyWithContext(ctx, f, src)
	if err != nil {
		f.Close()
		return "", written, fmt.Errorf("failed to spool %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", written, fmt.Errorf("failed to close %s: %w", f.Name(), err)
	}
	return f.Name(), written, nil
}

// Close removes the workspace and everything in it. Failures are logged,
// never returned.
func (w *Workspace) Close() {
	w.closeOnce.Do(func() {
		if err := os.RemoveAll(w.dir); err != nil {
			w.logger.WithFields(logger.Fields{"dir": w.dir}).WithError(err).Warn("Failed to remove scratch dir")
			return
		}
		w.logger.WithFields(logger.Fields{"dir": w.dir}).Debug("Scratch dir removed")
	})
}

func (w *Workspace) join(name string) (string, error) {
	clean := filepath.Clean(filepath.Join(w.dir, name))
	if clean == w.dir || !strings.HasPrefix(clean, w.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid scratch path %q", name)
	}
	return clean, nil
}

// CopyWithContext copies src to dst, checking ctx between reads.
func CopyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, readErr := src.Read(buf)
		if nr > 0 {
			nw, writeErr := dst.Write(buf[:nr])
			if nw > 0 {
				written += int64(nw)
			}
			if writeErr != nil {
				return written, writeErr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return written, nil
			}
			return written, readErr
		}
	}
}
