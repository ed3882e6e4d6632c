// Package procyon adapts the Procyon decompiler, which decompiles one type at
// a time by internal name and pulls class bytes through a TypeLoader.
package procyon

import (
	"context"
	"io"
	"sync"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/archive"
)

// TypeLoader supplies class bytes by internal name (a/b/C).
type TypeLoader interface {
	TryLoad(internalName string) ([]byte, bool)
}

// Decompiler writes the source of internalName to w.
type Decompiler interface {
	Decompile(ctx context.Context, internalName string, loader TypeLoader, w io.Writer) error
}

// Checker is implemented by bindings that can verify their library loaded.
type Checker interface {
	Ready() bool
}

// ArrayTypeLoader serves a single class held in memory.
type ArrayTypeLoader struct {
	name string
	data []byte
}

func NewArrayTypeLoader(internalName string, data []byte) *ArrayTypeLoader {
	return &ArrayTypeLoader{name: internalName, data: data}
}

func (l *ArrayTypeLoader) TryLoad(internalName string) ([]byte, bool) {
	if internalName != l.name {
		return nil, false
	}
	return l.data, true
}

// ArchiveTypeLoader serves the classes of an open input archive.
type ArchiveTypeLoader struct {
	entries map[string]archive.ClassEntry
}

func NewArchiveTypeLoader(r *archive.Reader) *ArchiveTypeLoader {
	l := &ArchiveTypeLoader{entries: make(map[string]archive.ClassEntry, len(r.Classes()))}
	for _, c := range r.Classes() {
		l.entries[internalName(c.QualifiedName)] = c
	}
	return l
}

func (l *ArchiveTypeLoader) TryLoad(name string) ([]byte, bool) {
	c, ok := l.entries[name]
	if !ok {
		return nil, false
	}
	data, err := c.ReadAll()
	if err != nil {
		return nil, false
	}
	return data, true
}

var (
	mu         sync.RWMutex
	registered Decompiler
)

// Register installs the process-wide Procyon binding. Passing nil removes it.
func Register(d Decompiler) {
	mu.Lock()
	defer mu.Unlock()
	registered = d
}

func registeredDecompiler() Decompiler {
	mu.RLock()
	defer mu.RUnlock()
	return registered
}
