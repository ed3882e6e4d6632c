// Package jadx adapts JADX. JADX loads its inputs into a project up front and
// produces code per class lazily.
package jadx

import (
	"context"
	"sync"
)

// Args configures one load.
type Args struct {
	Inputs        []string
	Threads       int
	SkipResources bool
}

// Class is one loaded class. Code may be called from several goroutines.
type Class interface {
	FullName() string
	Code() (string, error)
}

// Project holds loaded inputs until Close.
type Project interface {
	Classes() []Class
	Close() error
}

type Decompiler interface {
	Load(ctx context.Context, args Args) (Project, error)
}

// Checker is implemented by bindings that can verify their library loaded.
type Checker interface {
	Ready() bool
}

var (
	mu         sync.RWMutex
	registered Decompiler
)

// Register installs the process-wide JADX binding. Passing nil removes it.
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
