// Package cfr adapts the CFR decompiler. CFR is driven by file paths and
// reports results through an output sink, one callback per class.
//
// The adapter does not ship CFR itself. A deployment links a Driver in with
// Register; until then the mode reports unavailable.
package cfr

import (
	"context"
	"sync"
)

// Decompiled is one class CFR produced source for.
type Decompiled struct {
	Package string
	Class   string
	Java    string
}

// QualifiedName joins Package and Class.
func (d Decompiled) QualifiedName() string {
	if d.Package == "" {
		return d.Class
	}
	return d.Package + "." + d.Class
}

// Failure is a class CFR could not handle. Path is the input path or the
// archive entry the failure belongs to.
type Failure struct {
	Path string
	Err  error
}

// OutputSink receives CFR's results. Returning an error asks the driver to
// stop analysing.
type OutputSink interface {
	Decompiled(d Decompiled) error
	Failed(f Failure) error
}

// Driver runs CFR over class files or archives.
type Driver interface {
	Analyse(ctx context.Context, paths []string, sink OutputSink) error
}

// Checker is implemented by drivers that can verify their library loaded.
type Checker interface {
	Ready() bool
}

var (
	mu         sync.RWMutex
	registered Driver
)

// Register installs the process-wide CFR binding. Passing nil removes it.
func Register(d Driver) {
	mu.Lock()
	defer mu.Unlock()
	registered = d
}

func registeredDriver() Driver {
	mu.RLock()
	defer mu.RUnlock()
	return registered
}
